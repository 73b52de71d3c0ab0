package directory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"callpilot_backend/internal/campaign/ports"
	"callpilot_backend/platform/logger"
)

type testConfig struct {
	searchURL   string
	geocodeURL  string
	distanceURL string
}

func (c testConfig) GetPlacesAPIKey() string      { return "test-key" }
func (c testConfig) GetPlacesSearchURL() string   { return c.searchURL }
func (c testConfig) GetGeocodeURL() string        { return c.geocodeURL }
func (c testConfig) GetDistanceMatrixURL() string { return c.distanceURL }

func geocodeHandler(lat, lng float64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"geometry": map[string]any{"location": map[string]float64{"lat": lat, "lng": lng}}},
			},
		})
	}
}

func TestSearchMapsPlacesToProviders(t *testing.T) {
	geo := httptest.NewServer(geocodeHandler(30.2672, -97.7431))
	defer geo.Close()

	var gotQuery string
	search := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Goog-Api-Key") != "test-key" {
			t.Errorf("missing api key header")
		}
		if r.Header.Get("X-Goog-FieldMask") == "" {
			t.Errorf("missing field mask header")
		}
		var body searchRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode search body: %v", err)
		}
		gotQuery = body.TextQuery
		json.NewEncoder(w).Encode(map[string]any{
			"places": []map[string]any{
				{
					"id":                  "place-1",
					"displayName":         map[string]string{"text": "Bright Smile Dental"},
					"formattedAddress":    "100 Main St, Austin, TX",
					"rating":              4.5,
					"userRatingCount":     120,
					"location":            map[string]float64{"latitude": 30.3, "longitude": -97.7},
					"nationalPhoneNumber": "(512) 555-0100",
					"currentOpeningHours": map[string]any{"openNow": true},
				},
				{
					"id":               "place-2",
					"displayName":      map[string]string{"text": "Downtown Dental"},
					"formattedAddress": "200 Oak St, Austin, TX",
					"rating":           3.9,
					"userRatingCount":  40,
					"location":         map[string]float64{"latitude": 30.25, "longitude": -97.75},
				},
			},
		})
	}))
	defer search.Close()

	dist := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"rows": []map[string]any{
				{"elements": []map[string]any{
					{"status": "OK", "distance": map[string]int{"value": 3219}, "duration": map[string]int{"value": 600}},
					{"status": "NOT_FOUND"},
				}},
			},
		})
	}))
	defer dist.Close()

	svc := NewService(testConfig{
		searchURL:   search.URL,
		geocodeURL:  geo.URL,
		distanceURL: dist.URL,
	}, logger.New("test"))

	res, err := svc.Search(context.Background(), ports.DirectorySearch{
		ServiceType: "dentist",
		Location:    "Austin, TX",
		MaxDistance: 10,
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	if gotQuery != "dentist near Austin, TX" {
		t.Errorf("text query = %q", gotQuery)
	}
	if res.OriginLat != 30.2672 || res.OriginLng != -97.7431 {
		t.Errorf("origin = (%v, %v)", res.OriginLat, res.OriginLng)
	}
	if len(res.Providers) != 2 {
		t.Fatalf("got %d providers, want 2", len(res.Providers))
	}

	first := res.Providers[0]
	if first.ID != "place-1" || first.Name != "Bright Smile Dental" {
		t.Errorf("first provider = %+v", first)
	}
	if first.Phone != "+15125550100" {
		t.Errorf("phone not normalized: %q", first.Phone)
	}
	if first.OpenNow == nil || !*first.OpenNow {
		t.Errorf("open_now not carried over")
	}
	if first.DistanceMiles != 2.0 || first.TravelMinutes != 10 {
		t.Errorf("distance annotation = %v mi, %v min", first.DistanceMiles, first.TravelMinutes)
	}

	second := res.Providers[1]
	if second.DistanceMiles != unknownTravel || second.TravelMinutes != unknownTravel {
		t.Errorf("unroutable provider should carry sentinel, got %v mi %v min", second.DistanceMiles, second.TravelMinutes)
	}
}

func TestSearchFailsWhenGeocodeEmpty(t *testing.T) {
	geo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"results": []any{}})
	}))
	defer geo.Close()

	svc := NewService(testConfig{geocodeURL: geo.URL}, logger.New("test"))

	_, err := svc.Search(context.Background(), ports.DirectorySearch{ServiceType: "dentist", Location: "Nowhere"})
	if err == nil {
		t.Fatal("expected geocoding error")
	}
}

func TestSearchSurvivesDistanceMatrixOutage(t *testing.T) {
	geo := httptest.NewServer(geocodeHandler(30.0, -97.0))
	defer geo.Close()

	search := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"places": []map[string]any{
				{"id": "p1", "displayName": map[string]string{"text": "A"}, "location": map[string]float64{"latitude": 30.1, "longitude": -97.1}},
			},
		})
	}))
	defer search.Close()

	dist := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer dist.Close()

	svc := NewService(testConfig{
		searchURL:   search.URL,
		geocodeURL:  geo.URL,
		distanceURL: dist.URL,
	}, logger.New("test"))

	res, err := svc.Search(context.Background(), ports.DirectorySearch{ServiceType: "dentist", Location: "Austin"})
	if err != nil {
		t.Fatalf("search should not fail on distance outage: %v", err)
	}
	if len(res.Providers) != 1 {
		t.Fatalf("got %d providers", len(res.Providers))
	}
	// An outage leaves every distance unknown; the sentinel keeps these
	// providers out of range filters instead of looking adjacent.
	p := res.Providers[0]
	if p.DistanceMiles != unknownTravel || p.TravelMinutes != unknownTravel {
		t.Errorf("outage should stamp sentinel, got %v mi %v min", p.DistanceMiles, p.TravelMinutes)
	}
}
