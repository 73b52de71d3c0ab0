// Package directory finds service providers through the Google Places
// and Distance Matrix APIs.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"callpilot_backend/internal/campaign/domain"
	"callpilot_backend/internal/campaign/ports"
	"callpilot_backend/platform/config"
	"callpilot_backend/platform/logger"
	"callpilot_backend/platform/phone"
)

const (
	metersPerMile = 1609.34

	// unknownTravel marks destinations the Distance Matrix could not route to.
	unknownTravel = 999

	maxSearchResults = 15

	placesFieldMask = "places.id,places.displayName,places.formattedAddress," +
		"places.rating,places.userRatingCount,places.location," +
		"places.nationalPhoneNumber,places.internationalPhoneNumber," +
		"places.websiteUri,places.currentOpeningHours"
)

// Service implements ports.Directory over the Places text search,
// Geocoding and Distance Matrix endpoints.
type Service struct {
	client *http.Client
	cfg    config.PlacesConfig
	log    *logger.Logger
}

var _ ports.Directory = (*Service)(nil)

func NewService(cfg config.PlacesConfig, log *logger.Logger) *Service {
	return &Service{
		client: &http.Client{Timeout: 15 * time.Second},
		cfg:    cfg,
		log:    log,
	}
}

// Search geocodes the location, runs a text search around it and annotates
// every hit with driving distance from the origin. A Distance Matrix failure
// is not fatal; affected providers keep the unknown-travel sentinel.
func (s *Service) Search(ctx context.Context, req ports.DirectorySearch) (ports.DirectoryResult, error) {
	lat, lng, err := s.geocode(ctx, req.Location)
	if err != nil {
		return ports.DirectoryResult{}, fmt.Errorf("geocode %q: %w", req.Location, err)
	}

	providers, err := s.textSearch(ctx, req, lat, lng)
	if err != nil {
		return ports.DirectoryResult{}, fmt.Errorf("places search: %w", err)
	}

	if err := s.annotateDistances(ctx, lat, lng, providers); err != nil {
		s.log.UpstreamError("distance_matrix", err)
		for i := range providers {
			providers[i].DistanceMiles = unknownTravel
			providers[i].TravelMinutes = unknownTravel
		}
	}

	s.log.Info("directory search complete",
		"service_type", req.ServiceType,
		"location", req.Location,
		"providers", len(providers))

	return ports.DirectoryResult{Providers: providers, OriginLat: lat, OriginLng: lng}, nil
}

type geocodeResponse struct {
	Results []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

func (s *Service) geocode(ctx context.Context, location string) (float64, float64, error) {
	params := url.Values{}
	params.Set("address", location)
	params.Set("key", s.cfg.GetPlacesAPIKey())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.GetGeocodeURL()+"?"+params.Encode(), nil)
	if err != nil {
		return 0, 0, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, 0, fmt.Errorf("upstream api error: %d", resp.StatusCode)
	}

	var out geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, 0, err
	}
	if len(out.Results) == 0 {
		return 0, 0, fmt.Errorf("no geocoding results")
	}

	loc := out.Results[0].Geometry.Location
	return loc.Lat, loc.Lng, nil
}

type searchRequest struct {
	TextQuery    string `json:"textQuery"`
	LocationBias struct {
		Circle struct {
			Center struct {
				Latitude  float64 `json:"latitude"`
				Longitude float64 `json:"longitude"`
			} `json:"center"`
			Radius float64 `json:"radius"`
		} `json:"circle"`
	} `json:"locationBias"`
	MaxResultCount int `json:"maxResultCount"`
}

type searchResponse struct {
	Places []struct {
		ID          string `json:"id"`
		DisplayName struct {
			Text string `json:"text"`
		} `json:"displayName"`
		FormattedAddress string  `json:"formattedAddress"`
		Rating           float64 `json:"rating"`
		UserRatingCount  int     `json:"userRatingCount"`
		Location         struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"location"`
		NationalPhoneNumber      string `json:"nationalPhoneNumber"`
		InternationalPhoneNumber string `json:"internationalPhoneNumber"`
		WebsiteURI               string `json:"websiteUri"`
		CurrentOpeningHours      *struct {
			OpenNow *bool `json:"openNow"`
		} `json:"currentOpeningHours"`
	} `json:"places"`
}

func (s *Service) textSearch(ctx context.Context, req ports.DirectorySearch, lat, lng float64) ([]domain.Provider, error) {
	body := searchRequest{
		TextQuery:      fmt.Sprintf("%s near %s", req.ServiceType, req.Location),
		MaxResultCount: maxSearchResults,
	}
	body.LocationBias.Circle.Center.Latitude = lat
	body.LocationBias.Circle.Center.Longitude = lng
	body.LocationBias.Circle.Radius = req.MaxDistance * metersPerMile

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.GetPlacesSearchURL(), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Goog-Api-Key", s.cfg.GetPlacesAPIKey())
	httpReq.Header.Set("X-Goog-FieldMask", placesFieldMask)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upstream api error: %d", resp.StatusCode)
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}

	providers := make([]domain.Provider, 0, len(out.Places))
	for _, place := range out.Places {
		p := domain.Provider{
			ID:                 place.ID,
			Name:               place.DisplayName.Text,
			Phone:              phone.NormalizeE164(place.NationalPhoneNumber),
			NationalPhone:      place.NationalPhoneNumber,
			InternationalPhone: place.InternationalPhoneNumber,
			Address:            place.FormattedAddress,
			Lat:                place.Location.Latitude,
			Lng:                place.Location.Longitude,
			Rating:             place.Rating,
			ReviewCount:        place.UserRatingCount,
			Website:            place.WebsiteURI,
		}
		if place.CurrentOpeningHours != nil {
			p.OpenNow = place.CurrentOpeningHours.OpenNow
		}
		providers = append(providers, p)
	}
	return providers, nil
}

type distanceResponse struct {
	Rows []struct {
		Elements []struct {
			Status   string `json:"status"`
			Distance struct {
				Value int `json:"value"`
			} `json:"distance"`
			Duration struct {
				Value int `json:"value"`
			} `json:"duration"`
		} `json:"elements"`
	} `json:"rows"`
}

// annotateDistances fills DistanceMiles and TravelMinutes in place.
func (s *Service) annotateDistances(ctx context.Context, originLat, originLng float64, providers []domain.Provider) error {
	if len(providers) == 0 {
		return nil
	}

	dests := make([]string, len(providers))
	for i, p := range providers {
		dests[i] = fmt.Sprintf("%f,%f", p.Lat, p.Lng)
	}

	params := url.Values{}
	params.Set("origins", fmt.Sprintf("%f,%f", originLat, originLng))
	params.Set("destinations", strings.Join(dests, "|"))
	params.Set("mode", "driving")
	params.Set("key", s.cfg.GetPlacesAPIKey())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.GetDistanceMatrixURL()+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upstream api error: %d", resp.StatusCode)
	}

	var out distanceResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return err
	}
	if len(out.Rows) == 0 {
		return fmt.Errorf("empty distance matrix response")
	}

	for i := range providers {
		if i >= len(out.Rows[0].Elements) {
			providers[i].DistanceMiles = unknownTravel
			providers[i].TravelMinutes = unknownTravel
			continue
		}
		el := out.Rows[0].Elements[i]
		if el.Status != "OK" {
			providers[i].DistanceMiles = unknownTravel
			providers[i].TravelMinutes = unknownTravel
			continue
		}
		providers[i].DistanceMiles = float64(int(float64(el.Distance.Value)/metersPerMile*10+0.5)) / 10
		providers[i].TravelMinutes = (el.Duration.Value + 30) / 60
	}
	return nil
}
