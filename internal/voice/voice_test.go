package voice

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
	baseURL     string
	spamPrevent bool
	safeNumbers []string
}

func (c testConfig) GetVoiceAPIBaseURL() string      { return c.baseURL }
func (c testConfig) GetVoiceAPIKey() string          { return "xi-test" }
func (c testConfig) GetVoiceAgentID() string         { return "agent-1" }
func (c testConfig) GetVoiceAgentPhoneID() string    { return "phone-1" }
func (c testConfig) GetSpamPrevent() bool            { return c.spamPrevent }
func (c testConfig) GetSafeNumbers() []string        { return c.safeNumbers }
func (c testConfig) GetVoiceCallsPerSecond() float64 { return 100 }

func TestStartSessionSendsDynamicVariables(t *testing.T) {
	var got outboundCallRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/convai/twilio/outbound-call" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("xi-api-key") != "xi-test" {
			t.Errorf("missing api key header")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{"conversation_id": "conv-1"})
	}))
	defer srv.Close()

	svc := NewService(testConfig{baseURL: srv.URL}, logger.New("test"))

	id, err := svc.StartSession(context.Background(), ports.StartSession{
		PhoneNumber:   "+15125550100",
		CampaignID:    "camp_1",
		ProviderID:    "prov-1",
		ProviderName:  "Bright Smile",
		ServiceType:   "dentist",
		PreferredDate: "2026-09-02",
		BestOffer:     "none yet",
	})
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	if id != "conv-1" {
		t.Errorf("session id = %q", id)
	}
	if got.AgentID != "agent-1" || got.AgentPhoneNumberID != "phone-1" {
		t.Errorf("agent fields = %q %q", got.AgentID, got.AgentPhoneNumberID)
	}
	if got.ToNumber != "+15125550100" {
		t.Errorf("to_number = %q", got.ToNumber)
	}
	vars := got.InitData.DynamicVariables
	if vars["campaign_id"] != "camp_1" || vars["provider_name"] != "Bright Smile" {
		t.Errorf("dynamic variables = %v", vars)
	}
	if vars["agent_name"] != "Alex" || vars["current_best_offer"] != "none yet" {
		t.Errorf("dynamic variables = %v", vars)
	}
}

func TestStartSessionRotatesSafeNumbers(t *testing.T) {
	var dialed []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req outboundCallRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		dialed = append(dialed, req.ToNumber)
		json.NewEncoder(w).Encode(map[string]string{"conversation_id": "conv"})
	}))
	defer srv.Close()

	svc := NewService(testConfig{
		baseURL:     srv.URL,
		spamPrevent: true,
		safeNumbers: []string{"+15550000001", "+15550000002"},
	}, logger.New("test"))

	for i := 0; i < 3; i++ {
		if _, err := svc.StartSession(context.Background(), ports.StartSession{
			PhoneNumber: "+15125550100",
			CallIndex:   i,
		}); err != nil {
			t.Fatalf("start %d: %v", i, err)
		}
	}

	want := []string{"+15550000001", "+15550000002", "+15550000001"}
	for i := range want {
		if dialed[i] != want[i] {
			t.Errorf("call %d dialed %q, want %q", i, dialed[i], want[i])
		}
	}
}

func TestStartSessionRejectsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "agent busy", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	svc := NewService(testConfig{baseURL: srv.URL}, logger.New("test"))

	if _, err := svc.StartSession(context.Background(), ports.StartSession{PhoneNumber: "+15125550100"}); err == nil {
		t.Fatal("expected error from upstream rejection")
	}
}

func TestSessionStateMapsTranscript(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/convai/conversations/conv-1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status": "done",
			"transcript": []map[string]any{
				{"role": "agent", "message": "Hello, calling about a dentist appointment.", "time_in_call_secs": 2},
				{"role": "user", "message": "We have Tuesday at 10am.", "time_in_call_secs": 9},
			},
		})
	}))
	defer srv.Close()

	svc := NewService(testConfig{baseURL: srv.URL}, logger.New("test"))

	state, err := svc.SessionState(context.Background(), "conv-1")
	if err != nil {
		t.Fatalf("session state: %v", err)
	}
	if !state.Ended || state.Status != "done" {
		t.Errorf("state = %+v", state)
	}
	if len(state.Transcript) != 2 {
		t.Fatalf("transcript entries = %d", len(state.Transcript))
	}
	if state.Transcript[1].Role != "user" || state.Transcript[1].OffsetSec != 9 {
		t.Errorf("entry = %+v", state.Transcript[1])
	}
}

func TestSessionStateInProgress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"status": "in-progress"})
	}))
	defer srv.Close()

	svc := NewService(testConfig{baseURL: srv.URL}, logger.New("test"))

	state, err := svc.SessionState(context.Background(), "conv-2")
	if err != nil {
		t.Fatalf("session state: %v", err)
	}
	if state.Ended {
		t.Error("in-progress call reported as ended")
	}
}
