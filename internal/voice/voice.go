// Package voice opens outbound negotiation calls through the ElevenLabs
// conversational agent API and answers status polls on running sessions.
package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"callpilot_backend/internal/campaign/domain"
	"callpilot_backend/internal/campaign/ports"
	"callpilot_backend/platform/config"
	"callpilot_backend/platform/logger"
)

const agentName = "Alex"

// Service implements ports.Voice against the ElevenLabs Twilio integration.
type Service struct {
	client  *http.Client
	cfg     config.VoiceConfig
	log     *logger.Logger
	limiter *rate.Limiter
}

var _ ports.Voice = (*Service)(nil)

func NewService(cfg config.VoiceConfig, log *logger.Logger) *Service {
	perSecond := cfg.GetVoiceCallsPerSecond()
	if perSecond <= 0 {
		perSecond = 1
	}
	return &Service{
		client:  &http.Client{Timeout: 30 * time.Second},
		cfg:     cfg,
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
	}
}

// dialNumber returns the number to actually dial. With spam prevention on,
// real provider numbers are swapped for a rotating safe test number.
func (s *Service) dialNumber(index int, real string) string {
	safe := s.cfg.GetSafeNumbers()
	if !s.cfg.GetSpamPrevent() || len(safe) == 0 {
		return real
	}
	number := safe[index%len(safe)]
	s.log.Info("spam prevention active", "dialing", number, "instead_of", real)
	return number
}

type outboundCallRequest struct {
	AgentID            string       `json:"agent_id"`
	AgentPhoneNumberID string       `json:"agent_phone_number_id"`
	ToNumber           string       `json:"to_number"`
	InitData           outboundInit `json:"conversation_initiation_client_data"`
}

type outboundInit struct {
	DynamicVariables map[string]string `json:"dynamic_variables"`
}

type outboundCallResponse struct {
	ConversationID string `json:"conversation_id"`
}

// StartSession triggers one outbound call. The returned session ID is the
// ElevenLabs conversation ID, also echoed back by post-call webhooks.
func (s *Service) StartSession(ctx context.Context, req ports.StartSession) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}

	payload := outboundCallRequest{
		AgentID:            s.cfg.GetVoiceAgentID(),
		AgentPhoneNumberID: s.cfg.GetVoiceAgentPhoneID(),
		ToNumber:           s.dialNumber(req.CallIndex, req.PhoneNumber),
		InitData: outboundInit{
			DynamicVariables: map[string]string{
				"campaign_id":        req.CampaignID,
				"provider_id":        req.ProviderID,
				"provider_name":      req.ProviderName,
				"service_type":       req.ServiceType,
				"preferred_date":     req.PreferredDate,
				"agent_name":         agentName,
				"current_best_offer": req.BestOffer,
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.cfg.GetVoiceAPIBaseURL()+"/v1/convai/twilio/outbound-call", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", s.cfg.GetVoiceAPIKey())

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("outbound call rejected: %d %s", resp.StatusCode, text)
	}

	var out outboundCallResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.ConversationID == "" {
		return "", fmt.Errorf("outbound call response missing conversation id")
	}

	s.log.CallEvent("call_triggered", req.CampaignID, req.ProviderID)
	return out.ConversationID, nil
}

type conversationResponse struct {
	Status     string `json:"status"`
	Transcript []struct {
		Role           string `json:"role"`
		Message        string `json:"message"`
		TimeInCallSecs int    `json:"time_in_call_secs"`
	} `json:"transcript"`
}

// SessionState polls one conversation. Ended is true once the upstream
// reports a terminal status.
func (s *Service) SessionState(ctx context.Context, sessionID string) (ports.SessionState, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.cfg.GetVoiceAPIBaseURL()+"/v1/convai/conversations/"+sessionID, nil)
	if err != nil {
		return ports.SessionState{}, err
	}
	httpReq.Header.Set("xi-api-key", s.cfg.GetVoiceAPIKey())

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return ports.SessionState{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ports.SessionState{}, fmt.Errorf("upstream api error: %d", resp.StatusCode)
	}

	var out conversationResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ports.SessionState{}, err
	}

	state := ports.SessionState{Status: out.Status, Ended: isTerminalStatus(out.Status)}
	for _, entry := range out.Transcript {
		state.Transcript = append(state.Transcript, domain.TranscriptEntry{
			Role:      entry.Role,
			Text:      entry.Message,
			OffsetSec: entry.TimeInCallSecs,
		})
	}
	return state, nil
}

func isTerminalStatus(status string) bool {
	switch status {
	case "done", "ended", "failed":
		return true
	}
	return false
}
