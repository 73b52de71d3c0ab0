// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// CampaignConfig provides the orchestration timings and caps used by the
// campaign runner, wave dispatcher, and session trackers.
type CampaignConfig interface {
	GetMaxCampaignsPerGroup() int
	GetMaxProvidersPerCampaign() int
	GetCallStagger() time.Duration
	GetWaveSettleDelay() time.Duration
	GetPollInterval() time.Duration
	GetMaxCallWait() time.Duration
	GetDateRangeDays() int
}

// VoiceConfig provides settings for the outbound negotiation channel.
type VoiceConfig interface {
	GetVoiceAPIBaseURL() string
	GetVoiceAPIKey() string
	GetVoiceAgentID() string
	GetVoiceAgentPhoneID() string
	GetSpamPrevent() bool
	GetSafeNumbers() []string
	GetVoiceCallsPerSecond() float64
}

// PlacesConfig provides settings for the provider directory service.
type PlacesConfig interface {
	GetPlacesAPIKey() string
	GetPlacesSearchURL() string
	GetGeocodeURL() string
	GetDistanceMatrixURL() string
}

// CalendarConfig provides settings for the user's calendar collaborator.
type CalendarConfig interface {
	GetCalendarAPIURL() string
	GetCalendarAPIKey() string
	IsCalendarEnabled() bool
}

// StoreConfig provides settings for the campaign group store backend.
type StoreConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	IsRedisStoreEnabled() bool
}

// SchedulerConfig provides settings for background task scheduling.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// EmailConfig provides settings for booking confirmation emails.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env            string
	HTTPAddr       string
	CORSAllowAll   bool
	CORSOrigins    []string
	CORSAllowCreds bool

	MaxCampaignsPerGroup    int
	MaxProvidersPerCampaign int
	CallStagger             time.Duration
	WaveSettleDelay         time.Duration
	PollInterval            time.Duration
	MaxCallWait             time.Duration
	DateRangeDays           int

	VoiceAPIBaseURL     string
	VoiceAPIKey         string
	VoiceAgentID        string
	VoiceAgentPhoneID   string
	SpamPrevent         bool
	SafeNumbers         []string
	VoiceCallsPerSecond float64

	PlacesAPIKey      string
	PlacesSearchURL   string
	GeocodeURL        string
	DistanceMatrixURL string

	CalendarAPIURL string
	CalendarAPIKey string

	RedisURL         string
	RedisTLSInsecure bool
	RedisStore       bool
	AsynqQueueName   string
	AsynqConcurrency int

	EmailEnabled     bool
	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string
	EmailFromName    string
	EmailFromAddress string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// CampaignConfig implementation
func (c *Config) GetMaxCampaignsPerGroup() int      { return c.MaxCampaignsPerGroup }
func (c *Config) GetMaxProvidersPerCampaign() int   { return c.MaxProvidersPerCampaign }
func (c *Config) GetCallStagger() time.Duration     { return c.CallStagger }
func (c *Config) GetWaveSettleDelay() time.Duration { return c.WaveSettleDelay }
func (c *Config) GetPollInterval() time.Duration    { return c.PollInterval }
func (c *Config) GetMaxCallWait() time.Duration     { return c.MaxCallWait }
func (c *Config) GetDateRangeDays() int             { return c.DateRangeDays }

// VoiceConfig implementation
func (c *Config) GetVoiceAPIBaseURL() string      { return c.VoiceAPIBaseURL }
func (c *Config) GetVoiceAPIKey() string          { return c.VoiceAPIKey }
func (c *Config) GetVoiceAgentID() string         { return c.VoiceAgentID }
func (c *Config) GetVoiceAgentPhoneID() string    { return c.VoiceAgentPhoneID }
func (c *Config) GetSpamPrevent() bool            { return c.SpamPrevent }
func (c *Config) GetSafeNumbers() []string        { return c.SafeNumbers }
func (c *Config) GetVoiceCallsPerSecond() float64 { return c.VoiceCallsPerSecond }

// PlacesConfig implementation
func (c *Config) GetPlacesAPIKey() string      { return c.PlacesAPIKey }
func (c *Config) GetPlacesSearchURL() string   { return c.PlacesSearchURL }
func (c *Config) GetGeocodeURL() string        { return c.GeocodeURL }
func (c *Config) GetDistanceMatrixURL() string { return c.DistanceMatrixURL }

// CalendarConfig implementation
func (c *Config) GetCalendarAPIURL() string { return c.CalendarAPIURL }
func (c *Config) GetCalendarAPIKey() string { return c.CalendarAPIKey }
func (c *Config) IsCalendarEnabled() bool   { return c.CalendarAPIURL != "" }

// StoreConfig / SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) IsRedisStoreEnabled() bool { return c.RedisStore && c.RedisURL != "" }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// EmailConfig implementation
func (c *Config) GetEmailEnabled() bool       { return c.EmailEnabled }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:            getEnv("APP_ENV", "development"),
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		CORSAllowAll:   corsAllowAll,
		CORSOrigins:    corsOrigins,
		CORSAllowCreds: strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),

		MaxCampaignsPerGroup:    mustInt(getEnv("MAX_CAMPAIGNS_PER_GROUP", "4")),
		MaxProvidersPerCampaign: mustInt(getEnv("MAX_PROVIDERS_PER_CAMPAIGN", "5")),
		CallStagger:             mustDuration(getEnv("CALL_STAGGER", "1s")),
		WaveSettleDelay:         mustDuration(getEnv("WAVE_SETTLE_DELAY", "45s")),
		PollInterval:            mustDuration(getEnv("CALL_POLL_INTERVAL", "5s")),
		MaxCallWait:             mustDuration(getEnv("MAX_CALL_WAIT", "3m")),
		DateRangeDays:           mustInt(getEnv("DATE_RANGE_DAYS", "7")),

		VoiceAPIBaseURL:     getEnv("VOICE_API_BASE_URL", "https://api.elevenlabs.io"),
		VoiceAPIKey:         getEnv("VOICE_API_KEY", ""),
		VoiceAgentID:        getEnv("VOICE_AGENT_ID", ""),
		VoiceAgentPhoneID:   getEnv("VOICE_AGENT_PHONE_ID", ""),
		SpamPrevent:         strings.EqualFold(getEnv("SPAM_PREVENT", "true"), "true"),
		SafeNumbers:         splitCSV(getEnv("SAFE_NUMBERS", "")),
		VoiceCallsPerSecond: mustFloat(getEnv("VOICE_CALLS_PER_SECOND", "1")),

		PlacesAPIKey:      getEnv("PLACES_API_KEY", ""),
		PlacesSearchURL:   getEnv("PLACES_SEARCH_URL", "https://places.googleapis.com/v1/places:searchText"),
		GeocodeURL:        getEnv("GEOCODE_URL", "https://maps.googleapis.com/maps/api/geocode/json"),
		DistanceMatrixURL: getEnv("DISTANCE_MATRIX_URL", "https://maps.googleapis.com/maps/api/distancematrix/json"),

		CalendarAPIURL: getEnv("CALENDAR_API_URL", ""),
		CalendarAPIKey: getEnv("CALENDAR_API_KEY", ""),

		RedisURL:         getEnv("REDIS_URL", ""),
		RedisTLSInsecure: strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		RedisStore:       strings.EqualFold(getEnv("REDIS_STORE", "false"), "true"),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "callpilot"),
		AsynqConcurrency: mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),

		EmailEnabled:     strings.EqualFold(getEnv("EMAIL_ENABLED", "false"), "true"),
		SMTPHost:         getEnv("SMTP_HOST", ""),
		SMTPPort:         mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:     getEnv("SMTP_USERNAME", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),
		EmailFromName:    getEnv("EMAIL_FROM_NAME", "CallPilot"),
		EmailFromAddress: getEnv("EMAIL_FROM_ADDRESS", ""),
	}

	if cfg.VoiceAPIKey != "" && cfg.VoiceAgentID == "" {
		return nil, fmt.Errorf("VOICE_AGENT_ID is required when VOICE_API_KEY is set")
	}
	if cfg.SpamPrevent && cfg.VoiceAPIKey != "" && len(cfg.SafeNumbers) == 0 {
		return nil, fmt.Errorf("SAFE_NUMBERS is required when SPAM_PREVENT is enabled")
	}
	if cfg.EmailEnabled && (cfg.SMTPHost == "" || cfg.EmailFromAddress == "") {
		return nil, fmt.Errorf("SMTP_HOST and EMAIL_FROM_ADDRESS are required when EMAIL_ENABLED is true")
	}
	if cfg.RedisStore && cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required when REDIS_STORE is enabled")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if cfg.MaxCampaignsPerGroup < 1 {
		return nil, fmt.Errorf("MAX_CAMPAIGNS_PER_GROUP must be at least 1")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
