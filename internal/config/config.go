package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all environment-driven settings for the processing
// service. Required storage and persistence settings are checked by
// Validate before any file I/O begins.
type Config struct {
	// Object storage
	StorageBucket   string
	CredentialsFile string

	// BigQuery persistence
	ProjectID string
	Dataset   string

	// Narrative generation
	GeminiModel   string
	NarrativeOff  bool
	SampleRows    int
	RetailTerms   string
	WholesaleTerm string

	// Aggregation
	CorrectionPriority string // "lowest-wins" or "highest-wins"
	CorrectionKey      string // "composite" or "transaction-id"
	TopDrivers         int

	// Trigger surface
	Port        string
	QueueBuffer int
}

// Load reads configuration from the environment, applying defaults for
// everything that has a sensible one.
func Load() *Config {
	return &Config{
		StorageBucket:   getEnv("STORAGE_BUCKET", ""),
		CredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", ""),

		ProjectID: getEnv("BQ_PROJECT_ID", ""),
		Dataset:   getEnv("BQ_DATASET", "budget"),

		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		NarrativeOff:  getEnvBool("NARRATIVE_DISABLED", false),
		SampleRows:    getEnvInt("NARRATIVE_SAMPLE_ROWS", 10),
		RetailTerms:   getEnv("REVENUE_KEYWORDS_RETAIL", "individual, person, private"),
		WholesaleTerm: getEnv("REVENUE_KEYWORDS_WHOLESALE", "company, organization, ltd, llc"),

		CorrectionPriority: getEnv("CORRECTION_PRIORITY", "lowest-wins"),
		CorrectionKey:      getEnv("CORRECTION_KEY", "composite"),
		TopDrivers:         getEnvInt("TOP_COST_DRIVERS", 5),

		Port:        getEnv("PORT", "8080"),
		QueueBuffer: getEnvInt("QUEUE_BUFFER", 100),
	}
}

// Validate checks that the configuration can support a processing
// session. A failure here aborts the session before any download
// starts.
func (c *Config) Validate() error {
	var problems []string

	if c.StorageBucket == "" {
		problems = append(problems, "STORAGE_BUCKET is not set")
	}
	if c.ProjectID == "" {
		problems = append(problems, "BQ_PROJECT_ID is not set")
	}
	if c.Dataset == "" {
		problems = append(problems, "BQ_DATASET cannot be empty")
	}

	switch c.CorrectionPriority {
	case "lowest-wins", "highest-wins":
	default:
		problems = append(problems, fmt.Sprintf("invalid CORRECTION_PRIORITY %q: must be lowest-wins or highest-wins", c.CorrectionPriority))
	}

	switch c.CorrectionKey {
	case "composite", "transaction-id":
	default:
		problems = append(problems, fmt.Sprintf("invalid CORRECTION_KEY %q: must be composite or transaction-id", c.CorrectionKey))
	}

	if c.TopDrivers < 1 {
		problems = append(problems, fmt.Sprintf("invalid TOP_COST_DRIVERS %d: must be at least 1", c.TopDrivers))
	}

	if port, err := strconv.Atoi(c.Port); err != nil {
		problems = append(problems, fmt.Sprintf("invalid port %q: must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(problems, "; "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
