package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the process-wide configuration, loaded once at startup.
// Components receive the sections they need by reference; nothing reads
// the environment after Load returns.
type Config struct {
	Server     ServerConfig
	LLM        LLMConfig
	Discussion DiscussionConfig
	Storage    StorageConfig
	Research   ResearchConfig
	Monitoring MonitoringConfig
}

type ServerConfig struct {
	Host           string
	Port           string
	Mode           string // "debug" or "release"
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestLogging bool
}

// LLMConfig describes every completion backend, the per-role routing
// table, and the shared quota bookkeeping parameters.
type LLMConfig struct {
	Backends       map[string]BackendConfig
	Roles          map[string]RoleMapping
	ResetHourUTC   int
	RequestTimeout time.Duration
}

// BackendConfig is the static description of one completion backend.
type BackendConfig struct {
	Name           string
	Wire           string // "gemini" or "openai"
	BaseURL        string
	Models         map[string]string // logical name -> concrete model id
	DailyLimit     int
	CostPerRequest float64
	Enabled        bool
	Credentials    []CredentialSlot
}

// CredentialSlot is one API key in a backend's rotation pool.
type CredentialSlot struct {
	Label string
	Key   string
}

// RoleMapping routes one agent role to its primary and fallback backend.
type RoleMapping struct {
	Primary      string
	Fallback     string
	LogicalModel string
}

type DiscussionConfig struct {
	MaxRounds         int
	MaxAgentsPerRound int
	ContextWindow     int
	DemoMode          bool
}

type StorageConfig struct {
	Dir     string
	Formats []string
}

type ResearchConfig struct {
	APIKey     string
	EngineID   string
	CacheDir   string
	MaxResults int
	Timeout    time.Duration
}

type MonitoringConfig struct {
	MetricsEnabled bool
	MetricsPath    string
	LogLevel       string
}

// Model resolves a logical model name against a backend, falling back to
// the backend's primary model when the logical name is not mapped.
func (b BackendConfig) Model(logical string) string {
	if m, ok := b.Models[logical]; ok {
		return m
	}
	return b.Models["primary"]
}

// Load reads the full configuration from the environment.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnv("PORT", "8080"),
			Mode:           getEnv("GIN_MODE", "release"),
			ReadTimeout:    getDurationEnv("READ_TIMEOUT", 30*time.Second),
			WriteTimeout:   getDurationEnv("WRITE_TIMEOUT", 30*time.Second),
			RequestLogging: getBoolEnv("REQUEST_LOGGING", true),
		},
		LLM: LLMConfig{
			Backends:       loadBackends(),
			Roles:          loadRoleMappings(),
			ResetHourUTC:   getIntEnv("QUOTA_RESET_HOUR_UTC", 0),
			RequestTimeout: getDurationEnv("LLM_REQUEST_TIMEOUT", 30*time.Second),
		},
		Discussion: DiscussionConfig{
			MaxRounds:         getIntEnv("MAX_ROUNDS", 10),
			MaxAgentsPerRound: getIntEnv("MAX_AGENTS_PER_ROUND", 2),
			ContextWindow:     getIntEnv("CONTEXT_WINDOW", 3),
			DemoMode:          getBoolEnv("DEMO_MODE", false),
		},
		Storage: StorageConfig{
			Dir:     getEnv("CONVERSATIONS_DIR", "conversations"),
			Formats: getEnvSlice("SAVE_FORMATS", []string{"json", "markdown"}),
		},
		Research: ResearchConfig{
			APIKey:     getEnv("GOOGLE_SEARCH_API_KEY", ""),
			EngineID:   getEnv("GOOGLE_CSE_ID", ""),
			CacheDir:   getEnv("RESEARCH_CACHE_DIR", "research_cache"),
			MaxResults: getIntEnv("RESEARCH_MAX_RESULTS", 5),
			Timeout:    getDurationEnv("RESEARCH_TIMEOUT", 10*time.Second),
		},
		Monitoring: MonitoringConfig{
			MetricsEnabled: getBoolEnv("METRICS_ENABLED", true),
			MetricsPath:    getEnv("METRICS_PATH", "/metrics"),
			LogLevel:       getEnv("LOG_LEVEL", "info"),
		},
	}
}

func loadBackends() map[string]BackendConfig {
	return map[string]BackendConfig{
		"gemini": {
			Name:    "Google AI Studio",
			Wire:    "gemini",
			BaseURL: getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/models"),
			Models: map[string]string{
				"primary": getEnv("GEMINI_MODEL_PRIMARY", "gemini-1.5-flash"),
				"premium": getEnv("GEMINI_MODEL_PREMIUM", "gemini-1.5-pro"),
				"fast":    getEnv("GEMINI_MODEL_FAST", "gemini-1.5-flash-8b"),
			},
			DailyLimit:     getIntEnv("GEMINI_DAILY_LIMIT", 1500),
			CostPerRequest: getFloatEnv("GEMINI_COST_PER_REQUEST", 0.0),
			Enabled:        getBoolEnv("GEMINI_ENABLED", true),
			Credentials:    loadCredentialPool("GEMINI_API_KEY", 5),
		},
		"groq": {
			Name:    "Groq",
			Wire:    "openai",
			BaseURL: getEnv("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
			Models: map[string]string{
				"primary": getEnv("GROQ_MODEL_PRIMARY", "llama-3.1-70b-versatile"),
				"fast":    getEnv("GROQ_MODEL_FAST", "llama-3.1-8b-instant"),
				"premium": getEnv("GROQ_MODEL_PREMIUM", "mixtral-8x7b-32768"),
			},
			DailyLimit:     getIntEnv("GROQ_DAILY_LIMIT", 6000),
			CostPerRequest: getFloatEnv("GROQ_COST_PER_REQUEST", 0.0),
			Enabled:        getBoolEnv("GROQ_ENABLED", false),
			Credentials:    loadCredentialPool("GROQ_API_KEY", 1),
		},
		"openrouter": {
			Name:    "OpenRouter",
			Wire:    "openai",
			BaseURL: getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
			Models: map[string]string{
				"primary": getEnv("OPENROUTER_MODEL_PRIMARY", "meta-llama/llama-3.1-8b-instruct:free"),
				"backup":  getEnv("OPENROUTER_MODEL_BACKUP", "microsoft/phi-3-mini-128k-instruct:free"),
			},
			DailyLimit:     getIntEnv("OPENROUTER_DAILY_LIMIT", 50),
			CostPerRequest: getFloatEnv("OPENROUTER_COST_PER_REQUEST", 0.0),
			Enabled:        getBoolEnv("OPENROUTER_ENABLED", false),
			Credentials:    loadCredentialPool("OPENROUTER_API_KEY", 1),
		},
		"cerebras": {
			Name:    "Cerebras",
			Wire:    "openai",
			BaseURL: getEnv("CEREBRAS_BASE_URL", "https://api.cerebras.ai/v1"),
			Models: map[string]string{
				"primary":  getEnv("CEREBRAS_MODEL_PRIMARY", "llama3.1-70b"),
				"analysis": getEnv("CEREBRAS_MODEL_ANALYSIS", "llama3.1-8b"),
			},
			DailyLimit:     getIntEnv("CEREBRAS_DAILY_LIMIT", 30),
			CostPerRequest: getFloatEnv("CEREBRAS_COST_PER_REQUEST", 0.0),
			Enabled:        getBoolEnv("CEREBRAS_ENABLED", false),
			Credentials:    loadCredentialPool("CEREBRAS_API_KEY", 1),
		},
	}
}

func loadRoleMappings() map[string]RoleMapping {
	return map[string]RoleMapping{
		"skeptic":     {Primary: "gemini", Fallback: "groq", LogicalModel: "primary"},
		"synthesizer": {Primary: "gemini", Fallback: "groq", LogicalModel: "premium"},
		"analyst":     {Primary: "gemini", Fallback: "cerebras", LogicalModel: "premium"},
		"explorer":    {Primary: "gemini", Fallback: "groq", LogicalModel: "primary"},
	}
}

// loadCredentialPool collects the rotation pool for a backend. Numbered
// slots (PREFIX_1..PREFIX_n) are read first; a bare PREFIX key is used
// when no numbered slot is set.
func loadCredentialPool(prefix string, maxSlots int) []CredentialSlot {
	var pool []CredentialSlot
	for i := 1; i <= maxSlots; i++ {
		envKey := prefix + "_" + strconv.Itoa(i)
		if key := os.Getenv(envKey); key != "" {
			pool = append(pool, CredentialSlot{Label: envKey, Key: key})
		}
	}
	if len(pool) == 0 {
		if key := os.Getenv(prefix); key != "" {
			pool = append(pool, CredentialSlot{Label: prefix, Key: key})
		}
	}
	return pool
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
