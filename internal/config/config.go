package config

import (
	"errors"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"

	HistoryMemory   = "memory"
	HistoryRedis    = "redis"
	HistoryPostgres = "postgres"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort string `env:"HTTP_PORT" envDefault:"8080"`
	AppEnv   string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"LOG_FILE"`

	LLMProvider   string `env:"LLM_PROVIDER" envDefault:"gemini"`
	GeminiAPIKey  string `env:"GEMINI_API_KEY"`
	GoogleAPIKey  string `env:"GOOGLE_API_KEY"`
	GeminiModel   string `env:"GEMINI_MODEL" envDefault:"gemini-1.5-flash"`
	GeminiBaseURL string `env:"GEMINI_BASE_URL"`
	LLMAPIKey     string `env:"LLM_API_KEY"`
	LLMBaseURL    string `env:"LLM_BASE_URL" envDefault:"https://api.openai.com/v1"`
	LLMModel      string `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`

	BuddyModelTimeout   time.Duration `env:"BUDDY_MODEL_TIMEOUT" envDefault:"15s"`
	BuddyContextTurns   int           `env:"BUDDY_CONTEXT_TURNS" envDefault:"10"`
	BuddyMaxMessageChar int           `env:"BUDDY_MAX_MESSAGE_CHARS" envDefault:"4000"`
	BuddyHistoryLimit   int           `env:"BUDDY_HISTORY_LIMIT" envDefault:"200"`
	BuddySystemPrompt   string        `env:"BUDDY_SYSTEM_PROMPT"`

	HistoryBackend string `env:"HISTORY_BACKEND" envDefault:"memory"`
	DatabaseURL    string `env:"DATABASE_URL"`
	RedisAddr      string `env:"REDIS_ADDR"`
	RedisPassword  string `env:"REDIS_PASSWORD"`
	RedisDB        int    `env:"REDIS_DB" envDefault:"0"`

	JWTSecret    string        `env:"JWT_SECRET"`
	SessionTTL   time.Duration `env:"SESSION_TTL" envDefault:"168h"`
	DemoSessions bool          `env:"DEMO_SESSIONS" envDefault:"false"`

	APIRateLimit  int           `env:"API_RATE_LIMIT" envDefault:"60"`
	APIRateWindow time.Duration `env:"API_RATE_WINDOW" envDefault:"1m"`
}

var (
	ErrUnknownProvider       = errors.New("unknown llm provider")
	ErrUnknownHistoryBackend = errors.New("unknown history backend")
	ErrDatabaseURLRequired   = errors.New("DATABASE_URL is required for the postgres history backend")
	ErrRedisAddrRequired     = errors.New("REDIS_ADDR is required for the redis history backend")
)

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.LLMProvider = strings.ToLower(strings.TrimSpace(c.LLMProvider))
	c.HistoryBackend = strings.ToLower(strings.TrimSpace(c.HistoryBackend))
	c.AppEnv = strings.ToLower(strings.TrimSpace(c.AppEnv))
}

// Validate revisa combinaciones invalidas. Una credencial de modelo ausente NO es un error:
// Buddy arranca en modo "sin configurar" y responde con textos predefinidos.
func (c *Config) Validate() error {
	switch c.LLMProvider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return ErrUnknownProvider
	}
	switch c.HistoryBackend {
	case HistoryMemory:
	case HistoryRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			return ErrRedisAddrRequired
		}
	case HistoryPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return ErrDatabaseURLRequired
		}
	default:
		return ErrUnknownHistoryBackend
	}
	return nil
}

// ModelAPIKey devuelve la credencial del proveedor elegido. GEMINI_API_KEY tiene prioridad sobre GOOGLE_API_KEY.
func (c *Config) ModelAPIKey() string {
	if c.LLMProvider == ProviderOpenAI {
		return strings.TrimSpace(c.LLMAPIKey)
	}
	if key := strings.TrimSpace(c.GeminiAPIKey); key != "" {
		return key
	}
	return strings.TrimSpace(c.GoogleAPIKey)
}

// ModelName devuelve el identificador de modelo del proveedor elegido.
func (c *Config) ModelName() string {
	if c.LLMProvider == ProviderOpenAI {
		return c.LLMModel
	}
	return c.GeminiModel
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// DemoSessionsEnabled nunca habilita sesiones demo en produccion.
func (c *Config) DemoSessionsEnabled() bool {
	return c.DemoSessions && !c.IsProduction()
}
