package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"mdnotes/internal/markdown"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreMemory   = "memory"

	LocalEngineBuiltin      = "builtin"
	LocalEngineLanguageTool = "languagetool"

	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
	ProviderNone   = "none"
)

// Config holds application configuration
type Config struct {
	LogLevel string
	Encoding markdown.Encoding
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Grammar  GrammarConfig
}

type ServerConfig struct {
	Addr              string
	CORSAllowedOrigin string
	MaxUploadBytes    int64
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
}

// DatabaseConfig selects the note store. The Postgres fields use the same
// lower-case variables as the original deployment (user, password, host...).
type DatabaseConfig struct {
	Driver     string
	URL        string
	User       string
	Password   string
	Host       string
	Port       string
	Name       string
	SSLMode    string
	SQLitePath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

type GrammarConfig struct {
	LocalEngine     string
	LanguageToolURL string
	Language        string

	RemoteProvider string
	GeminiAPIKey   string
	GeminiModel    string
	GeminiBaseURL  string
	OllamaURL      string
	OllamaModel    string
	RemoteTimeout  time.Duration
	RemoteRetries  int
}

// Load reads .env when present, then the environment, and validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.AutomaticEnv()

	v.SetDefault("SERVER_ADDR", ":8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGIN", "*")
	v.SetDefault("MAX_UPLOAD_BYTES", 5<<20)
	v.SetDefault("NOTES_ENCODING", string(markdown.UTF8))
	v.SetDefault("NOTES_STORE", StoreMemory)
	v.SetDefault("SQLITE_PATH", "notes.db")
	v.SetDefault("NOTE_CACHE_TTL", 10*time.Minute)
	v.SetDefault("GRAMMAR_LOCAL_ENGINE", LocalEngineBuiltin)
	v.SetDefault("LANGUAGETOOL_URL", "http://localhost:8081")
	v.SetDefault("GRAMMAR_LANGUAGE", "en-US")
	v.SetDefault("REMOTE_GRAMMAR_PROVIDER", ProviderGemini)
	v.SetDefault("GEMINI_MODEL", "gemini-2.5-flash")
	v.SetDefault("OLLAMA_URL", "http://localhost:11434")
	v.SetDefault("OLLAMA_MODEL", "llama3.1")
	v.SetDefault("REMOTE_GRAMMAR_TIMEOUT", 30*time.Second)
	v.SetDefault("REMOTE_GRAMMAR_RETRIES", 2)
	v.SetDefault("pg_port", "5432")
	v.SetDefault("pg_sslmode", "require")

	// AutomaticEnv upper-cases keys, so the lower-case Postgres variables need explicit bindings.
	for key, env := range map[string]string{
		"pg_user": "user", "pg_password": "password", "pg_host": "host",
		"pg_port": "port", "pg_dbname": "dbname", "pg_sslmode": "sslmode",
	} {
		if err := v.BindEnv(key, env); err != nil {
			return nil, err
		}
	}

	enc, err := markdown.ParseEncoding(v.GetString("NOTES_ENCODING"))
	if err != nil {
		return nil, fmt.Errorf("NOTES_ENCODING: %w", err)
	}

	cfg := &Config{
		LogLevel: strings.ToLower(v.GetString("LOG_LEVEL")),
		Encoding: enc,
		Server: ServerConfig{
			Addr:              v.GetString("SERVER_ADDR"),
			CORSAllowedOrigin: v.GetString("CORS_ALLOWED_ORIGIN"),
			MaxUploadBytes:    v.GetInt64("MAX_UPLOAD_BYTES"),
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      2 * time.Minute,
		},
		Database: DatabaseConfig{
			Driver:     strings.ToLower(v.GetString("NOTES_STORE")),
			URL:        strings.TrimSpace(v.GetString("DATABASE_URL")),
			User:       strings.TrimSpace(v.GetString("pg_user")),
			Password:   strings.TrimSpace(v.GetString("pg_password")),
			Host:       strings.TrimSpace(v.GetString("pg_host")),
			Port:       strings.TrimSpace(v.GetString("pg_port")),
			Name:       strings.TrimSpace(v.GetString("pg_dbname")),
			SSLMode:    strings.TrimSpace(v.GetString("pg_sslmode")),
			SQLitePath: v.GetString("SQLITE_PATH"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			TTL:      v.GetDuration("NOTE_CACHE_TTL"),
		},
		Grammar: GrammarConfig{
			LocalEngine:     strings.ToLower(v.GetString("GRAMMAR_LOCAL_ENGINE")),
			LanguageToolURL: v.GetString("LANGUAGETOOL_URL"),
			Language:        v.GetString("GRAMMAR_LANGUAGE"),
			RemoteProvider:  strings.ToLower(v.GetString("REMOTE_GRAMMAR_PROVIDER")),
			GeminiAPIKey:    v.GetString("GEMINI_API_KEY"),
			GeminiModel:     v.GetString("GEMINI_MODEL"),
			GeminiBaseURL:   v.GetString("GEMINI_BASE_URL"),
			OllamaURL:       v.GetString("OLLAMA_URL"),
			OllamaModel:     v.GetString("OLLAMA_MODEL"),
			RemoteTimeout:   v.GetDuration("REMOTE_GRAMMAR_TIMEOUT"),
			RemoteRetries:   v.GetInt("REMOTE_GRAMMAR_RETRIES"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.Server),
		validation.Field(&c.Database),
		validation.Field(&c.Redis),
		validation.Field(&c.Grammar),
	)
}

func (s ServerConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Addr, validation.Required),
		validation.Field(&s.MaxUploadBytes, validation.Required, validation.Min(int64(1))),
	)
}

func (d DatabaseConfig) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Driver, validation.Required, validation.In(StorePostgres, StoreSQLite, StoreMemory)),
		validation.Field(&d.URL, validation.When(d.Driver == StorePostgres && d.Host == "", validation.Required.Error("DATABASE_URL or host is required for the postgres store"))),
		validation.Field(&d.SQLitePath, validation.When(d.Driver == StoreSQLite, validation.Required)),
	)
}

func (r RedisConfig) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.DB, validation.Min(0)),
		validation.Field(&r.TTL, validation.When(r.Addr != "", validation.Required)),
	)
}

func (g GrammarConfig) Validate() error {
	return validation.ValidateStruct(&g,
		validation.Field(&g.LocalEngine, validation.In(LocalEngineBuiltin, LocalEngineLanguageTool)),
		validation.Field(&g.LanguageToolURL, validation.When(g.LocalEngine == LocalEngineLanguageTool, validation.Required, validation.By(absoluteURL))),
		validation.Field(&g.RemoteProvider, validation.In(ProviderGemini, ProviderOllama, ProviderNone)),
		validation.Field(&g.GeminiAPIKey, validation.When(g.RemoteProvider == ProviderGemini, validation.Required.Error("GEMINI_API_KEY is required for the gemini provider"))),
		validation.Field(&g.OllamaURL, validation.When(g.RemoteProvider == ProviderOllama, validation.Required, validation.By(absoluteURL))),
		validation.Field(&g.RemoteTimeout, validation.Required),
		validation.Field(&g.RemoteRetries, validation.Min(0), validation.Max(10)),
	)
}

func absoluteURL(value any) error {
	s, _ := value.(string)
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("must be an absolute URL")
	}
	return nil
}

// PostgresDSN returns DATABASE_URL when set, otherwise builds the URL from the
// individual connection variables.
func (d DatabaseConfig) PostgresDSN() string {
	if d.URL != "" {
		return d.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     d.Host + ":" + d.Port,
		Path:     "/" + d.Name,
		RawQuery: "sslmode=" + d.SSLMode,
	}
	return u.String()
}
