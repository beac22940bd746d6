package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	DriverPostgres = "pgx"
	DriverMySQL    = "mysql"
	DriverDuckDB   = "duckdb"

	// MaxSchemaSampleSize bounds how many documents schema inference reads per
	// collection.
	MaxSchemaSampleSize = 20
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Mongo         MongoConfig
	Schema        SchemaConfig
	AI            AIConfig
	SQL           SQLConfig
	Seed          SeedConfig
	Observability ObservabilityConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	CORSOrigins  []string
}

type MongoConfig struct {
	URI              string
	Databases        []string
	ConnectTimeout   time.Duration
	OperationTimeout time.Duration
	MaxPoolSize      int
}

type SchemaConfig struct {
	SampleSize         int
	DefaultSampleLimit int
	MaxSampleLimit     int
}

type AIConfig struct {
	Provider    string
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
	JSONMode    bool
}

type SQLDatabase struct {
	Name string
	DSN  string
}

type SQLConfig struct {
	Enabled         bool
	Driver          string
	Databases       []SQLDatabase
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
	RowLimit        int
	ExplainResults  bool
}

type SeedConfig struct {
	Database   string
	Users      int
	Orders     int
	RandomSeed int
	Reset      bool
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("CHATDB_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid CHATDB_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	steps := []func() error{
		func() error { return applyString(lookup, "CHATDB_SERVICE_NAME", &cfg.Service.Name) },
		func() error { return applyString(lookup, "CHATDB_HTTP_ADDR", &cfg.HTTP.Address) },
		func() error { return applyDuration(lookup, "CHATDB_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout) },
		func() error { return applyDuration(lookup, "CHATDB_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout) },
		func() error { return applyDuration(lookup, "CHATDB_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout) },
		func() error { return applyList(lookup, "CHATDB_HTTP_CORS_ORIGINS", &cfg.HTTP.CORSOrigins) },
		func() error { return applyString(lookup, "CHATDB_MONGO_URI", &cfg.Mongo.URI) },
		func() error { return applyList(lookup, "CHATDB_MONGO_DATABASES", &cfg.Mongo.Databases) },
		func() error { return applyDuration(lookup, "CHATDB_MONGO_CONNECT_TIMEOUT", &cfg.Mongo.ConnectTimeout) },
		func() error { return applyDuration(lookup, "CHATDB_MONGO_OPERATION_TIMEOUT", &cfg.Mongo.OperationTimeout) },
		func() error { return applyInt(lookup, "CHATDB_MONGO_MAX_POOL_SIZE", &cfg.Mongo.MaxPoolSize) },
		func() error { return applyInt(lookup, "CHATDB_SCHEMA_SAMPLE_SIZE", &cfg.Schema.SampleSize) },
		func() error { return applyInt(lookup, "CHATDB_SCHEMA_DEFAULT_SAMPLE_LIMIT", &cfg.Schema.DefaultSampleLimit) },
		func() error { return applyInt(lookup, "CHATDB_SCHEMA_MAX_SAMPLE_LIMIT", &cfg.Schema.MaxSampleLimit) },
		func() error { return applyString(lookup, "CHATDB_AI_PROVIDER", &cfg.AI.Provider) },
		func() error { return applyString(lookup, "CHATDB_AI_BASE_URL", &cfg.AI.BaseURL) },
		func() error { return applyString(lookup, "CHATDB_AI_API_KEY", &cfg.AI.APIKey) },
		func() error { return applyString(lookup, "CHATDB_AI_MODEL", &cfg.AI.Model) },
		func() error { return applyFloat(lookup, "CHATDB_AI_TEMPERATURE", &cfg.AI.Temperature) },
		func() error { return applyDuration(lookup, "CHATDB_AI_TIMEOUT", &cfg.AI.Timeout) },
		func() error { return applyBool(lookup, "CHATDB_AI_JSON_MODE", &cfg.AI.JSONMode) },
		func() error { return applyBool(lookup, "CHATDB_SQL_ENABLED", &cfg.SQL.Enabled) },
		func() error { return applyString(lookup, "CHATDB_SQL_DRIVER", &cfg.SQL.Driver) },
		func() error { return applySQLDatabases(lookup, "CHATDB_SQL_DATABASES", &cfg.SQL.Databases) },
		func() error { return applyInt(lookup, "CHATDB_SQL_MAX_OPEN_CONNS", &cfg.SQL.MaxOpenConns) },
		func() error { return applyInt(lookup, "CHATDB_SQL_MAX_IDLE_CONNS", &cfg.SQL.MaxIdleConns) },
		func() error { return applyDuration(lookup, "CHATDB_SQL_CONN_MAX_IDLE_TIME", &cfg.SQL.ConnMaxIdleTime) },
		func() error { return applyDuration(lookup, "CHATDB_SQL_CONN_MAX_LIFETIME", &cfg.SQL.ConnMaxLifetime) },
		func() error { return applyInt(lookup, "CHATDB_SQL_ROW_LIMIT", &cfg.SQL.RowLimit) },
		func() error { return applyBool(lookup, "CHATDB_SQL_EXPLAIN_RESULTS", &cfg.SQL.ExplainResults) },
		func() error { return applyString(lookup, "CHATDB_SEED_DATABASE", &cfg.Seed.Database) },
		func() error { return applyInt(lookup, "CHATDB_SEED_USERS", &cfg.Seed.Users) },
		func() error { return applyInt(lookup, "CHATDB_SEED_ORDERS", &cfg.Seed.Orders) },
		func() error { return applyInt(lookup, "CHATDB_SEED_RANDOM_SEED", &cfg.Seed.RandomSeed) },
		func() error { return applyBool(lookup, "CHATDB_SEED_RESET", &cfg.Seed.Reset) },
		func() error { return applyBool(lookup, "CHATDB_LOG_JSON", &cfg.Observability.LogJSON) },
		func() error { return applyLogLevel(lookup, "CHATDB_LOG_LEVEL", &cfg.Observability.LogLevel) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return Config{}, err
		}
	}

	cfg.AI.Provider = strings.ToLower(cfg.AI.Provider)
	cfg.SQL.Driver = strings.ToLower(cfg.SQL.Driver)
	if cfg.AI.APIKey == "" {
		cfg.AI.APIKey = fallbackAPIKey(lookup, cfg.AI.Provider)
	}
	cfg.Schema.SampleSize = clamp(cfg.Schema.SampleSize, 1, MaxSchemaSampleSize)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg Config) validate() error {
	if cfg.Service.Name == "" {
		return fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return fmt.Errorf("http address is required")
	}
	if cfg.Mongo.URI == "" {
		return fmt.Errorf("invalid CHATDB_MONGO_URI: value is required")
	}
	if cfg.Mongo.MaxPoolSize < 0 {
		return fmt.Errorf("invalid CHATDB_MONGO_MAX_POOL_SIZE: must be >= 0")
	}
	if cfg.Schema.DefaultSampleLimit <= 0 {
		return fmt.Errorf("invalid CHATDB_SCHEMA_DEFAULT_SAMPLE_LIMIT: must be > 0")
	}
	if cfg.Schema.MaxSampleLimit < cfg.Schema.DefaultSampleLimit {
		return fmt.Errorf("invalid CHATDB_SCHEMA_MAX_SAMPLE_LIMIT: must be >= default sample limit")
	}
	switch cfg.AI.Provider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("invalid CHATDB_AI_PROVIDER: %q", cfg.AI.Provider)
	}
	if cfg.AI.Timeout <= 0 {
		return fmt.Errorf("invalid CHATDB_AI_TIMEOUT: must be > 0")
	}
	switch cfg.SQL.Driver {
	case DriverPostgres, DriverMySQL, DriverDuckDB:
	default:
		return fmt.Errorf("invalid CHATDB_SQL_DRIVER: %q", cfg.SQL.Driver)
	}
	if cfg.SQL.RowLimit <= 0 {
		return fmt.Errorf("invalid CHATDB_SQL_ROW_LIMIT: must be > 0")
	}
	if cfg.Seed.Users < 0 || cfg.Seed.Orders < 0 {
		return fmt.Errorf("invalid seed sizes: must be >= 0")
	}
	return nil
}

// DatabaseNames lists configured document and relational database names.
func (cfg Config) DatabaseNames() (documentNames []string, relationalNames []string) {
	documentNames = append(documentNames, cfg.Mongo.Databases...)
	if cfg.SQL.Enabled {
		for _, db := range cfg.SQL.Databases {
			relationalNames = append(relationalNames, db.Name)
		}
	}
	return documentNames, relationalNames
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "chatdb-api"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 90 * time.Second,
			IdleTimeout:  60 * time.Second,
			CORSOrigins:  []string{"*"},
		},
		Mongo: MongoConfig{
			URI:              "mongodb://localhost:27017",
			Databases:        []string{"chatdb"},
			ConnectTimeout:   10 * time.Second,
			OperationTimeout: 30 * time.Second,
			MaxPoolSize:      50,
		},
		Schema: SchemaConfig{
			SampleSize:         MaxSchemaSampleSize,
			DefaultSampleLimit: 3,
			MaxSampleLimit:     50,
		},
		AI: AIConfig{
			Provider:    ProviderOpenAI,
			BaseURL:     "https://api.deepseek.com",
			Model:       "deepseek-chat",
			Temperature: 0,
			Timeout:     60 * time.Second,
			JSONMode:    true,
		},
		SQL: SQLConfig{
			Enabled:         false,
			Driver:          DriverPostgres,
			MaxOpenConns:    10,
			MaxIdleConns:    10,
			ConnMaxIdleTime: 5 * time.Minute,
			ConnMaxLifetime: 30 * time.Minute,
			RowLimit:        100,
			ExplainResults:  true,
		},
		Seed: SeedConfig{
			Database:   "chatdb",
			Users:      25,
			Orders:     100,
			RandomSeed: 42,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Observability.LogLevel = slog.LevelWarn
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.HTTP.CORSOrigins = nil
	}

	return cfg
}

func fallbackAPIKey(lookup LookupFunc, provider string) string {
	keys := []string{"DEEPSEEK_API_KEY", "OPENAI_API_KEY"}
	if provider == ProviderGemini {
		keys = []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}
	}
	for _, key := range keys {
		if raw, ok := lookup(key); ok && strings.TrimSpace(raw) != "" {
			return strings.TrimSpace(raw)
		}
	}
	return ""
}

func clamp(value, lo, hi int) int {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyList(lookup LookupFunc, key string, dst *[]string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	values := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			values = append(values, part)
		}
	}
	*dst = values
	return nil
}

// applySQLDatabases parses "name=dsn;name=dsn". The first '=' separates the
// name so DSNs may contain '=' themselves.
func applySQLDatabases(lookup LookupFunc, key string, dst *[]SQLDatabase) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	databases := make([]SQLDatabase, 0)
	seen := map[string]struct{}{}
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, dsn, found := strings.Cut(entry, "=")
		name, dsn = strings.TrimSpace(name), strings.TrimSpace(dsn)
		if !found || name == "" || dsn == "" {
			return fmt.Errorf("invalid %s: entry %q must be name=dsn", key, entry)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("invalid %s: duplicate database %q", key, name)
		}
		seen[name] = struct{}{}
		databases = append(databases, SQLDatabase{Name: name, DSN: dsn})
	}
	*dst = databases
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
