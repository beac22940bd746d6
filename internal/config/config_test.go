package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaultsForDevProfile(t *testing.T) {
	cfg, err := Load("chatdb-api", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileDev)
	}
	if cfg.HTTP.Address != ":8080" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Observability.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Mongo.URI != "mongodb://localhost:27017" {
		t.Fatalf("Mongo.URI = %q", cfg.Mongo.URI)
	}
	if len(cfg.Mongo.Databases) != 1 || cfg.Mongo.Databases[0] != "chatdb" {
		t.Fatalf("Mongo.Databases = %v", cfg.Mongo.Databases)
	}
	if cfg.Schema.SampleSize != 20 {
		t.Fatalf("Schema.SampleSize = %d", cfg.Schema.SampleSize)
	}
	if cfg.Schema.DefaultSampleLimit != 3 {
		t.Fatalf("Schema.DefaultSampleLimit = %d", cfg.Schema.DefaultSampleLimit)
	}
	if cfg.AI.Provider != ProviderOpenAI {
		t.Fatalf("AI.Provider = %q", cfg.AI.Provider)
	}
	if cfg.AI.Model != "deepseek-chat" {
		t.Fatalf("AI.Model = %q", cfg.AI.Model)
	}
	if !cfg.AI.JSONMode {
		t.Fatal("AI.JSONMode should default to true")
	}
	if cfg.SQL.Enabled {
		t.Fatal("SQL.Enabled should default to false")
	}
	if cfg.SQL.RowLimit != 100 {
		t.Fatalf("SQL.RowLimit = %d", cfg.SQL.RowLimit)
	}
	if len(cfg.HTTP.CORSOrigins) != 1 || cfg.HTTP.CORSOrigins[0] != "*" {
		t.Fatalf("HTTP.CORSOrigins = %v", cfg.HTTP.CORSOrigins)
	}
}

func TestLoadProdProfileDefaults(t *testing.T) {
	cfg, err := Load("chatdb-api", mapLookup(map[string]string{"CHATDB_PROFILE": "prod"}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileProd {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileProd)
	}
	if cfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if len(cfg.HTTP.CORSOrigins) != 0 {
		t.Fatalf("HTTP.CORSOrigins = %v, want none in prod", cfg.HTTP.CORSOrigins)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	lookup := mapLookup(map[string]string{
		"CHATDB_PROFILE":                     "test",
		"CHATDB_SERVICE_NAME":                "chatdb-custom",
		"CHATDB_HTTP_ADDR":                   ":9999",
		"CHATDB_HTTP_READ_TIMEOUT":           "2s",
		"CHATDB_HTTP_CORS_ORIGINS":           "http://localhost:3000, https://app.example.com",
		"CHATDB_MONGO_URI":                   "mongodb://mongo:27017",
		"CHATDB_MONGO_DATABASES":             "shop, analytics",
		"CHATDB_MONGO_OPERATION_TIMEOUT":     "7s",
		"CHATDB_MONGO_MAX_POOL_SIZE":         "12",
		"CHATDB_SCHEMA_SAMPLE_SIZE":          "10",
		"CHATDB_SCHEMA_DEFAULT_SAMPLE_LIMIT": "5",
		"CHATDB_SCHEMA_MAX_SAMPLE_LIMIT":     "25",
		"CHATDB_AI_PROVIDER":                 "Gemini",
		"CHATDB_AI_API_KEY":                  "secret-key",
		"CHATDB_AI_MODEL":                    "gemini-2.5-flash",
		"CHATDB_AI_TEMPERATURE":              "0.3",
		"CHATDB_AI_TIMEOUT":                  "21s",
		"CHATDB_AI_JSON_MODE":                "false",
		"CHATDB_SQL_ENABLED":                 "true",
		"CHATDB_SQL_DRIVER":                  "mysql",
		"CHATDB_SQL_DATABASES":               "inventory=user:pw@tcp(db:3306)/inventory?parseTime=true; hr=user:pw@tcp(db:3306)/hr",
		"CHATDB_SQL_ROW_LIMIT":               "50",
		"CHATDB_LOG_LEVEL":                   "error",
	})
	cfg, err := Load("chatdb-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Service.Name != "chatdb-custom" {
		t.Fatalf("Service.Name = %q", cfg.Service.Name)
	}
	if cfg.HTTP.Address != ":9999" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.HTTP.ReadTimeout != 2*time.Second {
		t.Fatalf("HTTP.ReadTimeout = %s", cfg.HTTP.ReadTimeout)
	}
	if len(cfg.HTTP.CORSOrigins) != 2 || cfg.HTTP.CORSOrigins[1] != "https://app.example.com" {
		t.Fatalf("HTTP.CORSOrigins = %v", cfg.HTTP.CORSOrigins)
	}
	if cfg.Mongo.URI != "mongodb://mongo:27017" {
		t.Fatalf("Mongo.URI = %q", cfg.Mongo.URI)
	}
	if len(cfg.Mongo.Databases) != 2 || cfg.Mongo.Databases[0] != "shop" || cfg.Mongo.Databases[1] != "analytics" {
		t.Fatalf("Mongo.Databases = %v", cfg.Mongo.Databases)
	}
	if cfg.Mongo.OperationTimeout != 7*time.Second {
		t.Fatalf("Mongo.OperationTimeout = %s", cfg.Mongo.OperationTimeout)
	}
	if cfg.Mongo.MaxPoolSize != 12 {
		t.Fatalf("Mongo.MaxPoolSize = %d", cfg.Mongo.MaxPoolSize)
	}
	if cfg.Schema.SampleSize != 10 || cfg.Schema.DefaultSampleLimit != 5 || cfg.Schema.MaxSampleLimit != 25 {
		t.Fatalf("Schema = %+v", cfg.Schema)
	}
	if cfg.AI.Provider != ProviderGemini {
		t.Fatalf("AI.Provider = %q", cfg.AI.Provider)
	}
	if cfg.AI.APIKey != "secret-key" {
		t.Fatalf("AI.APIKey = %q", cfg.AI.APIKey)
	}
	if cfg.AI.Temperature != 0.3 {
		t.Fatalf("AI.Temperature = %f", cfg.AI.Temperature)
	}
	if cfg.AI.Timeout != 21*time.Second {
		t.Fatalf("AI.Timeout = %s", cfg.AI.Timeout)
	}
	if cfg.AI.JSONMode {
		t.Fatal("AI.JSONMode = true, want false")
	}
	if !cfg.SQL.Enabled || cfg.SQL.Driver != DriverMySQL || cfg.SQL.RowLimit != 50 {
		t.Fatalf("SQL = %+v", cfg.SQL)
	}
	if len(cfg.SQL.Databases) != 2 {
		t.Fatalf("SQL.Databases = %+v", cfg.SQL.Databases)
	}
	if cfg.SQL.Databases[0].Name != "inventory" || cfg.SQL.Databases[0].DSN != "user:pw@tcp(db:3306)/inventory?parseTime=true" {
		t.Fatalf("SQL.Databases[0] = %+v", cfg.SQL.Databases[0])
	}
	if cfg.Observability.LogLevel != slog.LevelError {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}

	documentNames, relationalNames := cfg.DatabaseNames()
	if len(documentNames) != 2 || len(relationalNames) != 2 || relationalNames[1] != "hr" {
		t.Fatalf("DatabaseNames() = %v, %v", documentNames, relationalNames)
	}
}

func TestLoadClampsSampleSize(t *testing.T) {
	for raw, want := range map[string]int{"0": 1, "-4": 1, "7": 7, "500": 20} {
		cfg, err := Load("chatdb-api", mapLookup(map[string]string{"CHATDB_SCHEMA_SAMPLE_SIZE": raw}))
		if err != nil {
			t.Fatalf("Load(%s) error = %v", raw, err)
		}
		if cfg.Schema.SampleSize != want {
			t.Fatalf("Schema.SampleSize for %s = %d, want %d", raw, cfg.Schema.SampleSize, want)
		}
	}
}

func TestLoadFallsBackToProviderAPIKey(t *testing.T) {
	cfg, err := Load("chatdb-api", mapLookup(map[string]string{"DEEPSEEK_API_KEY": "ds-key"}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AI.APIKey != "ds-key" {
		t.Fatalf("AI.APIKey = %q", cfg.AI.APIKey)
	}

	cfg, err = Load("chatdb-api", mapLookup(map[string]string{
		"CHATDB_AI_PROVIDER": "gemini",
		"DEEPSEEK_API_KEY":   "ds-key",
		"GEMINI_API_KEY":     "gm-key",
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AI.APIKey != "gm-key" {
		t.Fatalf("AI.APIKey = %q", cfg.AI.APIKey)
	}
}

func TestLoadErrorsOnInvalidValues(t *testing.T) {
	tests := []map[string]string{
		{"CHATDB_PROFILE": "oops"},
		{"CHATDB_HTTP_READ_TIMEOUT": "NaN"},
		{"CHATDB_MONGO_URI": ""},
		{"CHATDB_MONGO_MAX_POOL_SIZE": "oops"},
		{"CHATDB_SCHEMA_DEFAULT_SAMPLE_LIMIT": "0"},
		{"CHATDB_SCHEMA_MAX_SAMPLE_LIMIT": "1"},
		{"CHATDB_AI_PROVIDER": "anthropic-direct"},
		{"CHATDB_AI_TEMPERATURE": "bad"},
		{"CHATDB_AI_TIMEOUT": "0s"},
		{"CHATDB_SQL_DRIVER": "sqlite"},
		{"CHATDB_SQL_DATABASES": "missing-dsn"},
		{"CHATDB_SQL_DATABASES": "a=x;a=y"},
		{"CHATDB_SQL_ROW_LIMIT": "0"},
		{"CHATDB_LOG_LEVEL": "verbose"},
	}
	for _, env := range tests {
		_, err := Load("chatdb-api", mapLookup(env))
		if err == nil {
			t.Fatalf("Load() expected error for env %#v", env)
		}
	}
}

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
