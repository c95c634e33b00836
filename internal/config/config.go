package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr string
	DataDir  string
	DBPath   string
	WebDir   string

	LLMBaseURL      string
	LLMModel        string
	LLMAPIKey       string
	LLMModelAliases map[string]string

	CheckInterval   time.Duration
	InactiveAfter   time.Duration
	CheckinCooldown time.Duration
	RetrievalGrace  time.Duration
}

func Load() Config {
	loadDotEnv(".env")
	dataDir := getEnv("COKE_DATA_DIR", "data")
	return Config{
		HTTPAddr: getEnv("COKE_HTTP_ADDR", ":8080"),
		DataDir:  dataDir,
		DBPath:   getEnv("COKE_DB_PATH", filepath.Join(dataDir, "coke.db")),
		WebDir:   getEnv("COKE_WEB_DIR", "web"),

		LLMBaseURL:      getEnv("COKE_LLM_BASE_URL", ""),
		LLMModel:        getEnv("COKE_LLM_MODEL", "deepseek-v3-1-terminus"),
		LLMAPIKey:       getEnv("COKE_LLM_API_KEY", ""),
		LLMModelAliases: parseAliases(getEnv("COKE_LLM_MODEL_ALIASES", "")),

		CheckInterval:   getDuration("COKE_CHECK_INTERVAL", 30*time.Second),
		InactiveAfter:   getDuration("COKE_INACTIVE_AFTER", 4*time.Hour),
		CheckinCooldown: getDuration("COKE_CHECKIN_COOLDOWN", time.Hour),
		RetrievalGrace:  getDuration("COKE_RETRIEVAL_GRACE", 60*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// parseAliases reads "alias=model,alias=model" pairs.
func parseAliases(raw string) map[string]string {
	out := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		alias, model, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		alias = strings.ToLower(strings.TrimSpace(alias))
		model = strings.TrimSpace(model)
		if alias == "" || model == "" {
			continue
		}
		out[alias] = model
	}
	return out
}

func loadDotEnv(path string) {
	file, err := os.Open(path)
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"'`)
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		_ = os.Setenv(key, value)
	}
}
