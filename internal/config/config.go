package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port            int
	DatabasePath    string
	LogDirectory    string
	StaticDirectory string

	NormalizeMaxWidth  int // Szerokość maksymalna po normalizacji (1080..1280)
	NormalizeQuality   int
	CompositeTarget    int // Wspólny wymiar docelowy kompozycji
	CompositeQuality   int
	MinDurationMinutes int // Dolna granica czasu sprzątania na etykiecie
	LabelLocale        string
	LabelRounded       bool
	FontPath           string

	GeminiAPIKey string
	GeminiModel  string
	ChatTimeout  time.Duration

	CameraUDPPort int               // 0 wyłącza nasłuch UDP
	CameraNames   map[string]string // ip -> nazwa kamery
	DefaultCamera string
	MaxFrameAge   time.Duration
}

// Load reads the configuration from the environment. A .env file in the
// working directory is applied first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:            getEnvAsInt("PORT", 8080),
		DatabasePath:    getEnv("DB_PATH", filepath.Join(".", "data", "yorae.db")),
		LogDirectory:    getEnv("LOG_DIR", filepath.Join(".", "logs")),
		StaticDirectory: getEnv("STATIC_DIR", filepath.Join(".", "static")),

		NormalizeMaxWidth:  clamp(getEnvAsInt("NORMALIZE_MAX_WIDTH", 1280), 1080, 1280),
		NormalizeQuality:   clamp(getEnvAsInt("NORMALIZE_QUALITY", 80), 1, 100),
		CompositeTarget:    getEnvAsInt("COMPOSITE_TARGET", 1080),
		CompositeQuality:   clamp(getEnvAsInt("COMPOSITE_QUALITY", 90), 1, 100),
		MinDurationMinutes: clamp(getEnvAsInt("MIN_DURATION_MINUTES", 0), 0, 1),
		LabelLocale:        getEnv("LABEL_LOCALE", "ko"),
		LabelRounded:       getEnvAsBool("LABEL_ROUNDED", true),
		FontPath:           getEnv("FONT_PATH", ""),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", getEnv("API_KEY", "")),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-3-flash-preview"),
		ChatTimeout:  time.Duration(getEnvAsInt("CHAT_TIMEOUT", 30)) * time.Second,

		CameraUDPPort: getEnvAsInt("CAMERA_UDP_PORT", 0),
		CameraNames:   getEnvAsMap("CAMERA_NAMES"),
		DefaultCamera: getEnv("DEFAULT_CAMERA", "phone"),
		MaxFrameAge:   time.Duration(getEnvAsInt("MAX_FRAME_AGE", 10)) * time.Second,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsMap parses "k1=v1,k2=v2" pairs; malformed entries are skipped.
func getEnvAsMap(key string) map[string]string {
	result := make(map[string]string)
	value := os.Getenv(key)
	if value == "" {
		return result
	}

	for _, pair := range strings.Split(value, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || k == "" || v == "" {
			continue
		}
		result[k] = v
	}
	return result
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
