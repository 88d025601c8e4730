package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// ServerConfig configures the HTTP boundary.
type ServerConfig struct {
	Port               string
	CORSAllowedOrigins []string
	JWTSecret          string // empty disables bearer auth on /api
}

// DataConfig holds the source dataset path and the three cache artifact paths.
type DataConfig struct {
	DatasetPath            string
	DatasetCachePath       string
	SDGEmbeddingsCachePath string
	SDGTagsCachePath       string
}

// EmbedderConfig selects and configures the embedding provider.
type EmbedderConfig struct {
	Type          string
	BertModelPath string
	BertThreads   int
	OpenAIBaseURL string
	OpenAIAPIKey  string
	OpenAIModel   string
}

// SDGConfig is the tagging policy surface.
type SDGConfig struct {
	MinSimilarity float64
	TopN          int
}

// SearchConfig configures the query engine.
type SearchConfig struct {
	TopN int
}

// Config is the root configuration, read from the environment.
type Config struct {
	Server   ServerConfig
	Data     DataConfig
	Embedder EmbedderConfig
	SDG      SDGConfig
	Search   SearchConfig
}

// Load reads configuration from the environment, with a best-effort .env
// autoload first.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
			JWTSecret:          getEnv("JWT_SECRET", ""),
		},
		Data: DataConfig{
			DatasetPath:            getEnv("DATASET_PATH", "./data/tedx_dataset.csv"),
			DatasetCachePath:       getEnv("DATASET_CACHE_PATH", "./cache/tedx_dataset.gob"),
			SDGEmbeddingsCachePath: getEnv("SDG_EMBEDDINGS_CACHE_PATH", "./cache/sdg_embeddings.gob"),
			SDGTagsCachePath:       getEnv("SDG_TAGS_CACHE_PATH", "./cache/sdg_tags.gob"),
		},
		Embedder: EmbedderConfig{
			Type:          getEnv("EMBEDDER_TYPE", "hash"),
			BertModelPath: getEnv("BERT_MODEL_PATH", ""),
			BertThreads:   getEnvInt("BERT_THREADS", 4),
			OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
			OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
			OpenAIModel:   getEnv("OPENAI_EMBED_MODEL", ""),
		},
		SDG: SDGConfig{
			MinSimilarity: getEnvFloat("SDG_MIN_SIMILARITY", 0.35),
			TopN:          getEnvInt("SDG_TOP_N", 3),
		},
		Search: SearchConfig{
			TopN: getEnvInt("SEARCH_TOP_N", 10),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
