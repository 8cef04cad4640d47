package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Settings is the runtime configuration. Defaults come from the constants in this
// package, then an optional YAML file, then the environment.
type Settings struct {
	IsProd   bool   `yaml:"is_prod"`
	LogLevel string `yaml:"log_level"`

	ListenAddr   string `yaml:"listen_addr"`
	AuthToken    string `yaml:"auth_token"`
	NoAuthBypass bool   `yaml:"no_auth_bypass"`

	Chunking  ChunkingSettings  `yaml:"chunking"`
	Retrieval RetrievalSettings `yaml:"retrieval"`
	Index     IndexSettings     `yaml:"index"`
	Embedding EmbeddingSettings `yaml:"embedding"`
	LLM       LLMSettings       `yaml:"llm"`
	Storage   StorageSettings   `yaml:"storage"`
	Redis     RedisSettings     `yaml:"redis"`
}

type ChunkingSettings struct {
	MaxTokens     int `yaml:"max_tokens"`
	OverlapTokens int `yaml:"overlap_tokens"`
}

type RetrievalSettings struct {
	TopK     int     `yaml:"top_k"`
	MaxTopK  int     `yaml:"max_top_k"`
	MinScore float32 `yaml:"min_score"`
}

type IndexSettings struct {
	Backend    string `yaml:"backend"`
	Root       string `yaml:"root"`
	QdrantHost string `yaml:"qdrant_host"`
	QdrantPort int    `yaml:"qdrant_port"`
	QdrantTLS  bool   `yaml:"qdrant_tls"`
	QdrantKey  string `yaml:"qdrant_api_key"`
}

type EmbeddingSettings struct {
	Provider          string  `yaml:"provider"`
	Model             string  `yaml:"model"`
	Dimension         int32   `yaml:"dimension"`
	BatchSize         int     `yaml:"batch_size"`
	MaxAttempts       int     `yaml:"max_attempts"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	GoogleAPIKey      string  `yaml:"google_api_key"`
	OpenAIAPIKey      string  `yaml:"openai_api_key"`
	OpenAIBaseURL     string  `yaml:"openai_base_url"`
	OllamaURL         string  `yaml:"ollama_url"`
}

type LLMSettings struct {
	Provider      string  `yaml:"provider"`
	Model         string  `yaml:"model"`
	Temperature   float32 `yaml:"temperature"`
	MaxTokens     int     `yaml:"max_tokens"`
	GoogleAPIKey  string  `yaml:"google_api_key"`
	OpenAIAPIKey  string  `yaml:"openai_api_key"`
	OpenAIBaseURL string  `yaml:"openai_base_url"`
}

type StorageSettings struct {
	Backend        string `yaml:"backend"`
	DataRoot       string `yaml:"data_root"`
	MinioEndpoint  string `yaml:"minio_endpoint"`
	MinioAccessKey string `yaml:"minio_access_key"`
	MinioSecretKey string `yaml:"minio_secret_key"`
	MinioBucket    string `yaml:"minio_bucket"`
	MinioUseSSL    bool   `yaml:"minio_use_ssl"`
}

type RedisSettings struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	Enabled  bool   `yaml:"enabled"`
}

// Default returns the settings built only from the package constants.
func Default() Settings {
	return Settings{
		IsProd:     IS_PROD,
		LogLevel:   "debug",
		ListenAddr: ServerListenAddr,
		Chunking: ChunkingSettings{
			MaxTokens:     DefaultMaxChunkTokens,
			OverlapTokens: DefaultChunkOverlap,
		},
		Retrieval: RetrievalSettings{
			TopK:     DefaultTopK,
			MaxTopK:  MaxTopK,
			MinScore: DefaultMinScore,
		},
		Index: IndexSettings{
			Backend:    IndexBackendLocal,
			Root:       DefaultIndexRoot,
			QdrantHost: QdrantHost,
			QdrantPort: QdrantGrpcPort,
			QdrantTLS:  QdrantUseTLS,
		},
		Embedding: EmbeddingSettings{
			Provider:          EmbeddingProviderHash,
			Dimension:         EmbeddingOutputDimensionality,
			BatchSize:         EmbeddingBatchSize,
			MaxAttempts:       EmbeddingMaxAttempts,
			RequestsPerSecond: EmbeddingRequestsPerSecond,
			OllamaURL:         OllamaURL,
		},
		LLM: LLMSettings{
			Provider:    LLMProviderNone,
			Temperature: ModelTemperature,
			MaxTokens:   ModelMaxTokens,
		},
		Storage: StorageSettings{
			Backend:     StorageBackendLocal,
			DataRoot:    DefaultDataRoot,
			MinioBucket: MinioBucket,
		},
		Redis: RedisSettings{
			Addr: RedisAddr,
		},
	}
}

// Load builds the settings. path may be empty; a missing file is not an error.
func Load(path string) (Settings, error) {
	_ = godotenv.Load() //.env is optional and never overrides the real environment

	s := Default()
	if path == "" {
		path = os.Getenv("TENDERRAG_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return s, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &s); err != nil {
				return s, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	s.applyEnv(os.Getenv)
	s.ApplyModelDefaults()
	return s, s.Validate()
}

func (s *Settings) applyEnv(getenv func(string) string) {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, err := strconv.Atoi(strings.TrimSpace(getenv(key))); err == nil {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		if v, err := strconv.ParseBool(strings.TrimSpace(getenv(key))); err == nil {
			*dst = v
		}
	}

	boolean("IS_PROD", &s.IsProd)
	str("LOG_LEVEL", &s.LogLevel)
	str("LISTEN_ADDR", &s.ListenAddr)
	str("AUTH_TOKEN", &s.AuthToken)
	boolean("NO_AUTH_BYPASS", &s.NoAuthBypass)

	integer("MAX_CHUNK_TOKENS", &s.Chunking.MaxTokens)
	integer("CHUNK_OVERLAP", &s.Chunking.OverlapTokens)
	integer("TOP_K", &s.Retrieval.TopK)
	if v, err := strconv.ParseFloat(strings.TrimSpace(getenv("MIN_SCORE")), 32); err == nil {
		s.Retrieval.MinScore = float32(v)
	}

	str("INDEX_BACKEND", &s.Index.Backend)
	str("INDEX_ROOT", &s.Index.Root)
	str("QDRANT_HOST", &s.Index.QdrantHost)
	integer("QDRANT_PORT", &s.Index.QdrantPort)
	str("QDRANT_API_KEY", &s.Index.QdrantKey)
	boolean("QDRANT_TLS", &s.Index.QdrantTLS)

	str("EMB_PROVIDER", &s.Embedding.Provider)
	str("EMB_MODEL", &s.Embedding.Model)
	integer("EMB_BATCH", &s.Embedding.BatchSize)
	str("GOOGLE_API_KEY", &s.Embedding.GoogleAPIKey)
	str("OPENAI_API_KEY", &s.Embedding.OpenAIAPIKey)
	str("OPENAI_BASE_URL", &s.Embedding.OpenAIBaseURL)
	str("OLLAMA_URL", &s.Embedding.OllamaURL)

	str("LLM_PROVIDER", &s.LLM.Provider)
	str("LLM_MODEL", &s.LLM.Model)
	str("GOOGLE_API_KEY", &s.LLM.GoogleAPIKey)
	str("OPENAI_API_KEY", &s.LLM.OpenAIAPIKey)
	str("OPENAI_BASE_URL", &s.LLM.OpenAIBaseURL)

	str("STORAGE_BACKEND", &s.Storage.Backend)
	str("DATA_ROOT", &s.Storage.DataRoot)
	str("MINIO_ENDPOINT", &s.Storage.MinioEndpoint)
	str("MINIO_ACCESS_KEY", &s.Storage.MinioAccessKey)
	str("MINIO_SECRET_KEY", &s.Storage.MinioSecretKey)
	str("MINIO_BUCKET", &s.Storage.MinioBucket)
	boolean("MINIO_USE_SSL", &s.Storage.MinioUseSSL)

	str("REDIS_ADDR", &s.Redis.Addr)
	str("REDIS_PASSWORD", &s.Redis.Password)
	boolean("REDIS_ENABLED", &s.Redis.Enabled)
}

// ApplyModelDefaults fills empty model names with the default of the chosen provider.
func (s *Settings) ApplyModelDefaults() {
	if s.Embedding.Model == "" {
		switch s.Embedding.Provider {
		case EmbeddingProviderGoogle:
			s.Embedding.Model = GoogleEmbeddingModel
		case EmbeddingProviderOpenAI:
			s.Embedding.Model = OpenAIEmbeddingModel
		case EmbeddingProviderOllama:
			s.Embedding.Model = OllamaEmbeddingModel
		}
	}
	if s.LLM.Model == "" {
		switch s.LLM.Provider {
		case LLMProviderGemini:
			s.LLM.Model = GeminiModelName
		case LLMProviderOpenAI:
			s.LLM.Model = OpenAIChatModel
		}
	}
}

// Validate rejects settings the pipeline cannot run with.
func (s Settings) Validate() error {
	var errs []error
	if s.Chunking.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("max_tokens must be positive, got %d", s.Chunking.MaxTokens))
	}
	if s.Chunking.OverlapTokens < 0 || s.Chunking.OverlapTokens >= s.Chunking.MaxTokens {
		errs = append(errs, fmt.Errorf("overlap_tokens must be in [0, max_tokens), got %d", s.Chunking.OverlapTokens))
	}
	if s.Retrieval.MaxTopK <= 0 || s.Retrieval.TopK <= 0 || s.Retrieval.TopK > s.Retrieval.MaxTopK {
		errs = append(errs, fmt.Errorf("top_k must be in [1, %d], got %d", s.Retrieval.MaxTopK, s.Retrieval.TopK))
	}
	switch s.Embedding.Provider {
	case EmbeddingProviderGoogle, EmbeddingProviderOpenAI, EmbeddingProviderOllama, EmbeddingProviderHash:
	default:
		errs = append(errs, fmt.Errorf("unknown embedding provider %q", s.Embedding.Provider))
	}
	switch s.LLM.Provider {
	case LLMProviderGemini, LLMProviderOpenAI, LLMProviderNone:
	default:
		errs = append(errs, fmt.Errorf("unknown llm provider %q", s.LLM.Provider))
	}
	switch s.Index.Backend {
	case IndexBackendLocal, IndexBackendQdrant:
	default:
		errs = append(errs, fmt.Errorf("unknown index backend %q", s.Index.Backend))
	}
	switch s.Storage.Backend {
	case StorageBackendLocal, StorageBackendMinio:
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", s.Storage.Backend))
	}
	return errors.Join(errs...)
}
