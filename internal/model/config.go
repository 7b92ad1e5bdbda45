package model

import "time"

// Config holds the complete application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Jobs          JobsConfig          `yaml:"jobs" mapstructure:"jobs"`
	Extract       ExtractConfig       `yaml:"extract" mapstructure:"extract"`
	Retrieval     RetrievalConfig     `yaml:"retrieval" mapstructure:"retrieval"`
	Validation    ValidationConfig    `yaml:"validation" mapstructure:"validation"`
	Aggregate     AggregateConfig     `yaml:"aggregate" mapstructure:"aggregate"`
	LLM           LLMConfig           `yaml:"llm" mapstructure:"llm"`
	Embedding     EmbeddingConfig     `yaml:"embedding" mapstructure:"embedding"`
	Vector        VectorConfig        `yaml:"vector" mapstructure:"vector"`
	Profiles      ProfilesConfig      `yaml:"profiles" mapstructure:"profiles"`
	Transcription TranscriptionConfig `yaml:"transcription" mapstructure:"transcription"`
	Storage       StorageConfig       `yaml:"storage" mapstructure:"storage"`
	Cache         CacheConfig         `yaml:"cache" mapstructure:"cache"`
	Redis         RedisConfig         `yaml:"redis" mapstructure:"redis"`
	Log           LogConfig           `yaml:"log" mapstructure:"log"`
	HTTP          HTTPConfig          `yaml:"http" mapstructure:"http"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Addr           string        `yaml:"addr" mapstructure:"addr"`
	Mode           string        `yaml:"mode" mapstructure:"mode"`                     // gin mode: debug, release, test
	MaxSyncChars   int           `yaml:"max_sync_chars" mapstructure:"max_sync_chars"` // Limit for the synchronous validate endpoint
	MaxUploadBytes int64         `yaml:"max_upload_bytes" mapstructure:"max_upload_bytes"`
	SyncTimeout    time.Duration `yaml:"sync_timeout" mapstructure:"sync_timeout"`
	CORSOrigins    []string      `yaml:"cors_origins,omitempty" mapstructure:"cors_origins"`
}

// JobsConfig configures the orchestrator
type JobsConfig struct {
	Workers         int           `yaml:"workers" mapstructure:"workers"`
	Store           string        `yaml:"store" mapstructure:"store"` // memory or redis
	Retention       time.Duration `yaml:"retention" mapstructure:"retention"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" mapstructure:"cleanup_interval"`
}

// ExtractConfig configures the claim extractor
type ExtractConfig struct {
	MinWords int `yaml:"min_words" mapstructure:"min_words"`
}

// RetrievalConfig configures evidence retrieval
type RetrievalConfig struct {
	TopK         int           `yaml:"top_k" mapstructure:"top_k"`
	MinScore     float64       `yaml:"min_score" mapstructure:"min_score"`
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"` // Per source attempt
	MaxRetries   int           `yaml:"max_retries" mapstructure:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff" mapstructure:"retry_backoff"`
}

// ValidationConfig configures the claim validator
type ValidationConfig struct {
	MaxRetries        int           `yaml:"max_retries" mapstructure:"max_retries"`
	InitialBackoff    time.Duration `yaml:"initial_backoff" mapstructure:"initial_backoff"`
	MaxBackoff        time.Duration `yaml:"max_backoff" mapstructure:"max_backoff"`
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Concurrency       int           `yaml:"concurrency" mapstructure:"concurrency"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int           `yaml:"burst" mapstructure:"burst"`
}

// AggregateConfig configures credibility scoring
type AggregateConfig struct {
	VerifiedWeight   float64 `yaml:"verified_weight" mapstructure:"verified_weight"`
	NuancedWeight    float64 `yaml:"nuanced_weight" mapstructure:"nuanced_weight"`
	IncorrectWeight  float64 `yaml:"incorrect_weight" mapstructure:"incorrect_weight"`
	UnverifiedWeight float64 `yaml:"unverified_weight" mapstructure:"unverified_weight"`
	PriorWeight      float64 `yaml:"prior_weight" mapstructure:"prior_weight"` // Pseudo-confidence of the neutral prior
	PriorScore       float64 `yaml:"prior_score" mapstructure:"prior_score"`
}

// LLMConfig configures the language-model classifier
type LLMConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama
	Model       string  `yaml:"model" mapstructure:"model"`
	APIKey      string  `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL     string  `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout     int     `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float32 `yaml:"temperature" mapstructure:"temperature"`
	HTTPProxy   string  `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy  string  `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy     string  `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// EmbeddingConfig configures claim/chunk embeddings
type EmbeddingConfig struct {
	Provider   string `yaml:"provider" mapstructure:"provider"` // hash or openai
	Model      string `yaml:"model" mapstructure:"model"`
	APIKey     string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL    string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Dimensions int    `yaml:"dimensions" mapstructure:"dimensions"`
}

// VectorConfig configures the vector similarity index
type VectorConfig struct {
	Backend      string `yaml:"backend" mapstructure:"backend"` // memory or qdrant
	URL          string `yaml:"url,omitempty" mapstructure:"url"`
	APIKey       string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	Collection   string `yaml:"collection" mapstructure:"collection"`
	ChunkSize    int    `yaml:"chunk_size" mapstructure:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap" mapstructure:"chunk_overlap"`
}

// ProfilesConfig configures the profile store
type ProfilesConfig struct {
	Backend string `yaml:"backend" mapstructure:"backend"` // yaml, sqlite or postgres
	Path    string `yaml:"path,omitempty" mapstructure:"path"`
	DSN     string `yaml:"dsn,omitempty" mapstructure:"dsn"`
}

// TranscriptionConfig configures the speech-to-text engine
type TranscriptionConfig struct {
	Provider         string        `yaml:"provider" mapstructure:"provider"` // openai or none
	Model            string        `yaml:"model" mapstructure:"model"`
	APIKey           string        `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL          string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout          time.Duration `yaml:"timeout" mapstructure:"timeout"`
	SilenceThreshold float64       `yaml:"silence_threshold" mapstructure:"silence_threshold"` // RMS below this is silence (0-1)
}

// StorageConfig configures uploaded audio storage
type StorageConfig struct {
	AudioDir string `yaml:"audio_dir" mapstructure:"audio_dir"`
}

// CacheConfig configures embedding and evidence caching
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// RedisConfig configures the shared redis job store
type RedisConfig struct {
	URL       string `yaml:"url,omitempty" mapstructure:"url"`
	KeyPrefix string `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// LogConfig configures structured logging
type LogConfig struct {
	Mode string `yaml:"mode" mapstructure:"mode"` // dev or prod
}

// HTTPConfig configures the document ingestion fetcher
type HTTPConfig struct {
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent         string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes      int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	RespectRobots     bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	HTTPProxy         string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy        string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy           string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:           ":8080",
			Mode:           "release",
			MaxSyncChars:   5000,
			MaxUploadBytes: 50 << 20,
			SyncTimeout:    2 * time.Minute,
			CORSOrigins:    []string{"http://localhost:3000"},
		},
		Jobs: JobsConfig{
			Workers:         2,
			Store:           "memory",
			Retention:       24 * time.Hour,
			CleanupInterval: time.Hour,
		},
		Extract: ExtractConfig{
			MinWords: 3,
		},
		Retrieval: RetrievalConfig{
			TopK:         5,
			MinScore:     0.35,
			Timeout:      10 * time.Second,
			MaxRetries:   2,
			RetryBackoff: 200 * time.Millisecond,
		},
		Validation: ValidationConfig{
			MaxRetries:        2,
			InitialBackoff:    500 * time.Millisecond,
			MaxBackoff:        5 * time.Second,
			Timeout:           30 * time.Second,
			Concurrency:       3,
			RequestsPerSecond: 2,
			Burst:             4,
		},
		Aggregate: AggregateConfig{
			VerifiedWeight:   1.0,
			NuancedWeight:    0.5,
			IncorrectWeight:  0.0,
			UnverifiedWeight: 0.0,
			PriorWeight:      0,
			PriorScore:       0.5,
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			Timeout:     30,
			MaxTokens:   400,
			Temperature: 0.1,
		},
		Embedding: EmbeddingConfig{
			Provider:   "hash",
			Model:      "text-embedding-3-small",
			Dimensions: 384,
		},
		Vector: VectorConfig{
			Backend:      "memory",
			Collection:   "documents",
			ChunkSize:    500,
			ChunkOverlap: 50,
		},
		Profiles: ProfilesConfig{
			Backend: "yaml",
		},
		Transcription: TranscriptionConfig{
			Provider:         "openai",
			Model:            "whisper-1",
			Timeout:          5 * time.Minute,
			SilenceThreshold: 0.005,
		},
		Storage: StorageConfig{
			AudioDir: "data/audio",
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".cache/brutally-honest",
			MemoryTTL: 30 * time.Minute,
			DiskTTL:   7 * 24 * time.Hour,
		},
		Redis: RedisConfig{
			KeyPrefix: "bh",
		},
		Log: LogConfig{
			Mode: "dev",
		},
		HTTP: HTTPConfig{
			Timeout:           30 * time.Second,
			UserAgent:         "BrutallyHonest/0.1 (+https://github.com/danieldevos90/brutally-honest-ai)",
			MaxBodyBytes:      5_000_000,
			RequestsPerSecond: 1,
			RespectRobots:     true,
		},
	}
}
