package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/satriahrh/talking-avatar/internal/retry"
)

// Config is the full service configuration, read from the environment
type Config struct {
	Port  string `envconfig:"PORT" default:"3000"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	ArtifactDir       string `envconfig:"ARTIFACT_DIR" default:"audios"`
	FFmpegPath        string `envconfig:"FFMPEG_PATH" default:"ffmpeg"`
	RhubarbPath       string `envconfig:"RHUBARB_PATH" default:"bin/rhubarb"`
	RhubarbRecognizer string `envconfig:"RHUBARB_RECOGNIZER" default:"phonetic"`

	ArtifactTTL   time.Duration `envconfig:"ARTIFACT_TTL" default:"30m"`
	SweepInterval time.Duration `envconfig:"ARTIFACT_SWEEP_INTERVAL" default:"10m"`

	CallTimeout   time.Duration `envconfig:"CALL_TIMEOUT" default:"60s"`
	RetryAttempts int           `envconfig:"RETRY_ATTEMPTS" default:"2"`
	RetryBackoff  time.Duration `envconfig:"RETRY_BACKOFF" default:"1s"`

	Gemini     Gemini
	ElevenLabs ElevenLabs
	Knowledge  Knowledge
	STT        STT
}

// Gemini configures dialogue generation and embeddings
type Gemini struct {
	APIKey          string  `envconfig:"GEMINI_API_KEY"`
	Model           string  `envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash"`
	EmbeddingModel  string  `envconfig:"GEMINI_EMBEDDING_MODEL" default:"text-embedding-004"`
	Temperature     float32 `envconfig:"GEMINI_TEMPERATURE" default:"0.6"`
	MaxOutputTokens int     `envconfig:"GEMINI_MAX_OUTPUT_TOKENS" default:"1000"`
	MaxReplies      int     `envconfig:"MAX_REPLY_MESSAGES" default:"3"`
}

// ElevenLabs configures speech synthesis
type ElevenLabs struct {
	APIKey       string  `envconfig:"ELEVEN_LABS_API_KEY"`
	APIBaseURL   string  `envconfig:"ELEVEN_LABS_API_BASE_URL"`
	VoiceID      string  `envconfig:"ELEVEN_LABS_VOICE_ID" default:"Vpv1YgvVd6CHIzOTiTt8"`
	ModelID      string  `envconfig:"ELEVEN_LABS_MODEL_ID"`
	OutputFormat string  `envconfig:"ELEVEN_LABS_OUTPUT_FORMAT" default:"mp3_44100_128"`
	Stability    float64 `envconfig:"ELEVEN_LABS_STABILITY"`
	Clarity      float64 `envconfig:"ELEVEN_LABS_CLARITY"`
}

// Knowledge configures the retrieval index
type Knowledge struct {
	Backend           string `envconfig:"VECTOR_BACKEND" default:"pinecone"`
	TopK              int    `envconfig:"KNOWLEDGE_TOP_K" default:"3"`
	PineconeAPIKey    string `envconfig:"PINECONE_API_KEY"`
	PineconeIndex     string `envconfig:"PINECONE_INDEX" default:"tecsup"`
	PineconeNamespace string `envconfig:"PINECONE_NAMESPACE" default:"2600-Chancado-Primario"`
	RedisAddr         string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword     string `envconfig:"REDIS_PASSWORD"`
	RedisIndex        string `envconfig:"REDIS_INDEX" default:"knowledge"`
	RedisVectorField  string `envconfig:"REDIS_VECTOR_FIELD" default:"embedding"`
}

// STT configures the optional transcript of recorded uploads
type STT struct {
	Enabled  bool   `envconfig:"STT_ENABLED" default:"false"`
	Language string `envconfig:"STT_LANGUAGE" default:"es-ES"`
}

const (
	BackendPinecone = "pinecone"
	BackendRedis    = "redis"
)

// Load reads an optional .env file and then the process environment
func Load(envFiles ...string) (Config, error) {
	// A missing .env is fine; the environment may already be populated
	_ = godotenv.Load(envFiles...)

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to process environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values envconfig cannot
func (c Config) Validate() error {
	if c.RetryAttempts < 1 {
		return fmt.Errorf("RETRY_ATTEMPTS must be at least 1, got %d", c.RetryAttempts)
	}
	if c.CallTimeout < 0 {
		return fmt.Errorf("CALL_TIMEOUT must not be negative, got %s", c.CallTimeout)
	}
	if c.ArtifactTTL <= 0 || c.SweepInterval <= 0 {
		return fmt.Errorf("ARTIFACT_TTL and ARTIFACT_SWEEP_INTERVAL must be positive")
	}
	if c.Knowledge.TopK < 1 {
		return fmt.Errorf("KNOWLEDGE_TOP_K must be positive, got %d", c.Knowledge.TopK)
	}
	switch c.Knowledge.Backend {
	case BackendPinecone, BackendRedis:
	default:
		return fmt.Errorf("unknown VECTOR_BACKEND %q", c.Knowledge.Backend)
	}
	return nil
}

// RetryPolicy is the policy every external call site runs under
func (c Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		Attempts: c.RetryAttempts,
		Backoff:  c.RetryBackoff,
		Timeout:  c.CallTimeout,
	}
}
