package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the speech synthesis server
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// Audio format
	SampleRate    int `envconfig:"SAMPLE_RATE" default:"24000"`       // Output sample rate in Hz
	NumChannels   int `envconfig:"NUM_CHANNELS" default:"1"`          // Mono output
	BitsPerSample int `envconfig:"BITS_PER_SAMPLE" default:"16"`      // 16-bit signed PCM
	ChunkBytes    int `envconfig:"STREAM_CHUNK_BYTES" default:"4800"` // ~100ms at 24kHz int16 mono

	// Result cache
	CacheTTLSeconds int `envconfig:"CACHE_TTL_SECONDS" default:"3600"` // Entry lifetime
	CacheMaxEntries int `envconfig:"CACHE_MAX_ENTRIES" default:"100"`  // Oldest-inserted evicted beyond this

	// Accelerator devices
	DeviceCount int `envconfig:"DEVICE_COUNT" default:"1"` // Number of lockable inference devices

	// Synthesis engine backend
	EngineURL            string `envconfig:"ENGINE_URL" default:""`             // HTTP PCM engine; empty selects the built-in mock
	EngineTimeout        int    `envconfig:"ENGINE_TIMEOUT" default:"300"`      // Overall synthesis bound in seconds
	EngineRetryAttempts  int    `envconfig:"ENGINE_RETRY_ATTEMPTS" default:"3"` // Connection attempts before giving up
	EngineRetryBackoffMs int    `envconfig:"ENGINE_RETRY_BACKOFF_MS" default:"100"`

	// Deepgram STT configuration (transcription surface is disabled when the key is empty)
	DeepgramAPIKey   string `envconfig:"DEEPGRAM_API_KEY" default:""`
	DeepgramModel    string `envconfig:"DEEPGRAM_MODEL" default:"nova-2"`
	DeepgramLanguage string `envconfig:"DEEPGRAM_LANGUAGE" default:"en"`

	// Request limits
	MaxTextLength     int `envconfig:"MAX_TEXT_LENGTH" default:"5000"`
	MaxInstructLength int `envconfig:"MAX_INSTRUCT_LENGTH" default:"500"`

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks configuration values for internal consistency
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("SAMPLE_RATE must be positive, got %d", c.SampleRate)
	}
	if c.ChunkBytes <= 0 || c.ChunkBytes%2 != 0 {
		return fmt.Errorf("STREAM_CHUNK_BYTES must be positive and even, got %d", c.ChunkBytes)
	}
	if c.CacheTTLSeconds <= 0 {
		return fmt.Errorf("CACHE_TTL_SECONDS must be positive, got %d", c.CacheTTLSeconds)
	}
	if c.CacheMaxEntries <= 0 {
		return fmt.Errorf("CACHE_MAX_ENTRIES must be positive, got %d", c.CacheMaxEntries)
	}
	if c.DeviceCount <= 0 {
		return fmt.Errorf("DEVICE_COUNT must be positive, got %d", c.DeviceCount)
	}
	return nil
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
