package bridge

import (
	"time"

	"github.com/rs/zerolog"

	"litertd/internal/engine"
	"litertd/pkg/types"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultMaxQueueDepth = 8
	defaultMaxWait       = 30 * time.Second
	defaultMaxTokens     = 1024
	defaultTopK          = 40
	defaultTemperature   = 0.8
	defaultMaxRetries    = 3
)

// Config encapsulates all tunables for Bridge construction.
type Config struct {
	// Catalog of loadable models.
	Catalog []types.Model
	// DefaultModel is used when a request omits the model id.
	DefaultModel string

	// Generation parameters applied at session creation.
	MaxTokens   int
	TopK        int
	Temperature float32
	RandomSeed  int

	// Multimodal capabilities requested for new sessions.
	EnableVision bool
	EnableAudio  bool

	// Admission tuning: queued requests per handle and the longest a
	// request waits for the in-flight slot before TooBusy.
	MaxQueueDepth int
	MaxWait       time.Duration

	// MaxRetries is the default structured-output attempt budget when a
	// request does not set its own.
	MaxRetries int

	// Logger for bridge internals. Defaults to a disabled logger.
	Logger *zerolog.Logger
}

func (c Config) maxQueueDepth() int {
	if c.MaxQueueDepth <= 0 {
		return defaultMaxQueueDepth
	}
	return c.MaxQueueDepth
}

func (c Config) maxWait() time.Duration {
	if c.MaxWait <= 0 {
		return defaultMaxWait
	}
	return c.MaxWait
}

func (c Config) maxRetries() int {
	if c.MaxRetries <= 0 {
		return defaultMaxRetries
	}
	return c.MaxRetries
}

// modelConfig maps the bridge defaults plus a catalog entry onto the native
// creation parameters.
func (c Config) modelConfig(mdl types.Model) engine.ModelConfig {
	cfg := engine.ModelConfig{
		Path:         mdl.Path,
		MaxTokens:    c.MaxTokens,
		TopK:         c.TopK,
		Temperature:  c.Temperature,
		RandomSeed:   c.RandomSeed,
		EnableVision: c.EnableVision,
		EnableAudio:  c.EnableAudio,
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.TopK <= 0 {
		cfg.TopK = defaultTopK
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = defaultTemperature
	}
	return cfg
}
