package modem

import (
	"log/slog"
	"time"

	"i4.energy/across/bg95/at"
)

// Config holds the settings of a Modem. Build one with NewConfigBuilder.
// Zero fields fall back to the defaults of setDefaults.
type Config struct {
	dialer        Dialer
	simPIN        string
	atTimeout     time.Duration
	initTimeout   time.Duration
	chunkInterval time.Duration
	maxResponse   int
	simPoll       PollConfig
	logger        *slog.Logger
	skipInit      bool
}

func (c *Config) validate() error {
	if c.dialer == nil {
		return ErrNoDialer
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.atTimeout <= 0 {
		c.atTimeout = 5 * time.Second
	}
	if c.initTimeout <= 0 {
		c.initTimeout = 30 * time.Second
	}
	if c.chunkInterval <= 0 {
		c.chunkInterval = 100 * time.Millisecond
	}
	if c.maxResponse <= 0 {
		c.maxResponse = at.MaxResponseLen
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
}

// ConfigBuilder assembles a Config.
type ConfigBuilder struct {
	config Config
}

func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{}
}

// WithDialer sets the Dialer used by New. It is required.
func (b *ConfigBuilder) WithDialer(d Dialer) *ConfigBuilder {
	b.config.dialer = d
	return b
}

// WithSimPIN sets the PIN entered when the SIM asks for one.
func (b *ConfigBuilder) WithSimPIN(pin string) *ConfigBuilder {
	b.config.simPIN = pin
	return b
}

// WithATTimeout sets the budget of commands whose descriptor has none.
func (b *ConfigBuilder) WithATTimeout(d time.Duration) *ConfigBuilder {
	b.config.atTimeout = d
	return b
}

// WithInitTimeout bounds the whole initialization sequence.
func (b *ConfigBuilder) WithInitTimeout(d time.Duration) *ConfigBuilder {
	b.config.initTimeout = d
	return b
}

// WithChunkInterval sets the longest single transport read.
func (b *ConfigBuilder) WithChunkInterval(d time.Duration) *ConfigBuilder {
	b.config.chunkInterval = d
	return b
}

// WithMaxResponseSize bounds the bytes accumulated for one response.
func (b *ConfigBuilder) WithMaxResponseSize(n int) *ConfigBuilder {
	b.config.maxResponse = n
	return b
}

// WithSIMPoll sets how the SIM is polled after entering the PIN.
func (b *ConfigBuilder) WithSIMPoll(p PollConfig) *ConfigBuilder {
	b.config.simPoll = p
	return b
}

func (b *ConfigBuilder) WithLogger(l *slog.Logger) *ConfigBuilder {
	b.config.logger = l
	return b
}

// WithSkipInit makes New return right after dialing, without running the
// initialization sequence.
func (b *ConfigBuilder) WithSkipInit(skip bool) *ConfigBuilder {
	b.config.skipInit = skip
	return b
}

// Build validates and returns the Config.
func (b *ConfigBuilder) Build() (Config, error) {
	c := b.config
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	c.setDefaults()
	return c, nil
}
