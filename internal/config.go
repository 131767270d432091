package internal

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Host                 string        `env:"HOST,default=localhost"`
	Port                 int           `env:"PORT,default=8080"`
	LogLevel             string        `env:"LOG_LEVEL,required=true"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath        string        `env:"BLUGE_FILEPATH,required=true"`
	BlobRootDir          string        `env:"BLOB_ROOT_DIR,required=true"`
	EventBufferSize      int           `env:"EVENT_BUFFER_SIZE,default=1024"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	WriteTimeout         time.Duration `env:"WRITE_TIMEOUT,default=5s"`
	RequestTimeout       time.Duration `env:"REQUEST_TIMEOUT,default=30s"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=1s"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,default=10s"`
	LowCapacityThreshold int           `env:"LOW_CAPACITY_THRESHOLD,default=80"`
	JwtSecret            string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration    time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
	CharReplacement      string        `env:"CHARACTER_REPLACEMENT,default=*"`
	LimitMessages        *int          `env:"LIMIT_MESSAGES"`
	MaxContentLength     int           `env:"MAX_CONTENT_LENGTH,default=2000"`
	MaxUploadBytes       int64         `env:"MAX_UPLOAD_BYTES,default=10485760"`
	AllowedOrigins       string        `env:"ALLOWED_ORIGINS"`
}

func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// OriginPatterns splits ALLOWED_ORIGINS on commas. Empty means same origin only.
func (c Config) OriginPatterns() []string {
	var patterns []string
	for _, p := range strings.Split(c.AllowedOrigins, ",") {
		if p = strings.TrimSpace(p); p != "" {
			patterns = append(patterns, p)
		}
	}
	return patterns
}

// Validate catches values go-env accepts but the server cannot run with.
func (c Config) Validate() error {
	switch {
	case c.EventBufferSize <= 0:
		return fmt.Errorf("EVENT_BUFFER_SIZE must be positive, got %d", c.EventBufferSize)
	case c.ConnectionBufferSize <= 0:
		return fmt.Errorf("CONNECTION_BUFFER_SIZE must be positive, got %d", c.ConnectionBufferSize)
	case c.MaxUploadBytes <= 0:
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes)
	case c.LowCapacityThreshold <= 0 || c.LowCapacityThreshold > 100:
		return fmt.Errorf("LOW_CAPACITY_THRESHOLD must be a percentage, got %d", c.LowCapacityThreshold)
	case len(c.JwtSecret) < 16:
		return fmt.Errorf("JWT_SECRET must be at least 16 characters")
	}
	if _, err := CharacterRune(c.CharReplacement); err != nil {
		return err
	}
	return nil
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
