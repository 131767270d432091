package internal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Host:                 "localhost",
		Port:                 8080,
		LogLevel:             "DEBUG",
		EventBufferSize:      16,
		ConnectionBufferSize: 8,
		LowCapacityThreshold: 80,
		JwtSecret:            "0123456789abcdef",
		CharReplacement:      "*",
		MaxUploadBytes:       1024,
	}
}

func TestConfig_Validate(t *testing.T) {
	req := require.New(t)
	req.NoError(validConfig().Validate())

	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"empty event buffer", func(c *Config) { c.EventBufferSize = 0 }},
		{"empty connection buffer", func(c *Config) { c.ConnectionBufferSize = -1 }},
		{"no upload allowed", func(c *Config) { c.MaxUploadBytes = 0 }},
		{"threshold above 100", func(c *Config) { c.LowCapacityThreshold = 120 }},
		{"short secret", func(c *Config) { c.JwtSecret = "secret" }},
		{"replacement of two characters", func(c *Config) { c.CharReplacement = "**" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.modify(&c)
			require.Error(t, c.Validate())
		})
	}
}

func TestConfig_OriginPatterns(t *testing.T) {
	req := require.New(t)
	c := Config{AllowedOrigins: " app.example.com, ,localhost:*"}
	req.Equal([]string{"app.example.com", "localhost:*"}, c.OriginPatterns())
	req.Nil(Config{}.OriginPatterns())
	req.Equal("localhost:8080", validConfig().Address())
}

func TestCharacterRune(t *testing.T) {
	req := require.New(t)
	r, err := CharacterRune("#")
	req.NoError(err)
	req.Equal('#', r)

	_, err = CharacterRune("")
	req.Error(err)
}
