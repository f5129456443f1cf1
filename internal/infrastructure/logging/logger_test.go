package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestNewBuildsLogger(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"production", DefaultConfig()},
		{"development", DevelopmentConfig()},
		{"no outputs", Config{Level: "warn"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			require.NoError(t, err)
			assert.NotNil(t, logger.Component("test"))
		})
	}
}

func TestNopLogger(t *testing.T) {
	logger := NewNop()
	logger.Info("discarded")
	assert.NotNil(t, logger.Component("phase"))
}
