package factory

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/prism/internal/config"
	"github.com/newthinker/prism/internal/core"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.LLMConfig
		wantName string
		wantErr  *core.Error
	}{
		{
			name:     "claude",
			cfg:      config.LLMConfig{Provider: "claude", Claude: config.ClaudeConfig{APIKey: "k"}},
			wantName: "claude",
		},
		{
			name:     "openai with base url",
			cfg:      config.LLMConfig{Provider: "openai", OpenAI: config.OpenAIConfig{APIKey: "k", BaseURL: "http://proxy.local/v1/"}},
			wantName: "openai",
		},
		{
			name:     "ollama needs no key",
			cfg:      config.LLMConfig{Provider: "ollama"},
			wantName: "ollama",
		},
		{
			name:    "claude without key",
			cfg:     config.LLMConfig{Provider: "claude"},
			wantErr: core.ErrConfigMissing,
		},
		{
			name:    "openai without key",
			cfg:     config.LLMConfig{Provider: "openai"},
			wantErr: core.ErrConfigMissing,
		},
		{
			name:    "unknown provider",
			cfg:     config.LLMConfig{Provider: "palm"},
			wantErr: core.ErrConfigInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.cfg)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				assert.Nil(t, p)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, p)
			assert.Equal(t, tt.wantName, p.Name())
		})
	}
}

func TestNew_DisabledReturnsNilProvider(t *testing.T) {
	p, err := New(config.LLMConfig{})
	require.NoError(t, err)
	assert.Nil(t, p)
}
