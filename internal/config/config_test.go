package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/bridge")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	// neutralize ambient values
	t.Setenv("PORT", "")
	t.Setenv("OPENAI_MODEL", "")
	t.Setenv("OPENAI_TEMPERATURE", "")
	t.Setenv("SOURCE_REMOVAL_REGEX", "")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "gpt-4o-mini", cfg.DefaultModel)
	assert.Equal(t, 1.0, cfg.DefaultTemperature)
	assert.Nil(t, cfg.SourceRemoval)
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("DATABASE_URL", "postgres://localhost/bridge")
	t.Setenv("OPENAI_API_KEY", "")
	_, err = Load()
	require.Error(t, err)
}

func TestLoad_RedactionPattern(t *testing.T) {
	setRequired(t)
	t.Setenv("SOURCE_REMOVAL_REGEX", `【.*?】`)

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg.SourceRemoval)
	assert.Equal(t, "see ", cfg.SourceRemoval.ReplaceAllString("see 【4:0†src】", ""))
}

func TestLoad_InvalidRedactionPattern(t *testing.T) {
	setRequired(t)
	t.Setenv("SOURCE_REMOVAL_REGEX", `[unclosed`)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SOURCE_REMOVAL_REGEX")
}

func TestLoad_TemperatureParsing(t *testing.T) {
	setRequired(t)
	t.Setenv("OPENAI_TEMPERATURE", "0.4")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 0.4, cfg.DefaultTemperature)

	t.Setenv("OPENAI_TEMPERATURE", "warm")
	_, err = Load()
	require.Error(t, err)
}
