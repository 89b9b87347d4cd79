package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "c2VjcmV0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.HostPort)
	assert.Equal(t, "Whiteboard", cfg.DynamoDBTable)
	assert.Equal(t, "PublishBoardQueue", cfg.SQSPublishQueue)
	assert.Equal(t, []byte("secret"), cfg.JWTSecret)
	assert.Equal(t, 600*time.Millisecond, cfg.AutosaveDebounce)
	assert.Equal(t, 0.2, cfg.ZoomMin)
	assert.Equal(t, 4.0, cfg.ZoomMax)
	assert.Equal(t, int64(10<<20), cfg.MaxImageBytes)
	assert.Equal(t, 20, cfg.MaxPDFPages)
	assert.False(t, cfg.DevMode)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DEV_MODE", "true")
	t.Setenv("AUTOSAVE_DEBOUNCE", "5s")
	t.Setenv("ZOOM_MIN", "0.1")
	t.Setenv("MAX_PDF_PAGES", "not a number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.DevMode)
	assert.Equal(t, MaxAutosaveDebounce, cfg.AutosaveDebounce)
	assert.Equal(t, 0.1, cfg.ZoomMin)
	assert.Equal(t, 20, cfg.MaxPDFPages)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("JWT_SECRET", "%%%")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("JWT_SECRET", "")
	t.Setenv("ZOOM_MIN", "5")
	_, err = Load()
	assert.Error(t, err)
}

func TestClampDebounce(t *testing.T) {
	assert.Equal(t, MinAutosaveDebounce, ClampDebounce(10*time.Millisecond))
	assert.Equal(t, 700*time.Millisecond, ClampDebounce(700*time.Millisecond))
	assert.Equal(t, MaxAutosaveDebounce, ClampDebounce(time.Minute))
}
