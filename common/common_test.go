package common

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetupLogger_Levels(t *testing.T) {
	log := SetupLogger(&LoggingOpts{})
	assert.False(t, log.Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, log.Enabled(context.Background(), slog.LevelInfo))

	log = SetupLogger(&LoggingOpts{Debug: true, JSON: true, Service: PackageName, Version: Version})
	assert.True(t, log.Enabled(context.Background(), slog.LevelDebug))
	_, isJSON := log.Handler().(*slog.JSONHandler)
	assert.True(t, isJSON)
}
