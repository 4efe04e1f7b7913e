package util

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestManualClock(t *testing.T) {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	c := NewManualClock(start)
	ch := c.After(time.Second)

	c.Advance(500 * time.Millisecond)
	select {
	case <-ch:
		t.Fatal("fired early")
	default:
	}

	got := c.Advance(500 * time.Millisecond)
	assert.Equal(t, start.Add(time.Second), got)
	select {
	case ts := <-ch:
		assert.Equal(t, got, ts)
	default:
		t.Fatal("did not fire")
	}
	assert.Equal(t, got, c.Now())
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, zap.InfoLevel, l)

	l, err = ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, zap.DebugLevel, l)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestLoggerWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "node.log")
	logger, err := NewLoggerWithFile(path, "info")
	require.NoError(t, err)
	logger.Info("hello")
	_ = logger.Sync()
	assert.FileExists(t, path)
}
