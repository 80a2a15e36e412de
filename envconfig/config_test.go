package envconfig

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":      slog.LevelInfo,
		"false": slog.LevelInfo,
		"0":     slog.LevelInfo,
		"true":  slog.LevelDebug,
		"1":     slog.LevelDebug,
		"2":     slog.Level(-8),
	}

	for value, want := range cases {
		t.Run(value, func(t *testing.T) {
			t.Setenv("ALBERT_DEBUG", value)
			assert.Equal(t, want, LogLevel())
		})
	}
}

func TestSeed(t *testing.T) {
	t.Setenv("ALBERT_SEED", "")
	assert.Equal(t, uint64(0), Seed())

	t.Setenv("ALBERT_SEED", "42")
	assert.Equal(t, uint64(42), Seed())

	t.Setenv("ALBERT_SEED", "not-a-number")
	assert.Equal(t, uint64(0), Seed())
}

func TestStrictGroups(t *testing.T) {
	t.Setenv("ALBERT_STRICT_GROUPS", "")
	assert.False(t, StrictGroups())

	t.Setenv("ALBERT_STRICT_GROUPS", "1")
	assert.True(t, StrictGroups())

	// unlesbare Werte gelten als gesetzt
	t.Setenv("ALBERT_STRICT_GROUPS", "ja")
	assert.True(t, StrictGroups())
}

func TestExportType(t *testing.T) {
	t.Setenv("ALBERT_EXPORT_TYPE", "")
	assert.Equal(t, "f32", ExportType())

	t.Setenv("ALBERT_EXPORT_TYPE", "'BF16'")
	assert.Equal(t, "bf16", ExportType())
}

func TestValues(t *testing.T) {
	t.Setenv("ALBERT_SEED", "7")
	vals := Values()
	assert.Equal(t, "7", vals["ALBERT_SEED"])
	assert.Contains(t, vals, "ALBERT_BACKEND")
}
