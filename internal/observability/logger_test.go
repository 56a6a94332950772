package observability

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"panic", zerolog.PanicLevel},
		{"ERROR", zerolog.ErrorLevel},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.input))
		})
	}
}

func TestNewLogger(t *testing.T) {
	t.Run("applies configured level", func(t *testing.T) {
		logger := NewLogger(LoggingConfig{Level: "warn", Format: "json", Output: "stderr"})
		assert.Equal(t, zerolog.WarnLevel, logger.GetLevel())
	})

	t.Run("defaults work", func(t *testing.T) {
		logger := NewLogger(DefaultLoggingConfig())
		assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
	})
}

func TestContextHelpers(t *testing.T) {
	base := NewLogger(DefaultLoggingConfig())

	// Context helpers must return usable loggers; field assertions would
	// require capturing output, which the handlers already cover.
	_ = WithSearchContext(base, "req-1", "machine learning")
	_ = WithSourceContext(base, "crossref")
	_ = WithCacheContext(base, "l1", "SEARCH_RESULTS")
}
