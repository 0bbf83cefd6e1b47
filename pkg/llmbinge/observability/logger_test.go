package observability

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// jsonLogger returns a debug-level JSON logger and a function decoding
// everything it has written so far.
func jsonLogger(t *testing.T) (*slog.Logger, func() []map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "debug", "json")
	require.NoError(t, err)

	return logger, func() []map[string]any {
		var out []map[string]any
		for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
			if line == "" {
				continue
			}
			var rec map[string]any
			require.NoError(t, json.Unmarshal([]byte(line), &rec))
			out = append(out, rec)
		}
		return out
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	logger, err := NewLogger(&buf, "warn", "text")
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	_, err = NewLogger(&buf, "loud", "text")
	assert.Error(t, err)
	_, err = NewLogger(&buf, "info", "xml")
	assert.Error(t, err)
}

func TestLogHelpers(t *testing.T) {
	logger, records := jsonLogger(t)

	LogGenerationStart(logger, "n1", "article", "Octopus")
	LogGenerationComplete(logger, "n1", 12.5, 40, 200)
	LogGenerationError(logger, "n1", errors.New("boom"), 17)
	LogGenerationAborted(logger, "n1")
	LogMapPhase(logger, "n1", "layout")
	LogFlush(logger, "n1", 99)
	LogFlushError(logger, "n1", errors.New("disk"))
	LogStorageError(logger, "save node", "n1", errors.New("disk"))

	recs := records()
	require.Len(t, recs, 8)

	assert.Equal(t, "generation starting", recs[0]["msg"])
	assert.Equal(t, "Octopus", recs[0]["topic"])
	assert.Equal(t, float64(40), recs[1]["tokens"])
	assert.Equal(t, "ERROR", recs[2]["level"])
	assert.Equal(t, "boom", recs[2]["error"])
	assert.Equal(t, "generation aborted", recs[3]["msg"])
	assert.Equal(t, "layout", recs[4]["phase"])
	assert.Equal(t, "DEBUG", recs[5]["level"])
	assert.Equal(t, "WARN", recs[6]["level"])
	assert.Equal(t, "save node", recs[7]["operation"])
}

func TestEnrichLogger(t *testing.T) {
	logger, records := jsonLogger(t)

	EnrichLogger(logger, "s1", "n1").Info("hello")
	recs := records()
	require.Len(t, recs, 1)
	assert.Equal(t, "s1", recs[0]["session_id"])
	assert.Equal(t, "n1", recs[0]["node_id"])

	assert.Nil(t, EnrichLogger(nil, "s", "n"))
}

func TestNilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		LogGenerationStart(nil, "n", "article", "t")
		LogGenerationComplete(nil, "n", 1, 1, 1)
		LogGenerationError(nil, "n", errors.New("x"), 0)
		LogGenerationAborted(nil, "n")
		LogMapPhase(nil, "n", "topics")
		LogFlush(nil, "n", 1)
		LogFlushError(nil, "n", errors.New("x"))
		LogStorageError(nil, "op", "k", errors.New("x"))
	})
}

func TestTimedOperation(t *testing.T) {
	done := TimedOperation()
	time.Sleep(5 * time.Millisecond)
	assert.GreaterOrEqual(t, done(), 5.0)
}
