package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/live-canvas/pkg/log"
)

func TestLogWritesAuditEntry(t *testing.T) {
	var buf bytes.Buffer
	ctx := log.WithLogger(context.Background(), log.New(log.Config{Level: "info", Output: &buf}))

	LogWithDetail(ctx, ActionClear, "sess-1", "board=default", "board cleared")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, log.LogTypeAudit, entry[log.FieldLogType])
	assert.Equal(t, ActionClear, entry[FieldAction])
	assert.Equal(t, "sess-1", entry[log.FieldSessionID])
	assert.Equal(t, "board=default", entry[FieldDetail])
	assert.Equal(t, "board cleared", entry["message"])
}
