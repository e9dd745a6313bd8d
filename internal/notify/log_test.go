package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogSender(t *testing.T) {
	var buf bytes.Buffer

	s := NewLogSender(slog.New(slog.NewJSONHandler(&buf, nil)))

	n := LoanDecision(Recipient{UserID: "u1", Email: "client@example.com"}, "l1", "rejected", "500000.00", "income")
	require.NoError(t, s.Send(context.Background(), n))
	require.NoError(t, s.Close())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, "Notification", entry["msg"])
	assert.Equal(t, "notify_log", entry["module"])
	assert.Equal(t, "loan_decision", entry["kind"])
	assert.Equal(t, "u1", entry["user_id"])
	assert.Equal(t, "income", entry["reason"])
	assert.Equal(t, "500000.00", entry["amount"])
}

func TestKYCDecisionOmitsEmptyReason(t *testing.T) {
	n := KYCDecision(Recipient{UserID: "u1"}, "approved", "")

	assert.Equal(t, KindKYCDecision, n.Kind)
	assert.Equal(t, map[string]string{"status": "approved"}, n.Data)
	assert.False(t, n.CreatedAt.IsZero())
}
