package infrastructure

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"wacontacts/internal/interfaces"
)

func TestNewNotifierWithoutCredentialsIsNop(t *testing.T) {
	n := NewNotifier("", 0, zap.NewNop())
	assert.IsType(t, NopNotifier{}, n)
	assert.NoError(t, n.NotifySync(context.Background(), interfaces.SyncReport{}))

	n = NewNotifier("token", 0, zap.NewNop())
	assert.IsType(t, NopNotifier{}, n)
}

func TestFormatSyncReport(t *testing.T) {
	got := FormatSyncReport(interfaces.SyncReport{
		UserID:   7,
		Session:  "5511999990000@s.whatsapp.net",
		Total:    10,
		Saved:    8,
		Failed:   1,
		Skipped:  1,
		Promoted: 2,
		Duration: 1234567 * time.Microsecond,
	})
	assert.Contains(t, got, "user 7 (5511999990000@s.whatsapp.net)")
	assert.Contains(t, got, "Saved: 8")
	assert.Contains(t, got, "Promoted: 2")
	assert.Contains(t, got, "Duration: 1.235s")
}
