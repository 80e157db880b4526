package notify

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_ExpiresPerLevel(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	q := NewQueue()
	q.now = func() time.Time { return start }

	q.Succeeded("Task created successfully")
	q.Failed("Failed to create task")

	active := q.Active(start.Add(4 * time.Second))
	require.Len(t, active, 2)
	assert.Equal(t, LevelSuccess, active[0].Level)
	assert.Equal(t, LevelError, active[1].Level)

	active = q.Active(start.Add(6 * time.Second))
	require.Len(t, active, 1)
	assert.Equal(t, "Failed to create task", active[0].Message)

	assert.Empty(t, q.Active(start.Add(7*time.Second)))
}

func TestQueue_Dismiss(t *testing.T) {
	q := NewQueue()
	changes := 0
	q.OnChange = func() { changes++ }

	q.Succeeded("one")
	q.Succeeded("two")
	assert.Equal(t, 2, changes)

	active := q.Active(time.Now())
	require.Len(t, active, 2)

	q.Dismiss(active[0].ID)
	active = q.Active(time.Now())
	require.Len(t, active, 1)
	assert.Equal(t, "two", active[0].Message)

	q.Dismiss(999)
	assert.Len(t, q.Active(time.Now()), 1)
}

func TestMulti_FansOut(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	q := NewQueue()

	n := Multi{Log{Logger: logger}, q, Discard}
	n.Succeeded("saved")
	n.Failed("broken")

	assert.Contains(t, buf.String(), "msg=saved")
	assert.Contains(t, buf.String(), "level=ERROR msg=broken")
	assert.Len(t, q.Active(time.Now()), 2)
}
