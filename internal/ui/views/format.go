package views

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/tgienger/taskboard/internal/models"
)

// clamp returns val clamped between minVal and maxVal
func clamp(val, minVal, maxVal int) int {
	if val < minVal {
		return minVal
	}
	if val > maxVal {
		return maxVal
	}
	return val
}

// DueLabel describes a due date relative to now: "Today, 3:04 PM" on the
// day itself, "Overdue: Jan 2" once it has passed (unless the task is
// completed) and "Jan 2" otherwise. No due date gives an empty label.
func DueLabel(due *time.Time, status models.Status, now time.Time) string {
	if due == nil {
		return ""
	}
	d := due.In(now.Location())
	y1, m1, d1 := d.Date()
	y2, m2, d2 := now.Date()
	switch {
	case y1 == y2 && m1 == m2 && d1 == d2:
		return "Today, " + d.Format("3:04 PM")
	case d.Before(now) && status != models.StatusCompleted:
		return "Overdue: " + d.Format("Jan 2")
	}
	return d.Format("Jan 2")
}

// isOverdue matches the "Overdue:" label
func isOverdue(label string) bool {
	return strings.HasPrefix(label, "Overdue")
}

// FileSize formats an attachment size the way file managers do
func FileSize(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}

// Ago formats a timestamp relative to now, e.g. "3 minutes ago"
func Ago(t time.Time) string {
	return humanize.Time(t)
}

// truncate shortens s to width cells, ending with an ellipsis when cut
func truncate(s string, width int) string {
	r := []rune(s)
	if width <= 0 {
		return ""
	}
	if len(r) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(r[:width-1]) + "…"
}

// splitList splits a comma separated field, dropping blanks
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
