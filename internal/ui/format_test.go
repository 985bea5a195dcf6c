package ui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRelativeTime(t *testing.T) {
	now := time.Now()
	tests := []struct {
		in   time.Time
		want string
	}{
		{time.Time{}, "never"},
		{now.Add(-10 * time.Second), "just now"},
		{now.Add(-5 * time.Minute), "5m ago"},
		{now.Add(-3 * time.Hour), "3h ago"},
		{now.Add(-49 * time.Hour), "2d ago"},
		{now.Add(-15 * 24 * time.Hour), "2w ago"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RelativeTime(tt.in))
	}
}

func TestSplitWidths(t *testing.T) {
	l := NewLayout(100, 30)
	tbl, det := l.SplitWidths(false)
	assert.Equal(t, 100, tbl)
	assert.Zero(t, det)

	tbl, det = l.SplitWidths(true)
	assert.Equal(t, 60, tbl)
	assert.Equal(t, 40, det)

	tbl, det = NewLayout(50, 30).SplitWidths(true)
	assert.Equal(t, 25, tbl)
	assert.Equal(t, 25, det)

	assert.Equal(t, 28, l.ContentHeight())
}
