package timeparse

import (
	"testing"
	"time"

	"github.com/Black-And-White-Club/shardboard/app/shared/apperrors"
	sharedtypes "github.com/Black-And-White-Club/shardboard/app/shared/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func TestParser_Parse(t *testing.T) {
	p := New(nil)

	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{name: "rfc3339", input: "2025-03-15T18:00:00Z", want: time.Date(2025, 3, 15, 18, 0, 0, 0, time.UTC)},
		{name: "relative", input: "in 2 hours", want: now.Add(2 * time.Hour)},
		{name: "padded", input: "  in 30 minutes ", want: now.Add(30 * time.Minute)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Parse(tt.input, now)
			require.NoError(t, err)
			assert.Equal(t, sharedtypes.TimestampFrom(tt.want), got)
		})
	}
}

func TestParser_ParseEmptyIsUnbounded(t *testing.T) {
	got, err := New(nil).Parse("   ", now)
	require.NoError(t, err)
	assert.Zero(t, got)
}

func TestParser_ParseRejectsGibberish(t *testing.T) {
	_, err := New(nil).Parse("qwxz", now)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestParser_Window(t *testing.T) {
	p := New(nil)

	w, err := p.Window("", "in 3 hours", now)
	require.NoError(t, err)
	assert.Zero(t, w.Start)
	assert.Equal(t, sharedtypes.TimestampFrom(now.Add(3*time.Hour)), w.End)

	_, err = p.Window("in 3 hours", "in 1 hour", now)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = p.Window("qwxz", "", now)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}
