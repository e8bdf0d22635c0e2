package logformat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayout(t *testing.T) {
	tests := []struct {
		pattern string
		want    string
	}{
		{DefaultTimePattern, "02/Jan/2006:15:04:05 -0700"},
		{"yyyy-MM-dd'T'HH:mm:ss.SSSXXX", "2006-01-02T15:04:05.000Z07:00"},
		{"EEE, dd MMM yyyy HH:mm:ss z", "Mon, 02 Jan 2006 15:04:05 MST"},
		{"dd/MM/yy hh:mm a", "02/01/06 03:04 PM"},
		{"''yyyy''", "'2006'"},
		{"02/Jan/2006:15:04:05 -0700", "02/Jan/2006:15:04:05 -0700"},
		{time.RFC3339, time.RFC3339},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			got, err := Layout(tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLayout_Invalid(t *testing.T) {
	for _, p := range []string{"", "   ", "yyyy-MM-dd QQ", "HH:mm:ssSSS", "'unterminated"} {
		_, err := Layout(p)
		assert.ErrorIs(t, err, ErrInvalidTimePattern, p)
	}
}

func TestLayout_ParsesNginxTime(t *testing.T) {
	layout, err := Layout(DefaultTimePattern)
	require.NoError(t, err)

	got, err := time.Parse(layout, "10/Oct/2023:13:55:36 +0000")
	require.NoError(t, err)
	assert.Equal(t, int64(1696946136), got.Unix())
}
