package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ana.perez@example.com", "a***@example.com"},
		{"x@vet.org", "x***@vet.org"},
		{"not-an-email", "[REDACTED]"},
		{"@example.com", "[REDACTED]"},
		{"", "[REDACTED]"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MaskEmail(tt.in), "input %q", tt.in)
	}
}

func TestEmailField(t *testing.T) {
	f := Email("email", "ana@example.com")
	assert.Equal(t, "email", f.Key)
	assert.Equal(t, "a***@example.com", f.String)
}

func TestNew(t *testing.T) {
	logger, err := New("local", "debug")
	require.NoError(t, err)
	require.NotNil(t, logger)

	logger, err = New("production", "warn")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(-1), "debug must be disabled at warn")

	_, err = New("production", "loud")
	require.Error(t, err)
}
