package profile

import (
	"errors"
	"testing"

	"vetcare/apperrors"
)

func TestParseID(t *testing.T) {
	tests := []struct {
		raw     string
		want    int64
		wantErr bool
	}{
		{raw: "1", want: 1},
		{raw: " 42 ", want: 42},
		{raw: "0", wantErr: true},
		{raw: "-3", wantErr: true},
		{raw: "abc", wantErr: true},
		{raw: "", wantErr: true},
		{raw: "1.5", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseID(tt.raw)
		if tt.wantErr {
			if !errors.Is(err, apperrors.ErrMalformedInput) {
				t.Errorf("ParseID(%q): expected ErrMalformedInput, got %v", tt.raw, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseID(%q): unexpected error: %v", tt.raw, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseID(%q) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Ana.Perez@Example.COM "); got != "ana.perez@example.com" {
		t.Fatalf("unexpected normalized email %q", got)
	}
}
