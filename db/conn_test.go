package db

import (
	"context"
	"testing"
)

func TestNewPool_Validation(t *testing.T) {
	if _, err := NewPool(context.Background(), "", Options{}); err == nil {
		t.Fatal("expected error for empty connection string")
	}
	if _, err := NewPool(context.Background(), "postgres://%zz", Options{}); err == nil {
		t.Fatal("expected parse error for malformed connection string")
	}
}
