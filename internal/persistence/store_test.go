package persistence

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
)

func TestOpenRejectsMalformedDSN(t *testing.T) {
	t.Parallel()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := Open(context.Background(), "not a valid dsn ::::", logger)
	if err == nil {
		t.Fatal("Open() with malformed DSN: want error, got nil")
	}
	if !strings.Contains(err.Error(), "persistence") {
		t.Fatalf("error %q does not identify the persistence package", err)
	}
}
