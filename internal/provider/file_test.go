package provider

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

func TestFileStore_PutGetRoundTrip(t *testing.T) {
	store := NewFileStore(t.TempDir(), zap.NewNop())
	ctx := context.Background()

	if err := store.Put(ctx, "welcome", "fr", "<p>Bonjour {{name}}</p>"); err != nil {
		t.Fatalf("put: %v", err)
	}

	content, err := store.Get(ctx, "welcome", "fr")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if content != "<p>Bonjour {{name}}</p>" {
		t.Errorf("content: got %q", content)
	}
}

func TestFileStore_GetFallsBackToEnglish(t *testing.T) {
	store := NewFileStore(t.TempDir(), zap.NewNop())
	ctx := context.Background()

	if err := store.Put(ctx, "welcome", "en", "<p>Hello</p>"); err != nil {
		t.Fatalf("put: %v", err)
	}

	content, err := store.Get(ctx, "welcome", "de")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if content != "<p>Hello</p>" {
		t.Errorf("expected English content, got %q", content)
	}
}

func TestFileStore_GetMissingTemplate(t *testing.T) {
	store := NewFileStore(t.TempDir(), zap.NewNop())

	_, err := store.Get(context.Background(), "nope", "en")
	if !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("expected ErrTemplateNotFound, got %v", err)
	}
}

func TestFileStore_Exists(t *testing.T) {
	store := NewFileStore(t.TempDir(), zap.NewNop())
	ctx := context.Background()

	ok, err := store.Exists(ctx, "welcome", "en")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if ok {
		t.Error("template should not exist yet")
	}

	if err := store.Put(ctx, "welcome", "en", "hi"); err != nil {
		t.Fatalf("put: %v", err)
	}

	ok, err = store.Exists(ctx, "welcome", "en")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if !ok {
		t.Error("template should exist after put")
	}

	// Exists checks the exact variant, no English fallback.
	ok, err = store.Exists(ctx, "welcome", "fr")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if ok {
		t.Error("fr variant should not exist")
	}
}
