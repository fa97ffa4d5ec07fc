package storage

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestFileStoreRoundTrip(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	ctx := context.Background()

	body := "hello blob"
	if err := fs.Save(ctx, "jobs/abc/input.docx", strings.NewReader(body), int64(len(body))); err != nil {
		t.Fatalf("save: %v", err)
	}

	ok, err := fs.Exists(ctx, "jobs/abc/input.docx")
	if err != nil || !ok {
		t.Fatalf("exists = %v, %v", ok, err)
	}

	rc, err := fs.Open(ctx, "jobs/abc/input.docx")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	got, err := io.ReadAll(rc)
	rc.Close()
	if err != nil || string(got) != body {
		t.Fatalf("read back %q, %v", got, err)
	}

	if err := fs.Delete(ctx, "jobs/abc/input.docx"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	ok, err = fs.Exists(ctx, "jobs/abc/input.docx")
	if err != nil || ok {
		t.Fatalf("exists after delete = %v, %v", ok, err)
	}
}

func TestFileStoreDeleteMissingIsNoop(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	if err := fs.Delete(context.Background(), "jobs/none/out.docx"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	ctx := context.Background()
	for _, key := range []string{"../escape", "/abs/path", "."} {
		if err := fs.Save(ctx, key, strings.NewReader("x"), 1); err == nil {
			t.Fatalf("expected rejection for key %q", key)
		}
	}
}

func TestFileStoreRequiresBasePath(t *testing.T) {
	if _, err := NewFileStore("  "); err == nil {
		t.Fatalf("expected error for empty base path")
	}
}
