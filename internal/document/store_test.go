package document

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestFileStoreRoundTrip(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	id, err := s.Save(ctx, "My Bill.TXT", strings.NewReader("hello"), 5)
	if err != nil {
		t.Fatal(err)
	}
	name, data, err := s.Open(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if name != id+".txt" || string(data) != "hello" {
		t.Errorf("Open = %q, %q", name, data)
	}
}

func TestFileStoreRejects(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if _, err := s.Save(ctx, "bill.pdf", strings.NewReader("%PDF"), 4); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Save(pdf) err = %v", err)
	}
	if _, _, err := s.Open(ctx, "../etc/passwd"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Open(traversal) err = %v", err)
	}
	if _, _, err := s.Open(ctx, NewID()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Open(unknown) err = %v", err)
	}
}

func TestMinioObjectName(t *testing.T) {
	s, err := NewMinioStore(MinioConfig{Endpoint: "localhost:9000", Bucket: "bills"})
	if err != nil {
		t.Fatal(err)
	}
	if got := s.objectName("abc", ".json"); got != "uploads/abc.json" {
		t.Errorf("objectName = %q", got)
	}
}
