package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/gyeh/billcheck/internal/billing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestReadItems(t *testing.T) {
	want := []billing.LineItem{{Code: "99213", Description: "Office visit", Quantity: 1, Amount: 150}}

	bare := writeFile(t, "items.json", `[{"code":"99213","description":"Office visit","quantity":1,"amount":150}]`)
	got, err := readItems(bare)
	if err != nil || !reflect.DeepEqual(got, want) {
		t.Errorf("bare array: %+v, %v", got, err)
	}

	wrapped := writeFile(t, "extract.json", `
{"line_items":[{"code":"99213","description":"Office visit","quantity":1,"amount":150}],"source":"extracted"}`)
	got, err = readItems(wrapped)
	if err != nil || !reflect.DeepEqual(got, want) {
		t.Errorf("wrapped: %+v, %v", got, err)
	}

	if _, err := readItems(writeFile(t, "bad.json", `{`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestReadLines(t *testing.T) {
	p := writeFile(t, "sources.txt", "# bills\n\nbill1.json\n  https://example.com/b.txt?sig=1  \n")
	got, err := readLines(p)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"bill1.json", "https://example.com/b.txt?sig=1"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("readLines = %v", got)
	}
}

func TestSplitCodes(t *testing.T) {
	got := splitCodes(" 99213, j2001,,85025 ")
	want := []string{"99213", "J2001", "85025"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("splitCodes = %v", got)
	}
}
