package helpers

import (
	"bytes"
	"testing"
)

func TestSniffMime(t *testing.T) {
	png := append([]byte("\x89PNG\x0D\x0A\x1A\x0A"), bytes.Repeat([]byte{0}, 1024)...)
	if mimetype := SniffMime(png); mimetype != "image/png" {
		t.Fatalf("expected image/png, got %s", mimetype)
	}

	if mimetype := SniffMime([]byte("hello")); mimetype != "text/plain; charset=utf-8" {
		t.Fatalf("expected text/plain, got %s", mimetype)
	}
}
