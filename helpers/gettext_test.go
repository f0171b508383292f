package helpers

import "testing"

func TestGetText(t *testing.T) {
	if text := GetText("plugins.mirror.add-success"); text != "Mirror created!" {
		t.Fatalf("GetText() returned %q for a known id", text)
	}

	if text := GetText("plugins.mirror.does-not-exist"); text != "plugins.mirror.does-not-exist" {
		t.Fatalf("GetText() should return the id for unknown ids, got %q", text)
	}

	// objects without a "__" key fall back to the id
	if text := GetText("plugins.mirror"); text != "plugins.mirror" {
		t.Fatalf("GetText() returned %q for an object", text)
	}
}

func TestGetTextF(t *testing.T) {
	text := GetTextF("plugins.mirror.forward-failed-recreate", "123")
	expected := "Failed to forward this message to <#123>. Please ask an administrator to re-create this mirror."
	if text != expected {
		t.Fatalf("GetTextF() = %q, expected %q", text, expected)
	}
}
