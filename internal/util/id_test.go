package util

import (
	"strings"
	"testing"
)

func TestNewID(t *testing.T) {
	plain := NewID("")
	if len(plain) != 32 || strings.Contains(plain, "-") {
		t.Fatalf("unexpected id %q", plain)
	}
	prefixed := NewID("scan")
	if !strings.HasPrefix(prefixed, "scan_") || len(prefixed) != len("scan_")+32 {
		t.Fatalf("unexpected prefixed id %q", prefixed)
	}
	if NewID("") == NewID("") {
		t.Fatal("ids must not repeat")
	}
}
