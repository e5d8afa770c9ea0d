package utils

import (
	"testing"
)

func TestHashString(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "simple string", input: "hello world"},
		{name: "empty string", input: ""},
		{name: "api key", input: "sk-ant-api03-abcdef"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash := HashString(tt.input)
			if len(hash) != 64 {
				t.Errorf("HashString() length = %d, want 64", len(hash))
			}
			if hash != HashString(tt.input) {
				t.Error("HashString() should be deterministic")
			}
		})
	}
}

func TestFingerprint(t *testing.T) {
	fp := Fingerprint("sk-secret-value")
	if len(fp) != 12 {
		t.Fatalf("Fingerprint() length = %d, want 12", len(fp))
	}
	if fp != HashString("sk-secret-value")[:12] {
		t.Error("Fingerprint() should be a prefix of the hash")
	}
	if Fingerprint("") != "none" {
		t.Errorf("Fingerprint(\"\") = %q, want none", Fingerprint(""))
	}
	if Fingerprint("a") == Fingerprint("b") {
		t.Error("different secrets should have different fingerprints")
	}
}
