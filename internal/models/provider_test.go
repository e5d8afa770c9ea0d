package models

import (
	"testing"
)

func TestProviderKind_Constants(t *testing.T) {
	tests := []struct {
		name     string
		provider ProviderKind
		expected string
	}{
		{"Anthropic", ProviderAnthropic, "anthropic"},
		{"OpenAI", ProviderOpenAI, "openai"},
		{"Google", ProviderGoogle, "google"},
		{"Bedrock", ProviderBedrock, "bedrock"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if string(tt.provider) != tt.expected {
				t.Errorf("ProviderKind = %s, want %s", tt.provider, tt.expected)
			}
			if !tt.provider.IsValid() {
				t.Errorf("ProviderKind %s should be valid", tt.provider)
			}
		})
	}
}

func TestProviderKind_AllKindsAreValid(t *testing.T) {
	kinds := AllProviderKinds()
	if len(kinds) != 4 {
		t.Fatalf("AllProviderKinds() returned %d kinds, want 4", len(kinds))
	}
	seen := make(map[ProviderKind]bool)
	for _, k := range kinds {
		if seen[k] {
			t.Errorf("duplicate kind %s", k)
		}
		seen[k] = true
		if !k.IsValid() {
			t.Errorf("kind %s should be valid", k)
		}
	}
}

func TestProviderKind_ValidOnlyInsideClosedSet(t *testing.T) {
	for _, name := range []string{"vertexai", "azure", "Anthropic", "anthropic ", ""} {
		if ProviderKind(name).IsValid() {
			t.Errorf("ProviderKind(%q) should not be valid", name)
		}
	}
}

func TestParseProviderKind(t *testing.T) {
	tests := []struct {
		in      string
		want    ProviderKind
		wantErr bool
	}{
		{"anthropic", ProviderAnthropic, false},
		{"OpenAI", ProviderOpenAI, false},
		{" google ", ProviderGoogle, false},
		{"BEDROCK", ProviderBedrock, false},
		{"vertexai", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseProviderKind(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseProviderKind(%q) expected error", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseProviderKind(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseProviderKind(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}
