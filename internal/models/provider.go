package models

import (
	"fmt"
	"slices"
	"strings"
)

// ProviderKind enumerates the providers a request can be routed to.
// The set is closed: adding a variant means adding it to AllProviderKinds
// and a client constructor in the providers package as well. The exhaustive
// linter (.golangci.yml) rejects a switch marked //exhaustive:enforce that
// misses a variant.
type ProviderKind string

const (
	ProviderAnthropic ProviderKind = "anthropic"
	ProviderOpenAI    ProviderKind = "openai"
	ProviderGoogle    ProviderKind = "google"
	ProviderBedrock   ProviderKind = "bedrock"
)

// AllProviderKinds returns every supported provider kind in a stable order.
func AllProviderKinds() []ProviderKind {
	return []ProviderKind{ProviderAnthropic, ProviderOpenAI, ProviderGoogle, ProviderBedrock}
}

// IsValid reports whether k is one of the known provider kinds.
func (k ProviderKind) IsValid() bool {
	return slices.Contains(AllProviderKinds(), k)
}

func (k ProviderKind) String() string {
	return string(k)
}

// ParseProviderKind parses a provider name case-insensitively.
func ParseProviderKind(s string) (ProviderKind, error) {
	k := ProviderKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", fmt.Errorf("unknown provider %q", s)
	}
	return k, nil
}
