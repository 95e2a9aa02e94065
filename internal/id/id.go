// Package id generates opaque entity identifiers.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Entity prefixes.
const (
	PrefixBook     = "bk"
	PrefixUserBook = "ub"
	PrefixUser     = "usr"
)

// Generate creates a prefixed NanoID, e.g. "bk-V1StGXR8_Z5jdHi6B-myT".
// The default NanoID alphabet is URL-safe, so identifiers can be used in paths.
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}
