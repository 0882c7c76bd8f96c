package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainSchema      = "cyphersql/schema/v1"
	DomainTranslation = "cyphersql/translation/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Hash returns the hex SHA-256 of v's canonical JSON under domain.
func Hash(domain string, v any) (string, error) {
	data, err := Marshal(v)
	if err != nil {
		return "", fmt.Errorf("canonical hash %s: %w", domain, err)
	}
	return hashWithDomain(domain, data), nil
}

// TranslationKey identifies one translation: the same query against the
// same schema with the same options always yields the same key.
func TranslationKey(schemaFingerprint, dialect string, maxDepth int, query string) string {
	key, err := Hash(DomainTranslation, map[string]any{
		"schema":    schemaFingerprint,
		"dialect":   dialect,
		"max_depth": maxDepth,
		"query":     query,
	})
	if err != nil {
		// Only strings and ints are hashed here.
		panic(err)
	}
	return key
}
