package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed digests.
// Version suffix enables future algorithm migration.
const (
	DomainArgs   = "tablets/args/v1"
	DomainResult = "tablets/result/v1"
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

// ArgsDigest identifies a call by method name and argument values.
// Two calls with equal arguments produce the same digest across runs, which
// is what journal replay keys on.
func ArgsDigest(method string, args []any) (string, error) {
	canonical, err := MarshalCanonical(map[string]any{
		"method": NormalizeName(method),
		"args":   append([]any{}, args...),
	})
	if err != nil {
		return "", fmt.Errorf("ArgsDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainArgs, canonical), nil
}

// ResultDigest identifies a result value.
func ResultDigest(v any) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("ResultDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainResult, canonical), nil
}

// MustArgsDigest is like ArgsDigest but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustArgsDigest(method string, args []any) string {
	d, err := ArgsDigest(method, args)
	if err != nil {
		panic(err)
	}
	return d
}
