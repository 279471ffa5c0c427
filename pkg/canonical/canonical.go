// Package canonical produces deterministic byte representations of
// receipt-shaped records. Two records with the same semantic content yield
// identical bytes regardless of field insertion order, so they hash and
// sign identically on every platform. Canonicalization follows RFC 8785
// (JSON Canonicalization Scheme).
package canonical

import (
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// Canonicalize returns the RFC 8785 canonical JSON bytes for v.
// Absent optional fields (nil pointers, omitempty) are omitted before
// canonicalization, so a field that was never set and a field explicitly
// omitted are indistinguishable — by contract, not by accident.
//
// Circular structures are a programmer error and surface as a marshal error.
func Canonicalize(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal for canonicalization: %w", err)
	}

	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize: %w", err)
	}

	return canonical, nil
}

// CanonicalizeExcluding canonicalizes v with the named top-level fields
// removed. Used to compute a record's content hash over everything except
// its own integrity fields (chain, signature).
func CanonicalizeExcluding(v any, fields ...string) ([]byte, error) {
	// 1. Marshal first so struct json tags are respected
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal for canonicalization: %w", err)
	}

	// 2. Round-trip through a map to drop the excluded fields
	var rawMap map[string]interface{}
	if err := json.Unmarshal(raw, &rawMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into map: %w", err)
	}
	for _, f := range fields {
		delete(rawMap, f)
	}

	stripped, err := json.Marshal(rawMap)
	if err != nil {
		return nil, fmt.Errorf("failed to re-marshal stripped record: %w", err)
	}

	canonical, err := jcs.Transform(stripped)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize: %w", err)
	}

	return canonical, nil
}
