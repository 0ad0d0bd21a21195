// Package entitykey derives stable entity keys from raw source identifiers.
// Two observations naming the same real-world entity must always normalize to
// the same key, whatever formatting the source used.
package entitykey

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"scamwatch/internal/domain"
)

var (
	contractAddressRe = regexp.MustCompile(`^0x[0-9a-f]{40}$`)
	handleRe          = regexp.MustCompile(`^[a-z0-9_]{1,15}$`)
	// Matches profile URLs like https://x.com/SomeUser or twitter.com/SomeUser.
	profileURLRe = regexp.MustCompile(`^(?:https?://)?(?:www\.)?(?:x\.com|twitter\.com)/([A-Za-z0-9_]+)/?$`)
)

// NormalizeContractAddress lower-cases and validates an EVM contract address.
func NormalizeContractAddress(raw string) (string, error) {
	addr := strings.ToLower(strings.TrimSpace(raw))
	if !strings.HasPrefix(addr, "0x") {
		addr = "0x" + addr
	}
	if !contractAddressRe.MatchString(addr) {
		return "", fmt.Errorf("invalid contract address %q", raw)
	}
	return addr, nil
}

// NormalizeHandle lower-cases a social handle, stripping an @ prefix or a
// full profile URL.
func NormalizeHandle(raw string) (string, error) {
	h := strings.TrimSpace(raw)
	if m := profileURLRe.FindStringSubmatch(h); m != nil {
		h = m[1]
	}
	h = strings.ToLower(strings.TrimPrefix(h, "@"))
	if !handleRe.MatchString(h) {
		return "", fmt.Errorf("invalid handle %q", raw)
	}
	return h, nil
}

// ForSource normalizes a raw key according to the entity kind the source
// resolves to.
func ForSource(source domain.Source, raw string) (string, error) {
	if domain.KindForSource(source) == domain.KindSocialAccount {
		return NormalizeHandle(raw)
	}
	return NormalizeContractAddress(raw)
}

// ObservationID computes a deterministic observation identifier using SHA256.
// Formula: SHA256(source|entity_key|raw_id). Returns a hex-encoded hash
// (64 characters). Used as the idempotence key for archived observations.
func ObservationID(source domain.Source, entityKey, rawID string) string {
	data := fmt.Sprintf("%s|%s|%s", source, entityKey, rawID)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
