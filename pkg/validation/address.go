package validation

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// stacksAddressRe matches c32check-encoded Stacks principals:
// SP/SM on mainnet, ST/SN on testnet.
var stacksAddressRe = regexp.MustCompile(`^S[PTMN][0-9A-Z]{38,40}$`)

// ValidateAddress validates a Stacks address format.
func ValidateAddress(addr string) error {
	if addr == "" {
		return fmt.Errorf("address cannot be empty")
	}

	if !stacksAddressRe.MatchString(strings.ToUpper(addr)) {
		return fmt.Errorf("invalid Stacks address format: %s", addr)
	}

	return nil
}

// NormalizeHex strips an optional 0x prefix and lowercases a hex string.
func NormalizeHex(s string) string {
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	return strings.ToLower(s)
}

// ValidateTransactionHex checks that s is a plausible hex-encoded signed
// transaction. A serialized Stacks transaction is never shorter than 50
// bytes, so anything under 100 hex characters is rejected outright.
func ValidateTransactionHex(s string) error {
	normalized := NormalizeHex(s)
	if len(normalized) < 100 {
		return fmt.Errorf("transaction hex too short: %d characters", len(normalized))
	}
	if len(normalized)%2 != 0 {
		return fmt.Errorf("transaction hex has odd length")
	}
	if _, err := hex.DecodeString(normalized); err != nil {
		return fmt.Errorf("invalid transaction hex: %w", err)
	}
	return nil
}

// DecodeTransactionHex converts a hex string (with or without 0x prefix)
// to raw transaction bytes.
func DecodeTransactionHex(s string) ([]byte, error) {
	raw, err := hex.DecodeString(NormalizeHex(s))
	if err != nil {
		return nil, fmt.Errorf("invalid transaction hex: %w", err)
	}
	return raw, nil
}
