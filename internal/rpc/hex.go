package rpc

import (
	"fmt"
	"math/big"
	"strings"
)

// ParseHexInt64 parses a 0x-prefixed hex quantity.
func ParseHexInt64(s string) (int64, error) {
	trimmed := strings.TrimPrefix(s, "0x")
	if trimmed == "" {
		return 0, fmt.Errorf("empty hex quantity %q", s)
	}
	n, ok := new(big.Int).SetString(trimmed, 16)
	if !ok {
		return 0, fmt.Errorf("invalid hex quantity %q", s)
	}
	if !n.IsInt64() {
		return 0, fmt.Errorf("hex quantity %q overflows int64", s)
	}
	return n.Int64(), nil
}

// FormatHexInt64 renders n as a 0x-prefixed hex quantity.
func FormatHexInt64(n int64) string {
	return fmt.Sprintf("0x%x", n)
}

// ParseHexBig parses a 0x-prefixed hex quantity of arbitrary size.
func ParseHexBig(s string) (*big.Int, error) {
	trimmed := strings.TrimPrefix(s, "0x")
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	n, ok := new(big.Int).SetString(trimmed, 16)
	if !ok {
		return nil, fmt.Errorf("invalid hex quantity %q", s)
	}
	return n, nil
}

// DecodeABIString decodes a single ABI-encoded string return value
// (offset, length, bytes). Returns "" for empty or malformed data rather
// than an error: non-ERC20 contracts routinely return garbage here.
func DecodeABIString(hexData string) string {
	data := strings.TrimPrefix(hexData, "0x")
	// offset word + length word = 128 hex chars minimum
	if len(data) < 128 {
		return ""
	}
	length, ok := new(big.Int).SetString(data[64:128], 16)
	if !ok || !length.IsInt64() {
		return ""
	}
	n := length.Int64()
	if n <= 0 || 128+n*2 > int64(len(data)) {
		return ""
	}
	raw := data[128 : 128+n*2]
	out := make([]byte, n)
	for i := int64(0); i < n; i++ {
		var b byte
		if _, err := fmt.Sscanf(raw[i*2:i*2+2], "%02x", &b); err != nil {
			return ""
		}
		out[i] = b
	}
	return string(out)
}

// DecodeABIAddress decodes a single ABI-encoded address return value.
func DecodeABIAddress(hexData string) string {
	data := strings.TrimPrefix(hexData, "0x")
	if len(data) < 64 {
		return ""
	}
	return "0x" + data[24:64]
}
