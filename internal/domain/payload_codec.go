package domain

import (
	"encoding/json"
	"fmt"
)

// MarshalPayload encodes a payload with its kind discriminator for
// persistence.
func MarshalPayload(p Payload) (kind string, data []byte, err error) {
	if p == nil {
		return "", nil, fmt.Errorf("nil payload")
	}
	data, err = json.Marshal(p)
	if err != nil {
		return "", nil, fmt.Errorf("marshal %s payload: %w", p.PayloadKind(), err)
	}
	return p.PayloadKind(), data, nil
}

// UnmarshalPayload decodes a persisted payload by its kind discriminator.
func UnmarshalPayload(kind string, data []byte) (Payload, error) {
	var p Payload
	switch kind {
	case TokenListing{}.PayloadKind():
		p = &TokenListing{}
	case ContractMeta{}.PayloadKind():
		p = &ContractMeta{}
	case DexAudit{}.PayloadKind():
		p = &DexAudit{}
	case SocialPost{}.PayloadKind():
		p = &SocialPost{}
	case SocialProfile{}.PayloadKind():
		p = &SocialProfile{}
	default:
		return nil, fmt.Errorf("unknown payload kind %q", kind)
	}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("unmarshal %s payload: %w", kind, err)
	}
	// Return the value, not the pointer, so type switches on concrete
	// payload structs behave the same for stored and live observations.
	switch v := p.(type) {
	case *TokenListing:
		return *v, nil
	case *ContractMeta:
		return *v, nil
	case *DexAudit:
		return *v, nil
	case *SocialPost:
		return *v, nil
	case *SocialProfile:
		return *v, nil
	}
	return p, nil
}
