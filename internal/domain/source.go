package domain

// Source identifies which external feed produced an observation.
type Source string

const (
	SourceTokenFeed    Source = "TOKEN_FEED"
	SourceContractMeta Source = "CONTRACT_META"
	SourceDexListing   Source = "DEX_LISTING"
	SourceTwitter      Source = "TWITTER"
)

// String returns the string representation of Source.
func (s Source) String() string {
	return string(s)
}

// IsValid checks if the source is a valid value.
func (s Source) IsValid() bool {
	switch s {
	case SourceTokenFeed, SourceContractMeta, SourceDexListing, SourceTwitter:
		return true
	}
	return false
}

// EntityKind distinguishes the two resolvable identity types.
type EntityKind string

const (
	KindTokenContract EntityKind = "TOKEN_CONTRACT"
	KindSocialAccount EntityKind = "SOCIAL_ACCOUNT"
)

// String returns the string representation of EntityKind.
func (k EntityKind) String() string {
	return string(k)
}

// IsValid checks if the kind is a valid value.
func (k EntityKind) IsValid() bool {
	return k == KindTokenContract || k == KindSocialAccount
}

// KindForSource maps a source to the entity kind its observations resolve to.
// TOKEN_FEED, CONTRACT_META and DEX_LISTING describe contracts; TWITTER
// describes social accounts.
func KindForSource(s Source) EntityKind {
	if s == SourceTwitter {
		return KindSocialAccount
	}
	return KindTokenContract
}
