package domain

import (
	"github.com/shopspring/decimal"
)

// Observation is one normalized record of evidence about an entity from one
// source. Immutable once created.
type Observation struct {
	Source     Source
	EntityKey  string // normalized contract address or account handle
	Payload    Payload
	ObservedAt int64  // Unix timestamp in milliseconds
	RawID      string // source-native identifier, used for dedup
}

// Payload is the source-specific body of an observation.
// Concrete payload types are plain structs so they marshal to JSON as-is.
type Payload interface {
	// PayloadKind returns a stable discriminator for persistence.
	PayloadKind() string
}

// TokenListing describes a freshly created ERC-20 token seen on chain.
type TokenListing struct {
	Name         string          `json:"name"`
	Symbol       string          `json:"symbol"`
	Decimals     int             `json:"decimals"`
	TotalSupply  decimal.Decimal `json:"total_supply"`
	Owner        string          `json:"owner"`
	CreatedBlock int64           `json:"created_block"`
}

func (TokenListing) PayloadKind() string { return "token_listing" }

// ContractMeta carries verified source code and compiler metadata for a
// contract, as returned by an explorer API.
type ContractMeta struct {
	SourceCode      string `json:"source_code"`
	CompilerVersion string `json:"compiler_version"`
	LicenseType     string `json:"license_type"`
	IsProxy         bool   `json:"is_proxy"`
	Implementation  string `json:"implementation"`
}

func (ContractMeta) PayloadKind() string { return "contract_meta" }

// Verified reports whether the explorer returned source code for the contract.
func (m ContractMeta) Verified() bool {
	return m.SourceCode != ""
}

// DexAudit carries the security audit flags and trading figures a DEX
// aggregator publishes for a token pair, plus the social links attached to
// the listing. Social links drive cross-source correlation.
type DexAudit struct {
	PairAddress      string          `json:"pair_address"`
	IsOpenSource     bool            `json:"is_open_source"`
	IsHoneypot       bool            `json:"is_honeypot"`
	IsMintable       bool            `json:"is_mintable"`
	IsProxy          bool            `json:"is_proxy"`
	IsBlacklisted    bool            `json:"is_blacklisted"`
	TransferPausable bool            `json:"transfer_pausable"`
	BuyTaxMax        decimal.Decimal `json:"buy_tax_max"`
	SellTaxMax       decimal.Decimal `json:"sell_tax_max"`
	LiquidityUSD     decimal.Decimal `json:"liquidity_usd"`
	CreatorAddress   string          `json:"creator_address"`
	TwitterHandle    string          `json:"twitter_handle,omitempty"`
	WebsiteURL       string          `json:"website_url,omitempty"`
	TelegramURL      string          `json:"telegram_url,omitempty"`
	Warnings         []string        `json:"warnings,omitempty"`
}

func (DexAudit) PayloadKind() string { return "dex_audit" }

// SocialPost is a single post from a tracked account.
type SocialPost struct {
	Text          string   `json:"text"`
	PostedAt      int64    `json:"posted_at"` // Unix ms
	FavoriteCount int64    `json:"favorite_count"`
	ReplyCount    int64    `json:"reply_count"`
	RetweetCount  int64    `json:"retweet_count"`
	ViewCount     int64    `json:"view_count"`
	Mentions      []string `json:"mentions,omitempty"`
}

func (SocialPost) PayloadKind() string { return "social_post" }

// SocialProfile is a point-in-time snapshot of a tracked account.
// Available=false means the account is suspended, deleted or private.
type SocialProfile struct {
	DisplayName    string `json:"display_name"`
	FollowerCount  int64  `json:"follower_count"`
	FollowingCount int64  `json:"following_count"`
	PostCount      int64  `json:"post_count"`
	AccountCreated int64  `json:"account_created"` // Unix ms
	Available      bool   `json:"available"`
}

func (SocialProfile) PayloadKind() string { return "social_profile" }
