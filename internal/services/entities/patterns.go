package entities

import (
	"regexp"

	"github.com/ternarybob/umbra/internal/models"
)

// Stable subtype keys. These strings are shared with the graph's type index,
// the alert triggers and the export formats; they must not be renamed.
const (
	SubtypeBitcoin     = "bitcoin"
	SubtypeMonero      = "monero"
	SubtypeEthereum    = "ethereum"
	SubtypeLitecoin    = "litecoin"
	SubtypeEmail       = "email"
	SubtypePhone       = "phone"
	SubtypeTelegram    = "telegram"
	SubtypeSessionID   = "session_id"
	SubtypeToxID       = "tox_id"
	SubtypeCreditCard  = "credit_card"
	SubtypeIBAN        = "iban"
	SubtypeBIC         = "bic"
	SubtypeSSN         = "ssn"
	SubtypeAWSKey      = "aws_key"
	SubtypeGithubToken = "github_token"
	SubtypeJWT         = "jwt"
	SubtypeBearerToken = "bearer_token"
	SubtypeTwitter     = "twitter"
	SubtypeUsername    = "username"
	SubtypeIPv4        = "ipv4"
	SubtypeIPv6        = "ipv6"
	SubtypeOnion       = "onion_address"
	SubtypeMD5         = "md5"
	SubtypeSHA1        = "sha1"
	SubtypeSHA256      = "sha256"
)

// Pattern is one row of the extraction catalog. When the expression carries
// a capture group, group 1 is taken as the match value; otherwise the whole
// match is.
type Pattern struct {
	Type        string
	Subtype     string
	Regexp      *regexp.Regexp
	Description string
	Confidence  float64
	Sensitive   bool
}

// catalog is the flat compile-time pattern table. Patterns are scanned
// independently; a value matching two patterns emits one hit per subtype.
var catalog = []Pattern{
	// crypto
	{models.EntityGroupCrypto, SubtypeBitcoin,
		regexp.MustCompile(`\b(?:bc1[a-z0-9]{39,59}|[13][1-9A-HJ-NP-Za-km-z]{25,34})\b`),
		"Bitcoin address (bech32 or legacy)", 0.9, false},
	{models.EntityGroupCrypto, SubtypeMonero,
		regexp.MustCompile(`\b4[0-9AB][1-9A-HJ-NP-Za-km-z]{93}\b`),
		"Monero address", 0.85, false},
	{models.EntityGroupCrypto, SubtypeEthereum,
		regexp.MustCompile(`\b0x[a-fA-F0-9]{40}\b`),
		"Ethereum address", 0.85, false},
	{models.EntityGroupCrypto, SubtypeLitecoin,
		regexp.MustCompile(`\b[LM][a-km-zA-HJ-NP-Z1-9]{26,33}\b`),
		"Litecoin address", 0.6, false},

	// contact
	{models.EntityGroupContact, SubtypeEmail,
		regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9-]+(?:\.[A-Za-z0-9-]+)*\b`),
		"Email address", 0.9, false},
	{models.EntityGroupContact, SubtypePhone,
		regexp.MustCompile(`\+[0-9]{1,3}[-. (]?[0-9]{2,4}[-. )]?[0-9]{3,4}[-. ]?[0-9]{3,6}\b`),
		"International phone number", 0.5, false},
	{models.EntityGroupContact, SubtypeTelegram,
		regexp.MustCompile(`(?:(?:https?://)?t(?:elegram)?\.me/|\B@)([A-Za-z0-9_]{5,32})\b`),
		"Telegram handle or t.me link", 0.6, false},
	{models.EntityGroupContact, SubtypeSessionID,
		regexp.MustCompile(`\b05[0-9a-fA-F]{64}\b`),
		"Session messenger identifier", 0.9, false},
	{models.EntityGroupContact, SubtypeToxID,
		regexp.MustCompile(`\b[0-9A-F]{76}\b`),
		"Tox chat identifier", 0.85, false},

	// document
	{models.EntityGroupDocument, SubtypeCreditCard,
		regexp.MustCompile(`\b(?:4[0-9]{12}(?:[0-9]{3})?|5[1-5][0-9]{14}|3[47][0-9]{13}|6(?:011|5[0-9]{2})[0-9]{12})\b`),
		"Payment card number", 0.8, true},
	{models.EntityGroupDocument, SubtypeIBAN,
		regexp.MustCompile(`\b[A-Z]{2}[0-9]{2}[A-Z0-9]{11,30}\b`),
		"IBAN account number", 0.7, true},
	{models.EntityGroupDocument, SubtypeBIC,
		regexp.MustCompile(`\b[A-Z]{6}[A-Z0-9]{2}(?:[A-Z0-9]{3})?\b`),
		"BIC/SWIFT bank code", 0.4, false},
	{models.EntityGroupDocument, SubtypeSSN,
		regexp.MustCompile(`\b[0-9]{3}-[0-9]{2}-[0-9]{4}\b`),
		"US social security number", 0.75, true},
	{models.EntityGroupDocument, SubtypeAWSKey,
		regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`),
		"AWS access key id", 0.9, true},
	{models.EntityGroupDocument, SubtypeGithubToken,
		regexp.MustCompile(`\bghp_[A-Za-z0-9]{36}\b`),
		"GitHub personal access token", 0.95, true},
	{models.EntityGroupDocument, SubtypeJWT,
		regexp.MustCompile(`\beyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`),
		"JSON web token", 0.9, true},
	{models.EntityGroupDocument, SubtypeBearerToken,
		regexp.MustCompile(`[Bb]earer\s+([A-Za-z0-9\-._~+/]{20,}=*)`),
		"HTTP bearer token", 0.8, true},

	// social
	{models.EntityGroupSocial, SubtypeTwitter,
		regexp.MustCompile(`(?:twitter\.com/|x\.com/)([A-Za-z0-9_]{1,15})\b`),
		"Twitter/X profile", 0.6, false},

	// username
	{models.EntityGroupUsername, SubtypeUsername,
		regexp.MustCompile(`(?i)(?:username|user|login|handle)\s*[:=]\s*([A-Za-z0-9][A-Za-z0-9_.-]{2,31})\b`),
		"Labelled account name", 0.4, false},

	// address
	{models.EntityGroupAddress, SubtypeIPv4,
		regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4][0-9]|1[0-9]{2}|[1-9]?[0-9])\.){3}(?:25[0-5]|2[0-4][0-9]|1[0-9]{2}|[1-9]?[0-9])\b`),
		"IPv4 address", 0.8, false},
	{models.EntityGroupAddress, SubtypeIPv6,
		regexp.MustCompile(`\b(?:[0-9a-fA-F]{1,4}:){3,7}[0-9a-fA-F]{1,4}\b`),
		"IPv6 address", 0.5, false},
	{models.EntityGroupAddress, SubtypeOnion,
		regexp.MustCompile(`\b[a-z2-7]{56}\.onion\b|\b[a-z2-7]{16}\.onion\b`),
		"Onion hidden service address", 0.95, false},

	// hash
	{models.EntityGroupHash, SubtypeMD5,
		regexp.MustCompile(`\b[a-f0-9]{32}\b`),
		"MD5 digest", 0.5, false},
	{models.EntityGroupHash, SubtypeSHA1,
		regexp.MustCompile(`\b[a-f0-9]{40}\b`),
		"SHA-1 digest", 0.5, false},
	{models.EntityGroupHash, SubtypeSHA256,
		regexp.MustCompile(`\b[a-f0-9]{64}\b`),
		"SHA-256 digest", 0.5, false},
}

// Catalog returns the pattern table. The slice is shared; callers must not
// mutate it.
func Catalog() []Pattern {
	return catalog
}
