package entities

import (
	"strings"

	"github.com/ternarybob/umbra/internal/models"
)

// pageIntelFloor is the minimum confidence for a match to surface on the
// page record. Matches below it (failed Luhn checks and similar) still feed
// the graph but stay out of the stored intel fields and the risk score.
const pageIntelFloor = 0.4

// socialNetworks maps contact/social subtypes to the network key used in
// Page.Socials.
var socialNetworks = map[string]string{
	SubtypeTelegram:  "telegram",
	SubtypeTwitter:   "twitter",
	SubtypeSessionID: "session",
	SubtypeToxID:     "tox",
	SubtypeUsername:  "username",
}

// ApplyToPage fills the page's intel fields from an extraction run and
// recomputes the risk score. Existing intel fields are replaced, not merged,
// so a re-crawl reflects only the current content.
func ApplyToPage(page *models.Page, matches []models.EntityMatch) {
	page.Secrets = make(map[string][]string)
	page.Cryptos = make(map[string][]string)
	page.Socials = make(map[string][]string)
	page.Emails = nil
	page.IPLeaks = nil

	for i := range matches {
		m := &matches[i]
		if m.Confidence < pageIntelFloor {
			continue
		}

		switch {
		case m.Type == models.EntityGroupDocument:
			page.Secrets[m.Subtype] = appendUnique(page.Secrets[m.Subtype], m.Value)
		case m.Type == models.EntityGroupCrypto:
			page.Cryptos[m.Subtype] = appendUnique(page.Cryptos[m.Subtype], m.Value)
		case m.Subtype == SubtypeEmail:
			page.Emails = appendUnique(page.Emails, m.Value)
		case m.Subtype == SubtypeIPv4 || m.Subtype == SubtypeIPv6:
			page.IPLeaks = appendUnique(page.IPLeaks, m.Value)
		default:
			if network, ok := socialNetworks[m.Subtype]; ok {
				page.Socials[network] = appendUnique(page.Socials[network], m.Value)
			}
		}
	}

	page.RiskScore = page.ComputeRiskScore()
}

func appendUnique(values []string, value string) []string {
	for _, v := range values {
		if v == value {
			return values
		}
	}
	return append(values, value)
}

// networkSubtypes is the inverse of socialNetworks
var networkSubtypes = map[string]string{
	"telegram": SubtypeTelegram,
	"twitter":  SubtypeTwitter,
	"session":  SubtypeSessionID,
	"tox":      SubtypeToxID,
	"username": SubtypeUsername,
}

// MatchesFromPage reconstructs extraction matches from a page's stored intel
// fields. Context and position are lost in storage, so the result carries
// the catalog's base confidence and no context; it is only used to refill
// the graph on startup.
func MatchesFromPage(page *models.Page) []models.EntityMatch {
	var matches []models.EntityMatch

	add := func(subtype, value string) {
		if value == "" {
			return
		}
		m := models.EntityMatch{Subtype: subtype, Value: value, Confidence: 0.5}
		if p := lookupPattern(subtype); p != nil {
			m.Type = p.Type
			m.Sensitive = p.Sensitive
			m.Confidence, m.Validated = validate(subtype, value, p.Confidence)
		}
		matches = append(matches, m)
	}

	for kind, values := range page.Secrets {
		for _, v := range values {
			add(kind, v)
		}
	}
	for coin, addrs := range page.Cryptos {
		for _, v := range addrs {
			add(coin, v)
		}
	}
	for network, handles := range page.Socials {
		subtype, ok := networkSubtypes[network]
		if !ok {
			subtype = network
		}
		for _, v := range handles {
			add(subtype, v)
		}
	}
	for _, v := range page.Emails {
		add(SubtypeEmail, v)
	}
	for _, v := range page.IPLeaks {
		if strings.Contains(v, ":") {
			add(SubtypeIPv6, v)
		} else {
			add(SubtypeIPv4, v)
		}
	}
	return matches
}

func lookupPattern(subtype string) *Pattern {
	for i := range catalog {
		if catalog[i].Subtype == subtype {
			return &catalog[i]
		}
	}
	return nil
}
