package analyzer

import (
	"regexp"
	"sort"
	"strings"
)

// titleWeight multiplies category hits found in the page title; a term in
// the title says far more about the site than the same term buried in a
// listing.
const titleWeight = 3

// maxKeywords caps the keyword list persisted per page
const maxKeywords = 20

// categoryOrder fixes iteration order for deterministic tie-breaking
var categoryOrder = []string{
	"marketplace", "forum", "leak_dump", "hacking", "carding",
	"drugs", "documents", "weapons", "crypto_service", "hosting",
}

// categoryPatterns are the weighted regex groups behind site
// classification. Word boundaries keep "card" from matching "discard".
var categoryPatterns = map[string]*regexp.Regexp{
	"marketplace":    regexp.MustCompile(`(?i)\b(marketplace|market|vendor|escrow|listing|product|add to cart|checkout|order now)\b`),
	"forum":          regexp.MustCompile(`(?i)\b(forum|thread|topic|reply|member|board|register|last post|subforum)\b`),
	"leak_dump":      regexp.MustCompile(`(?i)\b(leak|leaked|dump|breach|breached|database|combo list|stealer|logs for sale)\b`),
	"hacking":        regexp.MustCompile(`(?i)\b(hack|hacking|exploit|0day|zero.day|vulnerability|malware|ransomware|botnet|rat|keylogger)\b`),
	"carding":        regexp.MustCompile(`(?i)\b(carding|cvv|fullz|dumps|track2|track 2|bins?|card shop|credit cards?)\b`),
	"drugs":          regexp.MustCompile(`(?i)\b(drugs?|cannabis|weed|cocaine|mdma|lsd|heroin|pills|grams?|psychedelics?)\b`),
	"documents":      regexp.MustCompile(`(?i)\b(passports?|driver'?s? licen[cs]e|id cards?|ssn|documents?|certificates?|citizenship)\b`),
	"weapons":        regexp.MustCompile(`(?i)\b(weapons?|guns?|pistols?|rifles?|ammo|ammunition|firearms?|glock)\b`),
	"crypto_service": regexp.MustCompile(`(?i)\b(mixer|tumbler|exchange|wallets?|bitcoin|monero|escrow service|swap|laundering)\b`),
	"hosting":        regexp.MustCompile(`(?i)\b(hosting|vps|servers?|bulletproof|onion hosting|domains?|uptime|shared hosting)\b`),
}

// Classify assigns the page to the category with the highest weighted hit
// count. Title matches count triple. Returns "" when nothing matches.
func (a *Analyzer) Classify(title, text string) string {
	scores := a.categoryScores(title, text)

	best := ""
	bestScore := 0
	for _, category := range categoryOrder {
		if scores[category] > bestScore {
			best = category
			bestScore = scores[category]
		}
	}
	return best
}

// ExtractKeywords returns the distinct category indicator terms that
// matched anywhere on the page, sorted, capped at maxKeywords.
func (a *Analyzer) ExtractKeywords(title, text string) []string {
	combined := strings.ToLower(title + " " + text)

	seen := make(map[string]bool)
	for _, category := range categoryOrder {
		for _, match := range categoryPatterns[category].FindAllString(combined, -1) {
			seen[strings.ToLower(match)] = true
		}
	}

	keywords := make([]string, 0, len(seen))
	for keyword := range seen {
		keywords = append(keywords, keyword)
	}
	sort.Strings(keywords)

	if len(keywords) > maxKeywords {
		keywords = keywords[:maxKeywords]
	}
	return keywords
}

func (a *Analyzer) categoryScores(title, text string) map[string]int {
	scores := make(map[string]int, len(categoryOrder))
	for _, category := range categoryOrder {
		re := categoryPatterns[category]
		score := titleWeight*len(re.FindAllString(title, -1)) + len(re.FindAllString(text, -1))
		if score > 0 {
			scores[category] = score
		}
	}
	return scores
}
