package analyzer

import (
	"regexp"
	"strings"
)

// minLanguageTextLength is the shortest text worth scoring; below it the
// detector returns "" rather than guess from a handful of tokens.
const minLanguageTextLength = 50

// languageOrder fixes the iteration order so score ties resolve
// deterministically.
var languageOrder = []string{"en", "de", "fr", "es", "it", "pt", "nl"}

// stopwords are small per-language indicator sets. Function words are the
// most frequent tokens in running text, so a dozen per language separates
// them reliably without a model.
var stopwords = map[string]map[string]bool{
	"en": wordSet("the", "and", "is", "in", "to", "of", "that", "you", "for", "with", "this", "are", "have", "not", "from"),
	"de": wordSet("der", "die", "das", "und", "ist", "nicht", "mit", "ein", "eine", "auf", "sie", "ich", "werden", "sind", "wir"),
	"fr": wordSet("le", "la", "les", "des", "est", "une", "dans", "pour", "que", "avec", "sur", "pas", "vous", "nous", "sont"),
	"es": wordSet("el", "los", "las", "es", "una", "para", "con", "por", "que", "del", "se", "no", "como", "esta", "mas"),
	"it": wordSet("il", "che", "di", "per", "una", "con", "del", "sono", "non", "anche", "questo", "della", "gli", "nel", "alla"),
	"pt": wordSet("os", "as", "que", "para", "com", "uma", "nao", "por", "mais", "como", "dos", "das", "ele", "sua", "foi"),
	"nl": wordSet("de", "het", "een", "van", "en", "dat", "niet", "voor", "met", "zijn", "maar", "als", "ook", "naar", "deze"),
}

var wordTokenRe = regexp.MustCompile(`[a-z]+`)

// DetectLanguage scores ASCII word tokens against fixed per-language
// stopword sets and returns the best match, or "" when the text is too
// short or no indicator hits at all.
func (a *Analyzer) DetectLanguage(text string) string {
	if len(text) < minLanguageTextLength {
		return ""
	}

	tokens := wordTokenRe.FindAllString(strings.ToLower(text), -1)
	if len(tokens) == 0 {
		return ""
	}

	scores := make(map[string]int, len(languageOrder))
	for _, token := range tokens {
		for lang, words := range stopwords {
			if words[token] {
				scores[lang]++
			}
		}
	}

	best := ""
	bestScore := 0
	for _, lang := range languageOrder {
		if scores[lang] > bestScore {
			best = lang
			bestScore = scores[lang]
		}
	}
	return best
}

func wordSet(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}
