package analyzer

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/umbra/internal/models"
)

// ExtractTitle returns the page title, whitespace-collapsed and clamped to
// the persisted maximum length.
func (a *Analyzer) ExtractTitle(doc *goquery.Document) string {
	title := collapseWhitespace(doc.Find("title").First().Text())
	if len(title) > models.MaxTitleLength {
		title = title[:models.MaxTitleLength]
	}
	return title
}

// ExtractText returns the visible text of the page with script, style and
// noscript content removed and whitespace collapsed. The extractor and the
// language detector both run over this form.
func (a *Analyzer) ExtractText(doc *goquery.Document) string {
	// Selection.Remove mutates the document, so work on a clone.
	clone := goquery.CloneDocument(doc)
	clone.Find("script, style, noscript").Remove()
	return collapseWhitespace(clone.Text())
}
