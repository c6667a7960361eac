package reports

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/umbra/internal/interfaces"
	"github.com/ternarybob/umbra/internal/models"
)

const (
	topDomainCount = 10
	topPageCount   = 15
	alertRowCount  = 20

	pageWidth  = 190.0
	lineHeight = 5.0
)

// Service renders crawl intelligence summaries as PDF files
type Service struct {
	logger arbor.ILogger
	pages  interfaces.PageStorage
	alerts interfaces.AlertStorage
}

// NewService creates a report generator over the given stores
func NewService(logger arbor.ILogger, pages interfaces.PageStorage, alerts interfaces.AlertStorage) *Service {
	return &Service{
		logger: logger,
		pages:  pages,
		alerts: alerts,
	}
}

// GenerateSummary writes the crawl summary report to path and returns the
// number of bytes written.
func (s *Service) GenerateSummary(path string) (int, error) {
	started := time.Now()

	stats, err := s.pages.GetStats()
	if err != nil {
		return 0, fmt.Errorf("failed to load store stats: %w", err)
	}
	profiles, err := s.pages.DomainProfiles()
	if err != nil {
		return 0, fmt.Errorf("failed to load domain profiles: %w", err)
	}
	pages, err := s.pages.AllPages()
	if err != nil {
		return 0, fmt.Errorf("failed to load pages: %w", err)
	}

	var alerts []*models.Alert
	if s.alerts != nil {
		alerts, err = s.alerts.ListAlerts("", false, alertRowCount)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Alert history unavailable for report")
		}
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 12)
	pdf.AddPage()

	s.renderHeader(pdf)
	s.renderStats(pdf, stats)
	s.renderTopDomains(pdf, profiles)
	s.renderTopPages(pdf, pages)
	s.renderAlerts(pdf, alerts)
	s.renderFooter(pdf)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	if err := pdf.OutputFileAndClose(path); err != nil {
		return 0, fmt.Errorf("failed to write report: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}

	s.logger.Info().
		Str("path", path).
		Int64("bytes", info.Size()).
		Dur("duration", time.Since(started)).
		Msg("Summary report generated")
	return int(info.Size()), nil
}

func (s *Service) renderHeader(pdf *fpdf.Fpdf) {
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(pageWidth, 10, "Hidden Service Crawl Summary", "", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "", 9)
	pdf.SetTextColor(110, 110, 110)
	pdf.CellFormat(pageWidth, 5, time.Now().UTC().Format("2006-01-02 15:04 UTC"), "", 1, "C", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(4)
}

func (s *Service) renderStats(pdf *fpdf.Fpdf, stats *models.StoreStats) {
	s.sectionTitle(pdf, "Crawl Totals")

	rows := [][2]string{
		{"Pages stored", fmt.Sprintf("%d", stats.TotalPages)},
		{"Successful fetches", fmt.Sprintf("%d", stats.SuccessPages)},
		{"Queued or failed", fmt.Sprintf("%d", stats.QueuedPages+stats.ErrorPages)},
		{"Distinct domains", fmt.Sprintf("%d", stats.TotalDomains)},
		{"Average risk score", fmt.Sprintf("%.1f", stats.AvgRiskScore)},
		{"High risk pages", fmt.Sprintf("%d", stats.HighRiskPages)},
		{"Email addresses", fmt.Sprintf("%d", stats.TotalEmails)},
		{"Crypto addresses", fmt.Sprintf("%d", stats.TotalCryptos)},
		{"Leaked secrets", fmt.Sprintf("%d", stats.TotalSecrets)},
	}

	pdf.SetFont("Arial", "", 9)
	for _, row := range rows {
		pdf.CellFormat(60, lineHeight+1, row[0], "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "B", 9)
		pdf.CellFormat(40, lineHeight+1, row[1], "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 9)
	}
	pdf.Ln(4)
}

func (s *Service) renderTopDomains(pdf *fpdf.Fpdf, profiles []*models.DomainProfile) {
	s.sectionTitle(pdf, "Most Crawled Domains")
	if len(profiles) == 0 {
		s.emptyNote(pdf, "No domains crawled yet.")
		return
	}

	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].PageCount > profiles[j].PageCount
	})
	if len(profiles) > topDomainCount {
		profiles = profiles[:topDomainCount]
	}

	widths := []float64{92, 22, 22, 24, 30}
	s.tableHeader(pdf, widths, []string{"Domain", "Pages", "OK", "Avg Risk", "Last Crawl"})

	pdf.SetFont("Arial", "", 8)
	for _, profile := range profiles {
		lastCrawl := ""
		if !profile.LastCrawl.IsZero() {
			lastCrawl = profile.LastCrawl.UTC().Format("2006-01-02 15:04")
		}
		pdf.CellFormat(widths[0], lineHeight, truncate(profile.Domain, 58), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], lineHeight, fmt.Sprintf("%d", profile.PageCount), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[2], lineHeight, fmt.Sprintf("%d", profile.SuccessCount), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], lineHeight, fmt.Sprintf("%.1f", profile.AvgRisk), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[4], lineHeight, lastCrawl, "1", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

func (s *Service) renderTopPages(pdf *fpdf.Fpdf, pages []*models.Page) {
	s.sectionTitle(pdf, "Highest Risk Pages")

	scored := make([]*models.Page, 0, len(pages))
	for _, page := range pages {
		if page.RiskScore > 0 {
			scored = append(scored, page)
		}
	}
	if len(scored) == 0 {
		s.emptyNote(pdf, "No scored pages yet.")
		return
	}

	sort.Slice(scored, func(i, j int) bool {
		return scored[i].RiskScore > scored[j].RiskScore
	})
	if len(scored) > topPageCount {
		scored = scored[:topPageCount]
	}

	widths := []float64{96, 44, 26, 24}
	s.tableHeader(pdf, widths, []string{"URL", "Title", "Category", "Risk"})

	pdf.SetFont("Arial", "", 8)
	for _, page := range scored {
		pdf.CellFormat(widths[0], lineHeight, truncate(page.URL, 62), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], lineHeight, truncate(page.Title, 28), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[2], lineHeight, page.Category, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[3], lineHeight, fmt.Sprintf("%d", page.RiskScore), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(4)
}

func (s *Service) renderAlerts(pdf *fpdf.Fpdf, alerts []*models.Alert) {
	s.sectionTitle(pdf, "Recent Alerts")
	if len(alerts) == 0 {
		s.emptyNote(pdf, "No alerts raised.")
		return
	}

	widths := []float64{34, 20, 100, 36}
	s.tableHeader(pdf, widths, []string{"Time", "Severity", "Alert", "Domain"})

	for _, alert := range alerts {
		switch alert.Severity {
		case models.SeverityCritical:
			pdf.SetTextColor(180, 30, 30)
			pdf.SetFont("Arial", "B", 8)
		case models.SeverityHigh:
			pdf.SetTextColor(190, 100, 20)
			pdf.SetFont("Arial", "", 8)
		default:
			pdf.SetTextColor(0, 0, 0)
			pdf.SetFont("Arial", "", 8)
		}
		pdf.CellFormat(widths[0], lineHeight, alert.Timestamp.UTC().Format("01-02 15:04"), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], lineHeight, string(alert.Severity), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[2], lineHeight, truncate(alert.Title, 64), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[3], lineHeight, truncate(alert.Domain, 22), "1", 1, "L", false, 0, "")
	}
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(4)
}

func (s *Service) renderFooter(pdf *fpdf.Fpdf) {
	pdf.Ln(2)
	pdf.SetFont("Arial", "I", 7)
	pdf.SetTextColor(130, 130, 130)
	pdf.CellFormat(pageWidth, 4, "Generated by umbra. Contains unverified open-source intelligence.", "", 1, "C", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
}

func (s *Service) sectionTitle(pdf *fpdf.Fpdf, title string) {
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(pageWidth, 8, title, "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 9)
}

func (s *Service) tableHeader(pdf *fpdf.Fpdf, widths []float64, labels []string) {
	pdf.SetFont("Arial", "B", 8)
	pdf.SetFillColor(230, 230, 230)
	for i, label := range labels {
		last := 0
		align := "L"
		if i == len(labels)-1 {
			last = 1
		}
		pdf.CellFormat(widths[i], lineHeight+1, label, "1", last, align, true, 0, "")
	}
	pdf.SetFillColor(255, 255, 255)
}

func (s *Service) emptyNote(pdf *fpdf.Fpdf, note string) {
	pdf.SetFont("Arial", "I", 9)
	pdf.SetTextColor(110, 110, 110)
	pdf.CellFormat(pageWidth, lineHeight, note, "", 1, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(4)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
