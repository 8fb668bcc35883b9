// Package report saves and summarizes the HTML reports rendered by the
// backend, and renders topology graphs as Mermaid diagrams.
package report

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/user/sawlah/internal/api"
	"github.com/user/sawlah/internal/model"
	"github.com/user/sawlah/internal/util"
)

// Source is the part of the API that produces reports.
type Source interface {
	GenerateReport(ctx context.Context, projectID int64, opts model.ReportOptions) ([]byte, error)
	DownloadReport(ctx context.Context, projectID int64) ([]byte, error)
	DownloadScannerReport(ctx context.Context, s api.Scanner, filename string) ([]byte, error)
}

// Generator fetches reports and writes them under the output directory.
type Generator struct {
	src    Source
	outDir string
	now    func() time.Time
}

// NewGenerator creates a generator writing to cfg.ReportOutputDir.
func NewGenerator(src Source, cfg *util.Config) *Generator {
	return &Generator{
		src:    src,
		outDir: cfg.ReportOutputDir,
		now:    time.Now,
	}
}

// Saved describes a report written to disk.
type Saved struct {
	Path    string
	Size    int
	Summary Summary
}

// Generate renders the project report with opts and saves it.
func (g *Generator) Generate(ctx context.Context, projectID int64, opts model.ReportOptions) (*Saved, error) {
	html, err := g.src.GenerateReport(ctx, projectID, opts)
	if err != nil {
		return nil, err
	}
	name := fmt.Sprintf("project-%d-%s.html", projectID, g.now().Format("20060102-150405"))
	return g.save(name, html)
}

// Download saves the last report generated for a project.
func (g *Generator) Download(ctx context.Context, projectID int64) (*Saved, error) {
	html, err := g.src.DownloadReport(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return g.save(fmt.Sprintf("project-%d.html", projectID), html)
}

// DownloadScanner saves a nikto or wafw00f report file.
func (g *Generator) DownloadScanner(ctx context.Context, s api.Scanner, filename string) (*Saved, error) {
	data, err := g.src.DownloadScannerReport(ctx, s, filename)
	if err != nil {
		return nil, err
	}
	return g.save(fmt.Sprintf("%s-%s", s, filepath.Base(filename)), data)
}

func (g *Generator) save(name string, data []byte) (*Saved, error) {
	if err := os.MkdirAll(g.outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create report dir: %w", err)
	}
	path := filepath.Join(g.outDir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write report: %w", err)
	}
	util.Info("report: saved %s (%d bytes)", path, len(data))

	saved := &Saved{Path: path, Size: len(data)}
	if strings.HasSuffix(name, ".html") || bytes.Contains(data[:min(len(data), 512)], []byte("<html")) {
		sum, err := Summarize(data)
		if err != nil {
			util.Warn("report: could not summarize %s: %v", path, err)
		} else {
			saved.Summary = sum
		}
	}
	return saved, nil
}

// Summary is what a rendered report contains, at a glance.
type Summary struct {
	Title    string
	Headings []string
	Tables   int
	Scans    int
	Findings map[string]int
}

var severityClass = regexp.MustCompile(`(?i)\b(?:severity|sev|badge)-(critical|high|medium|low|info)\b`)

// Summarize extracts the title, section headings and finding counts from
// an HTML report.
func Summarize(html []byte) (Summary, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return Summary{}, fmt.Errorf("failed to parse report: %w", err)
	}

	sum := Summary{
		Title:    strings.TrimSpace(doc.Find("title").First().Text()),
		Tables:   doc.Find("table").Length(),
		Scans:    doc.Find(".scan").Length(),
		Findings: make(map[string]int),
	}
	if sum.Title == "" {
		sum.Title = strings.TrimSpace(doc.Find("h1").First().Text())
	}

	doc.Find("h2").Each(func(_ int, s *goquery.Selection) {
		if text := strings.Join(strings.Fields(s.Text()), " "); text != "" {
			sum.Headings = append(sum.Headings, text)
		}
	})

	doc.Find("[data-severity], [class]").Each(func(_ int, s *goquery.Selection) {
		if sev, ok := s.Attr("data-severity"); ok && sev != "" {
			sum.Findings[strings.ToLower(sev)]++
			return
		}
		class, _ := s.Attr("class")
		if m := severityClass.FindStringSubmatch(class); m != nil {
			sum.Findings[strings.ToLower(m[1])]++
		}
	})

	return sum, nil
}

// TotalFindings sums findings across severities.
func (s Summary) TotalFindings() int {
	n := 0
	for _, c := range s.Findings {
		n += c
	}
	return n
}
