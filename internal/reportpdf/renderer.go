// Package reportpdf renders a budget-window report to PDF through headless
// Chromium. The markdown is converted with goldmark, wrapped in a print
// stylesheet, and printed via the DevTools protocol.
package reportpdf

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"html"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

type ChromiumRenderer struct {
	chromePath string
}

func NewChromiumRenderer() *ChromiumRenderer {
	return &ChromiumRenderer{chromePath: detectChromePath()}
}

// Render accepts either raw report markdown or a full response-envelope JSON
// blob; in the envelope case the header metadata and status badges are pulled
// from the envelope fields.
func (r *ChromiumRenderer) Render(ctx context.Context, report string) ([]byte, error) {
	htmlDoc, err := buildHTML(report)
	if err != nil {
		return nil, err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
	}
	if r.chromePath != "" {
		opts = append(opts, chromedp.ExecPath(r.chromePath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(timeoutCtx, append(chromedp.DefaultExecAllocatorOptions[:], opts...)...)
	defer allocCancel()

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	var pdf []byte
	dataURL := "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte(htmlDoc))
	if err := chromedp.Run(taskCtx,
		chromedp.Navigate(dataURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			footer := `<div style="width:100%;text-align:center;font-size:9px;color:#666;padding-right:8px;">` +
				`Page <span class="pageNumber"></span> of <span class="totalPages"></span></div>`
			out, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithDisplayHeaderFooter(true).
				WithHeaderTemplate(`<div></div>`).
				WithFooterTemplate(footer).
				WithPaperWidth(8.27).
				WithPaperHeight(11.69).
				WithMarginTop(0.5).
				WithMarginBottom(0.75).
				WithMarginLeft(0.45).
				WithMarginRight(0.45).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = out
			return nil
		}),
	); err != nil {
		return nil, err
	}
	return pdf, nil
}

const baseCSS = `
body{font-family:Georgia,'Times New Roman',serif;color:#1c1917;line-height:1.55;font-size:0.95rem;}
h1,h2,h3{font-family:Helvetica,Arial,sans-serif;color:#0c4a6e;}
h1{font-size:1.6rem;border-bottom:2px solid #0c4a6e;padding-bottom:0.3rem;}
h2{font-size:1.2rem;margin-top:1.6rem;}
code{background:#f5f5f4;padding:0.1rem 0.3rem;border-radius:3px;font-size:0.85em;}
pre{background:#f5f5f4;border:1px solid #d6d3d1;border-radius:4px;padding:0.7rem;white-space:pre-wrap;}
.report-meta{color:#44403c;font-size:0.85rem;margin-bottom:0.6rem;}
.report-meta strong{color:#1c1917;}
.report-badge{display:inline-block;padding:0.2rem 0.6rem;border-radius:9999px;font-family:Helvetica,Arial,sans-serif;font-size:0.8rem;font-weight:700;margin-right:0.4rem;}
.badge-green{background:#dcfce7;color:#166534;border:1px solid #86efac;}
.badge-yellow{background:#fef9c3;color:#854d0e;border:1px solid #fde047;}
.badge-red{background:#fee2e2;color:#991b1b;border:1px solid #fca5a5;}
.badge-neutral{background:#f1f5f9;color:#334155;border:1px solid #cbd5e1;}
`

func buildHTML(report string) (string, error) {
	metaHTML := ""
	badgeHTML := ""
	markdown := report

	var envelope map[string]any
	if json.Unmarshal([]byte(report), &envelope) == nil {
		if s, ok := envelope["report_markdown"].(string); ok && strings.TrimSpace(s) != "" {
			markdown = s
		}
		metaHTML = buildMetaHTML(envelope)
		badgeHTML = buildBadgeHTML(envelope)
	}

	var content strings.Builder
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	if err := md.Convert([]byte(markdown), &content); err != nil {
		return "", fmt.Errorf("markdown convert: %w", err)
	}
	contentHTML := applyPrintLayoutHooks(content.String())

	return "<!doctype html><html><head><meta charset='utf-8'><title>Budget Window Report</title>" +
		"<style>" + baseCSS + "\n" +
		"html,body,*{-webkit-print-color-adjust:exact !important;print-color-adjust:exact !important;} " +
		"body{background:#fff !important;padding:0.6rem;} .pdf-wrap{max-width:1000px;margin:0 auto;} " +
		".report-html table{width:100% !important;border-collapse:collapse !important;border:1px solid #a8a29e !important;font-size:0.8rem !important;} " +
		".report-html th,.report-html td{border:1px solid #a8a29e !important;padding:0.35rem 0.45rem !important;text-align:left !important;vertical-align:top !important;} " +
		".report-html thead th{background:#f1f5f9 !important;font-weight:700 !important;} " +
		`h2[data-page-break-before="true"]{break-before:page;page-break-before:always;} ` +
		"@media print{ @page{size:auto;margin:12mm;} body{background:#fff !important;padding:0;} .pdf-wrap{max-width:none;} }" +
		"</style></head><body>" +
		"<div class='pdf-wrap'><div class='report-meta'>" + metaHTML + "</div>" +
		"<div class='report-badges'>" + badgeHTML + "</div>" +
		"<div class='report-html'>" + contentHTML + "</div></div>" +
		"</body></html>", nil
}

// applyPrintLayoutHooks pushes the raw-signal appendix onto its own page so
// the scoring sections print as one unit.
func applyPrintLayoutHooks(contentHTML string) string {
	reAppendix := regexp.MustCompile(`(?i)<h2([^>]*)>\s*Raw Market Signals\s*</h2>`)
	return reAppendix.ReplaceAllString(contentHTML, `<h2$1 data-page-break-before="true">Raw Market Signals</h2>`)
}

func buildMetaHTML(env map[string]any) string {
	var out strings.Builder
	if d := stringValue(env["domain"]); d != "" {
		out.WriteString("<div><strong>Domain:</strong> " + html.EscapeString(d) + "</div>")
	}
	if s := stringValue(env["strategy"]); s != "" {
		out.WriteString("<div><strong>Strategy:</strong> " + html.EscapeString(s) + "</div>")
	}
	if completed := lookupString(env, "metadata", "completed_at"); completed != "" {
		if ts, err := time.Parse(time.RFC3339Nano, completed); err == nil {
			out.WriteString("<div><strong>Date:</strong> " + html.EscapeString(ts.In(time.Local).Format("January 2, 2006 at 3:04 PM MST")) + "</div>")
		} else {
			out.WriteString("<div><strong>Date:</strong> " + html.EscapeString(completed) + "</div>")
		}
	}
	return out.String()
}

func buildBadgeHTML(env map[string]any) string {
	var out strings.Builder
	if status := lookupString(env, "result", "status"); status != "" {
		out.WriteString("<span class='report-badge " + badgeClass(status) + "'>" + html.EscapeString(status) + "</span>")
	}
	if conf := lookupString(env, "result", "confidence"); conf != "" {
		out.WriteString("<span class='report-badge badge-neutral'>Confidence: " + html.EscapeString(conf) + "</span>")
	}
	return out.String()
}

func badgeClass(status string) string {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "GREEN":
		return "badge-green"
	case "YELLOW":
		return "badge-yellow"
	case "RED":
		return "badge-red"
	default:
		return "badge-neutral"
	}
}

func lookupString(root map[string]any, path ...string) string {
	var cur any = root
	for _, p := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur = m[p]
	}
	return stringValue(cur)
}

func stringValue(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func detectChromePath() string {
	candidates := []string{
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/usr/bin/google-chrome",
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
