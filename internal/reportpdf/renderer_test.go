package reportpdf

import (
	"strings"
	"testing"
)

func TestApplyPrintLayoutHooksAddsPageBreakBeforeAppendix(t *testing.T) {
	in := "<h2>Reasoning</h2><p>x</p><h2>Raw Market Signals</h2><p>y</p>"
	out := applyPrintLayoutHooks(in)
	if !strings.Contains(out, `<h2 data-page-break-before="true">Raw Market Signals</h2>`) {
		t.Fatalf("expected page-break injection, got: %s", out)
	}
}

func TestApplyPrintLayoutHooksNoopWhenAppendixMissing(t *testing.T) {
	in := "<h2>Reasoning</h2><p>x</p>"
	if out := applyPrintLayoutHooks(in); out != in {
		t.Fatalf("expected no change, got: %s", out)
	}
}

func TestBuildHTMLFromEnvelopeJSON(t *testing.T) {
	envelope := `{
		"domain": "acme.com",
		"strategy": "advanced",
		"result": {"status": "GREEN", "confidence": "high"},
		"report_markdown": "# Budget Window Report\n\n## Raw Market Signals\n\n- one",
		"metadata": {"completed_at": "2026-02-17T10:00:00Z"}
	}`
	doc, err := buildHTML(envelope)
	if err != nil {
		t.Fatalf("buildHTML: %v", err)
	}
	for _, want := range []string{
		"<strong>Domain:</strong> acme.com",
		"<strong>Strategy:</strong> advanced",
		"badge-green'>GREEN</span>",
		"Confidence: high",
		`data-page-break-before="true"`,
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("missing %q in rendered document", want)
		}
	}
}

func TestBuildHTMLFromRawMarkdown(t *testing.T) {
	doc, err := buildHTML("# Budget Window Report\n\n| Score | Status |\n|---|---|\n| 82 | GREEN |\n")
	if err != nil {
		t.Fatalf("buildHTML: %v", err)
	}
	if !strings.Contains(doc, "<table>") {
		t.Error("GFM table not rendered")
	}
	if !strings.Contains(doc, "Budget Window Report") {
		t.Error("title missing")
	}
}

func TestBadgeClass(t *testing.T) {
	cases := map[string]string{
		"GREEN": "badge-green", "yellow": "badge-yellow", "RED": "badge-red", "odd": "badge-neutral",
	}
	for status, want := range cases {
		if got := badgeClass(status); got != want {
			t.Errorf("badgeClass(%q) = %q, want %q", status, got, want)
		}
	}
}
