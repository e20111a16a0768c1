package docsource

import (
	"strings"
	"testing"
)

func TestSplitMarkdown_Sections(t *testing.T) {
	input := `# Cycle Health

General introduction.

## Tracking

How to track a cycle.

## Symptoms

Common symptoms and causes.
`

	docs, err := SplitMarkdown("guide.md", []byte(input))
	if err != nil {
		t.Fatalf("SplitMarkdown failed: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("expected 3 sections, got %d", len(docs))
	}

	if docs[0].SourceID != "guide.md#Cycle Health" {
		t.Errorf("section 0 id: %q", docs[0].SourceID)
	}
	if !strings.Contains(docs[0].Text, "General introduction") {
		t.Errorf("section 0 missing introduction: %q", docs[0].Text)
	}
	if strings.Contains(docs[0].Text, "How to track") {
		t.Errorf("section 0 overlaps subsection content")
	}

	if docs[1].SourceID != "guide.md#Cycle Health > Tracking" {
		t.Errorf("section 1 id: %q", docs[1].SourceID)
	}
	if !strings.Contains(docs[1].Text, "How to track a cycle") {
		t.Errorf("section 1 missing content: %q", docs[1].Text)
	}

	if docs[2].SourceID != "guide.md#Cycle Health > Symptoms" {
		t.Errorf("section 2 id: %q", docs[2].SourceID)
	}
}

func TestSplitMarkdown_NoHeadings(t *testing.T) {
	input := "Plain prose without any headings.\n\nSecond paragraph."

	docs, err := SplitMarkdown("notes.md", []byte(input))
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	if docs[0].SourceID != "notes.md" {
		t.Errorf("id: %q", docs[0].SourceID)
	}
	if !strings.Contains(docs[0].Text, "Second paragraph") {
		t.Errorf("content truncated: %q", docs[0].Text)
	}
}

func TestSplitMarkdown_DeepHeadingsStayInSection(t *testing.T) {
	input := `# Top

## Sub

Body text.

### Detail

Detail text stays inside the Sub section.
`

	docs, err := SplitMarkdown("d.md", []byte(input))
	if err != nil {
		t.Fatal(err)
	}

	var sub *Document
	for i := range docs {
		if docs[i].SourceID == "d.md#Top > Sub" {
			sub = &docs[i]
		}
	}
	if sub == nil {
		t.Fatalf("missing Sub section, got %d docs", len(docs))
	}
	if !strings.Contains(sub.Text, "Detail text stays inside") {
		t.Errorf("H3 content not kept with parent H2 section: %q", sub.Text)
	}
}
