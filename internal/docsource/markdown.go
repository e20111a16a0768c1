package docsource

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/toc"
)

// markdownParser is shared across splits; goldmark parsers are stateless.
var markdownParser = goldmark.New(
	goldmark.WithParserOptions(
		parser.WithAutoHeadingID(),
	),
)

// SplitMarkdown splits a markdown document into one Document per H1/H2
// section, so each section embeds and retrieves independently. Section IDs
// are "<sourceID>#<Title > Subtitle>". A document without headings comes back
// whole under its own sourceID.
func SplitMarkdown(sourceID string, source []byte) ([]Document, error) {
	reader := text.NewReader(source)
	root := markdownParser.Parser().Parse(reader)

	tree, err := toc.Inspect(root, source,
		toc.MinDepth(1),
		toc.MaxDepth(2),
	)
	if err != nil {
		return nil, fmt.Errorf("inspect markdown structure: %w", err)
	}

	if len(tree.Items) == 0 {
		return []Document{{SourceID: sourceID, Text: string(source)}}, nil
	}

	starts := headingStarts(root)

	var docs []Document
	var walk func(items toc.Items, ancestors []string)
	walk = func(items toc.Items, ancestors []string) {
		for _, item := range items {
			titlePath := make([]string, 0, len(ancestors)+1)
			titlePath = append(titlePath, ancestors...)
			titlePath = append(titlePath, string(item.Title))

			start, ok := starts[string(item.ID)]
			if ok {
				end := len(source)
				for _, s := range starts {
					if s > start && s < end {
						end = s
					}
				}
				body := strings.TrimSpace(string(source[start:end]))
				if body != "" {
					docs = append(docs, Document{
						SourceID: sourceID + "#" + strings.Join(titlePath, " > "),
						Text:     body,
					})
				}
			}

			walk(item.Items, titlePath)
		}
	}
	walk(tree.Items, nil)

	if len(docs) == 0 {
		return []Document{{SourceID: sourceID, Text: string(source)}}, nil
	}
	return docs, nil
}

// headingStarts maps heading IDs (depth <= 2) to the byte offset where their
// text begins. Offsets double as section boundaries: a section runs from its
// heading to the next heading's offset.
func headingStarts(root ast.Node) map[string]int {
	starts := make(map[string]int)
	ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || n.Kind() != ast.KindHeading {
			return ast.WalkContinue, nil
		}
		heading := n.(*ast.Heading)
		if heading.Level > 2 || heading.Lines().Len() == 0 {
			return ast.WalkContinue, nil
		}
		if id, ok := heading.AttributeString("id"); ok {
			starts[string(id.([]byte))] = heading.Lines().At(0).Start
		}
		return ast.WalkContinue, nil
	})
	return starts
}
