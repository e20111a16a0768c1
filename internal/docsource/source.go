// Package docsource yields raw extractable text for ingestion.
//
// Sources hide where a corpus comes from (local files, a GitHub repository);
// the ingestion pipeline only sees a stream of documents. Parsing binary
// formats is a collaborator concern and lives outside this module.
package docsource

import "context"

// Document is raw extracted text plus a stable source identifier. Immutable
// once extracted; owned by the ingestion run that created it.
type Document struct {
	SourceID string
	Text     string
}

// Source streams documents one at a time so large corpora never need to be
// resident in memory at once. Next returns io.EOF after the final document.
type Source interface {
	Next(ctx context.Context) (Document, error)
}
