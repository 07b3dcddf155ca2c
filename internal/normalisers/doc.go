// Package normalisers rewrite source document content into plain text
// before it is chunked. Each normaliser handles a set of MIME types; the
// Registry picks one per document from its "mime_type" metadata.
package normalisers
