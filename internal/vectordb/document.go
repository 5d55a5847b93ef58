package vectordb

import "time"

// Document is one indexed knowledge passage.
type Document struct {
	ID       string
	Content  string
	Metadata DocumentMetadata
}

// DocumentMetadata partitions passages by tenant and source.
type DocumentMetadata struct {
	Tenant    string
	Source    string
	URL       string
	Title     string
	Lang      string
	CreatedAt time.Time
}

// SearchResult pairs a document with its similarity score.
type SearchResult struct {
	Document   Document
	Similarity float32
}

// SearchFilter narrows a search. An empty Sources list matches every source.
type SearchFilter struct {
	Tenant  string
	Sources []string
}
