package vectordb

import "time"

// Source tags where a knowledge document came from.
type Source string

const (
	SourceStandNotes       Source = "stand_notes"
	SourceMaintenanceLog   Source = "maintenance_log"
	SourceOperationalDocs  Source = "operational_docs"
	SourceAirportReference Source = "airport_reference"
)

// Document is a piece of searchable airport knowledge.
type Document struct {
	ID       string
	Content  string
	Metadata DocumentMetadata
}

// DocumentMetadata identifies the entity a document describes.
type DocumentMetadata struct {
	Source    Source
	EntityID  string // stand name, maintenance request id, etc.
	Terminal  string
	UpdatedAt time.Time
}

// SearchResult pairs a document with its similarity score.
type SearchResult struct {
	Document   Document
	Similarity float32
}

// SearchFilter narrows search results by metadata fields. Nil fields match
// everything.
type SearchFilter struct {
	Source   *Source
	EntityID *string
	Terminal *string
}
