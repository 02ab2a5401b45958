package models

import "time"

// Document is a tenant-scoped HR document row in PostgreSQL. The body lives
// in object storage under StorageBucket/StoragePath; Content mirrors the
// text for keyword retrieval.
type Document struct {
	ID            string    `json:"id"`
	TenantID      string    `json:"tenant_id"`
	Title         string    `json:"title"`
	Portal        string    `json:"portal,omitempty"`
	DocType       string    `json:"doc_type,omitempty"`
	StorageBucket string    `json:"storage_bucket"`
	StoragePath   string    `json:"storage_path"`
	Content       string    `json:"content,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// CreateDocumentRequest is the JSON body for POST /api/v1/documents.
type CreateDocumentRequest struct {
	Title   string `json:"title"    validate:"required,max=300"`
	Portal  string `json:"portal"   validate:"omitempty,max=100"`
	DocType string `json:"doc_type" validate:"omitempty,max=100"`
	Content string `json:"content"  validate:"required"`
}

// Snippet is one ranked retrieval hit for a question.
type Snippet struct {
	Doc   Document
	Score float64
}
