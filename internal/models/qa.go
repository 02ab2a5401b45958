package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Citation is one retrieved source document backing part of an answer.
// N is 1-based and stable for the lifetime of a single answer; the answer
// text references it inline as [n]. A new question replaces the whole set.
type Citation struct {
	N             int        `json:"n"                    bson:"n"`
	DocID         string     `json:"doc_id"               bson:"doc_id"`
	Title         string     `json:"title"                bson:"title"`
	Portal        string     `json:"portal,omitempty"     bson:"portal,omitempty"`
	DocType       string     `json:"doc_type,omitempty"   bson:"doc_type,omitempty"`
	CreatedAt     *time.Time `json:"created_at,omitempty" bson:"created_at,omitempty"`
	StorageBucket string     `json:"storage_bucket"       bson:"storage_bucket"`
	StoragePath   string     `json:"storage_path"         bson:"storage_path"`
}

// AskFilters narrows retrieval to a portal or document type.
type AskFilters struct {
	Portal  string `json:"portal,omitempty"`
	DocType string `json:"doc_type,omitempty"`
}

// AskRequest is the JSON body for POST /api/v1/qa/stream.
type AskRequest struct {
	Question string     `json:"question" validate:"required,max=2000"`
	Lang     string     `json:"lang"     validate:"required,oneof=en ar"`
	Stream   bool       `json:"stream"`
	Filters  AskFilters `json:"filters"`
}

// Answer source tags. A default answer means every configured AI provider
// failed and the caller received a deterministic placeholder.
const (
	SourceModel   = "model"
	SourceDefault = "default"
)

// AnswerRecord is one completed answer appended to the results store.
type AnswerRecord struct {
	ID        primitive.ObjectID `json:"id"         bson:"_id,omitempty"`
	RequestID string             `json:"request_id" bson:"request_id"`
	TenantID  string             `json:"tenant_id"  bson:"tenant_id"`
	Question  string             `json:"question"   bson:"question"`
	Lang      string             `json:"lang"       bson:"lang"`
	Answer    string             `json:"answer"     bson:"answer"`
	Citations []Citation         `json:"citations"  bson:"citations"`
	Source    string             `json:"source"     bson:"source"`
	Provider  string             `json:"provider,omitempty" bson:"provider,omitempty"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
}
