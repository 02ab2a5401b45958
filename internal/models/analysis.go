package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Analysis pipeline phases, emitted in this order. The sequence is strictly
// linear and ends with PhaseDone; no phase repeats after a later one.
const (
	PhasePreparing  = "preparing"
	PhaseRetrieval  = "retrieval"
	PhaseAnalysis   = "analysis"
	PhaseMitigation = "mitigation"
	PhaseDone       = "done"
)

// AnalyzeRequest is the JSON body for POST /api/v1/analysis/stream.
// Exactly one of DocID or Text must be provided.
type AnalyzeRequest struct {
	DocID string `json:"doc_id" validate:"required_without=Text"`
	Text  string `json:"text"   validate:"required_without=DocID,max=100000"`
	Lang  string `json:"lang"   validate:"omitempty,oneof=en ar"`
}

// ProgressEvent narrates one phase of the analysis pipeline over SSE.
type ProgressEvent struct {
	Type      string    `json:"type"` // always "progress"
	Phase     string    `json:"phase"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Finding is a single risk identified in the analyzed document.
type Finding struct {
	Clause   string `json:"clause"   bson:"clause"`
	Issue    string `json:"issue"    bson:"issue"`
	Severity string `json:"severity" bson:"severity"` // low | medium | high
}

// RiskResult is the assembled output of one analysis run. Source
// distinguishes a genuine model answer from the deterministic default
// substituted when every provider failed or returned malformed JSON.
type RiskResult struct {
	ID          primitive.ObjectID `json:"id"          bson:"_id,omitempty"`
	RequestID   string             `json:"request_id"  bson:"request_id"`
	TenantID    string             `json:"tenant_id"   bson:"tenant_id"`
	DocID       string             `json:"doc_id,omitempty" bson:"doc_id,omitempty"`
	Title       string             `json:"title"       bson:"title"`
	Score       int                `json:"score"       bson:"score"` // 0-100
	RiskLevel   string             `json:"risk_level"  bson:"risk_level"`
	Findings    []Finding          `json:"findings"    bson:"findings"`
	Mitigations []string           `json:"mitigations" bson:"mitigations"`
	Citations   []Citation         `json:"citations"   bson:"citations"`
	Source      string             `json:"source"      bson:"source"`
	Provider    string             `json:"provider,omitempty" bson:"provider,omitempty"`
	CreatedAt   time.Time          `json:"created_at"  bson:"created_at"`
}
