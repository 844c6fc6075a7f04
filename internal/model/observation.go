package model

import (
	"time"

	"imcitrack/internal/scoring"
)

// RawAnswers is the persisted shape of an Answer Store: namespace -> key -> value.
type RawAnswers map[string]map[string]interface{}

type ObservationSource string

const (
	SourceLive   ObservationSource = "live"
	SourceImport ObservationSource = "import"
)

// Observation is one scored supervision encounter. Payload is stored exactly
// as the engine produced it; dashboards read it without recomputation.
type Observation struct {
	ID            string            `json:"id" bson:"_id"`
	CourseID      string            `json:"courseId" bson:"courseId"`
	ParticipantID string            `json:"participantId" bson:"participantId"`
	SupervisorID  string            `json:"supervisorId" bson:"supervisorId"`
	FacilityID    string            `json:"facilityId,omitempty" bson:"facilityId,omitempty"`
	ObservedAt    time.Time         `json:"observedAt" bson:"observedAt"`
	Source        ObservationSource `json:"source" bson:"source"`
	ImportBatchID string            `json:"importBatchId,omitempty" bson:"importBatchId,omitempty"`

	Answers RawAnswers `json:"answers" bson:"answers"`

	ChecklistVersion int                  `json:"checklistVersion" bson:"checklistVersion"`
	Payload          scoring.Payload      `json:"payload" bson:"payload"`
	Overall          scoring.Score        `json:"overall" bson:"overall"`
	Diagnostics      []scoring.Diagnostic `json:"diagnostics,omitempty" bson:"diagnostics,omitempty"`
	Skipped          []string             `json:"skipped,omitempty" bson:"skipped,omitempty"`

	CreatedAt time.Time  `json:"createdAt" bson:"createdAt"`
	ScoredAt  time.Time  `json:"scoredAt" bson:"scoredAt"`
	RescoreAt *time.Time `json:"rescoredAt,omitempty" bson:"rescoredAt,omitempty"`
}

// SubmitRequest is the body of POST /v1/observations.
type SubmitRequest struct {
	ID            string     `json:"id,omitempty"`
	DraftID       string     `json:"draftId,omitempty"`
	CourseID      string     `json:"courseId"`
	ParticipantID string     `json:"participantId"`
	SupervisorID  string     `json:"supervisorId"`
	FacilityID    string     `json:"facilityId,omitempty"`
	ObservedAt    *time.Time `json:"observedAt,omitempty"`
	Answers       RawAnswers `json:"answers"`
}

// Draft is an in-progress observation held in Redis until it is submitted.
type Draft struct {
	ID            string     `json:"id"`
	CourseID      string     `json:"courseId"`
	ParticipantID string     `json:"participantId"`
	SupervisorID  string     `json:"supervisorId"`
	Answers       RawAnswers `json:"answers"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}
