package model

import (
	"time"

	"imcitrack/internal/scoring"
)

// ImportRow is one encounter produced by an upstream spreadsheet parser.
type ImportRow struct {
	Ref           string     `json:"ref,omitempty"`
	CourseID      string     `json:"courseId"`
	ParticipantID string     `json:"participantId"`
	SupervisorID  string     `json:"supervisorId"`
	FacilityID    string     `json:"facilityId,omitempty"`
	ObservedAt    *time.Time `json:"observedAt,omitempty"`
	Answers       RawAnswers `json:"answers"`
}

// ImportBatch is the body of POST /v1/imports.
type ImportBatch struct {
	Rows []ImportRow `json:"rows"`
}

type RowStatus string

const (
	RowAccepted RowStatus = "accepted"
	RowRejected RowStatus = "rejected"
)

// ImportRowResult reports what happened to one row.
type ImportRowResult struct {
	Index         int                  `json:"index"`
	Ref           string               `json:"ref,omitempty"`
	Status        RowStatus            `json:"status"`
	ObservationID string               `json:"observationId,omitempty"`
	Overall       *scoring.Score       `json:"overall,omitempty"`
	Errors        []string             `json:"errors,omitempty"`
	Diagnostics   []scoring.Diagnostic `json:"diagnostics,omitempty"`
}

// ImportReport summarizes an import or dry run.
type ImportReport struct {
	BatchID  string            `json:"batchId"`
	DryRun   bool              `json:"dryRun"`
	Accepted int               `json:"accepted"`
	Rejected int               `json:"rejected"`
	Rows     []ImportRowResult `json:"rows"`
}
