package model

import (
	"time"

	"imcitrack/internal/scoring"
)

const EventObservationScored = "observation.scored"

// ScoredEvent is pushed to dashboard subscribers of a course.
type ScoredEvent struct {
	ObservationID string        `json:"observationId"`
	CourseID      string        `json:"courseId"`
	ParticipantID string        `json:"participantId"`
	Overall       scoring.Score `json:"overall"`
	Degraded      bool          `json:"degraded"`
	ScoredAt      time.Time     `json:"scoredAt"`
	// Rank is the participant's current course position, 0 when unranked.
	Rank int64 `json:"rank,omitempty"`
}
