package model

import "time"

// NotApplicable is displayed instead of a percentage when maxScore is 0.
const NotApplicable = "N/A"

// ReportRow is one exported node of an observation report.
type ReportRow struct {
	Key      string `json:"key"`
	Score    int    `json:"score"`
	MaxScore int    `json:"maxScore"`
	// Percent is nil when the node was not applicable.
	Percent *int   `json:"percent"`
	Display string `json:"display"`
}

// ObservationReport lists every node of a scored observation.
type ObservationReport struct {
	ObservationID string      `json:"observationId"`
	CourseID      string      `json:"courseId"`
	ParticipantID string      `json:"participantId"`
	Overall       ReportRow   `json:"overall"`
	Scores        []ReportRow `json:"scores"`
	KPIs          []ReportRow `json:"kpis"`
	Diagnostics   int         `json:"diagnostics"`
}

// KeyStat aggregates one payload key across a course.
type KeyStat struct {
	Key      string `json:"key" bson:"key"`
	Score    int    `json:"score" bson:"score"`
	MaxScore int    `json:"maxScore" bson:"maxScore"`
	// MeanPercent averages per-observation percentages over the Applicable
	// observations only; nil when none applied.
	MeanPercent *float64 `json:"meanPercent" bson:"meanPercent,omitempty"`
	Applicable  int      `json:"applicable" bson:"applicable"`
}

// RankingEntry is one participant in the course ranking.
type RankingEntry struct {
	ParticipantID string  `json:"participantId" bson:"participantId"`
	Percent       float64 `json:"percent" bson:"percent"`
	Rank          int     `json:"rank" bson:"rank"`
}

// CourseSummary is the dashboard roll-up of every observation in a course.
type CourseSummary struct {
	CourseID     string         `json:"courseId" bson:"courseId"`
	Observations int            `json:"observations" bson:"observations"`
	Degraded     int            `json:"degraded" bson:"degraded"`
	Keys         []KeyStat      `json:"keys" bson:"keys"`
	Ranking      []RankingEntry `json:"ranking" bson:"ranking"`
	GeneratedAt  time.Time      `json:"generatedAt" bson:"generatedAt"`
}
