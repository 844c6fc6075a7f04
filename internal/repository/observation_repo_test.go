package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"imcitrack/internal/model"
	"imcitrack/internal/scoring"
)

func TestPlainAnswersConvertsArrays(t *testing.T) {
	raw := model.RawAnswers{
		"assessment": {
			"supervisor_correct_fever_classification": primitive.A{"malaria", "fever no malaria"},
			"skill_weight": "yes",
		},
	}
	out := plainAnswers(raw)

	labels, ok := out["assessment"]["supervisor_correct_fever_classification"].([]interface{})
	assert.True(t, ok)
	assert.Len(t, labels, 2)
	assert.Equal(t, "yes", out["assessment"]["skill_weight"])
}

func TestObservationBSONRoundTrip(t *testing.T) {
	obs := model.Observation{
		ID:       "obs-1",
		CourseID: "course-1",
		Answers: model.RawAnswers{
			"assessment": {"worker_fever_classification": []string{"malaria"}},
		},
		Payload: scoring.Payload{"overallScore_score": 3, "overallScore_maxScore": 4},
		Overall: scoring.Score{Score: 3, MaxScore: 4},
	}
	data, err := bson.Marshal(obs)
	assert.NoError(t, err)

	var back model.Observation
	assert.NoError(t, bson.Unmarshal(data, &back))
	back.Answers = plainAnswers(back.Answers)

	assert.Equal(t, obs.Payload, back.Payload)
	assert.Equal(t, obs.Overall, back.Overall)

	a, err := scoring.AnswersFromRaw(back.Answers)
	assert.NoError(t, err)
	v, ok := a.Lookup(scoring.NamespaceAssessment, "worker_fever_classification")
	assert.True(t, ok)
	assert.Equal(t, []string{"malaria"}, v.LabelSet())
}
