// file: services/vote_aggregator_test.go
package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go-lift-control/models"
)

func vote(judge string, d models.Decision) models.JudgeVote {
	return models.JudgeVote{JudgeID: judge, Decision: d}
}

func TestBallot_MajorityRule(t *testing.T) {
	judges := []string{"left", "centre", "right"}

	tests := []struct {
		name  string
		votes []models.JudgeVote
		want  models.Verdict
	}{
		{"single white is pending", []models.JudgeVote{vote("left", models.DecisionWhite)}, models.VerdictPending},
		{"two whites pass", []models.JudgeVote{vote("left", models.DecisionWhite), vote("right", models.DecisionWhite)}, models.VerdictPassed},
		{"white red red fails", []models.JudgeVote{
			vote("left", models.DecisionWhite), vote("centre", models.DecisionRed), vote("right", models.DecisionRed),
		}, models.VerdictFailed},
		{"tie fails", []models.JudgeVote{vote("left", models.DecisionWhite), vote("centre", models.DecisionRed)}, models.VerdictFailed},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := NewBallot("a1", judges)
			for _, v := range tc.votes {
				require.NoError(t, b.Record(v))
			}
			got, contributing := b.Tally()
			assert.Equal(t, tc.want, got)
			assert.Len(t, contributing, len(tc.votes))
		})
	}
}

func TestBallot_RejectsUnassignedJudge(t *testing.T) {
	b := NewBallot("a1", []string{"left", "centre", "right"})
	err := b.Record(vote("intruder", models.DecisionWhite))
	assert.True(t, errors.Is(err, ErrUnauthorizedJudge))
	assert.Equal(t, KindUnauthorized, KindOf(err))

	verdict, votes := b.Tally()
	assert.Equal(t, models.VerdictPending, verdict)
	assert.Empty(t, votes, "rejected vote must not be counted")
}

func TestBallot_LastWriteWins(t *testing.T) {
	b := NewBallot("a1", []string{"left", "centre", "right"})
	require.NoError(t, b.Record(vote("left", models.DecisionWhite)))
	require.NoError(t, b.Record(vote("left", models.DecisionRed)))

	verdict, votes := b.Tally()
	assert.Equal(t, models.VerdictPending, verdict, "one judge twice is still one vote")
	require.Len(t, votes, 1)
	assert.Equal(t, models.DecisionRed, votes[0].Decision)
}

func TestBallot_RejectsUnknownDecision(t *testing.T) {
	b := NewBallot("a1", []string{"left"})
	err := b.Record(vote("left", models.Decision("green")))
	assert.Equal(t, KindInvalidState, KindOf(err))
}

func TestBallot_Threshold(t *testing.T) {
	assert.Equal(t, 1, NewBallot("x", []string{"a"}).Threshold())
	assert.Equal(t, 2, NewBallot("x", []string{"a", "b", "c"}).Threshold())
	assert.Equal(t, 2, NewBallot("x", []string{"a", "b", "c", "d"}).Threshold())
	assert.Equal(t, 3, NewBallot("x", []string{"a", "b", "c", "d", "e"}).Threshold())
}

func TestAggregateVotes_EmptyJury(t *testing.T) {
	verdict, _ := AggregateVotes(map[string]models.JudgeVote{}, 0)
	assert.Equal(t, models.VerdictPending, verdict)
}
