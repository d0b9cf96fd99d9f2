// Package services: services/vote_aggregator.go
package services

import (
	"fmt"
	"sort"

	"go-lift-control/models"
)

// Ballot collects the judges' votes for one attempt. A Ballot is not safe for
// concurrent use; the owning session serializes access.
type Ballot struct {
	AttemptID string
	judges    map[string]bool
	votes     map[string]models.JudgeVote
}

// NewBallot opens voting on attemptID for the assigned judges.
func NewBallot(attemptID string, judges []string) *Ballot {
	b := &Ballot{
		AttemptID: attemptID,
		judges:    make(map[string]bool, len(judges)),
		votes:     make(map[string]models.JudgeVote),
	}
	for _, j := range judges {
		b.judges[j] = true
	}
	return b
}

// JurySize is the number of distinct assigned judges.
func (b *Ballot) JurySize() int {
	return len(b.judges)
}

// Threshold is the number of votes needed before a verdict is reached.
func (b *Ballot) Threshold() int {
	return (len(b.judges) + 1) / 2
}

// Record stores vote, replacing any earlier vote by the same judge.
func (b *Ballot) Record(vote models.JudgeVote) error {
	if !b.judges[vote.JudgeID] {
		return fmt.Errorf("%w: %s", ErrUnauthorizedJudge, vote.JudgeID)
	}
	if !vote.Decision.Valid() {
		return fmt.Errorf("%w: decision %q", ErrInvalidInput, vote.Decision)
	}
	b.votes[vote.JudgeID] = vote
	return nil
}

// Votes returns the recorded votes ordered by judge id.
func (b *Ballot) Votes() []models.JudgeVote {
	out := make([]models.JudgeVote, 0, len(b.votes))
	for _, v := range b.votes {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JudgeID < out[j].JudgeID })
	return out
}

// Tally reduces the ballot to a verdict plus the contributing votes.
func (b *Ballot) Tally() (models.Verdict, []models.JudgeVote) {
	return AggregateVotes(b.votes, b.JurySize())
}

// AggregateVotes applies majority rule: pending until ceil(jurySize/2) votes
// are present, then passed only when white strictly outnumbers red.
func AggregateVotes(votes map[string]models.JudgeVote, jurySize int) (models.Verdict, []models.JudgeVote) {
	contributing := make([]models.JudgeVote, 0, len(votes))
	for _, v := range votes {
		contributing = append(contributing, v)
	}
	sort.Slice(contributing, func(i, j int) bool { return contributing[i].JudgeID < contributing[j].JudgeID })

	if jurySize <= 0 || len(votes) < (jurySize+1)/2 {
		return models.VerdictPending, contributing
	}

	var white, red int
	for _, v := range votes {
		switch v.Decision {
		case models.DecisionWhite:
			white++
		case models.DecisionRed:
			red++
		}
	}
	if white > red {
		return models.VerdictPassed, contributing
	}
	return models.VerdictFailed, contributing
}
