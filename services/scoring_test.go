// file: services/scoring_test.go
package services

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go-lift-control/models"
)

func f(v float64) *float64 { return &v }

func TestSinclairCoefficient_AbsentForMissingOrNonPositiveBodyweight(t *testing.T) {
	assert.Nil(t, SinclairCoefficient(nil, models.GenderMale))
	assert.Nil(t, SinclairCoefficient(f(0), models.GenderMale))
	assert.Nil(t, SinclairCoefficient(f(-12.5), models.GenderFemale))
}

func TestSinclairCoefficient_UnknownGender(t *testing.T) {
	assert.Nil(t, SinclairCoefficient(f(85), models.Gender("OTHER")))
}

func TestSinclairCoefficient_Male85(t *testing.T) {
	c := SinclairCoefficient(f(85), models.GenderMale)
	require.NotNil(t, c)
	assert.Greater(t, *c, 0.0)
	assert.False(t, math.IsInf(*c, 0) || math.IsNaN(*c))

	x := math.Log10(85 / 174.393)
	want := math.Round(math.Pow(10, 0.794358141*x*x)*1e4) / 1e4
	assert.Equal(t, want, *c)
}

func TestSinclairCoefficient_RoundedToFourPlaces(t *testing.T) {
	c := SinclairCoefficient(f(63), models.GenderFemale)
	require.NotNil(t, c)
	assert.Equal(t, *c, math.Round(*c*1e4)/1e4)
}

func TestSinclairCoefficient_NonFiniteIsAbsent(t *testing.T) {
	assert.Nil(t, SinclairCoefficient(f(math.SmallestNonzeroFloat64), models.GenderMale))
}

func TestSinclairPoints(t *testing.T) {
	res := SinclairPoints(f(250), f(90), models.GenderMale)
	require.NotNil(t, res.Coefficient)
	require.NotNil(t, res.Points)
	assert.InDelta(t, 250**res.Coefficient, *res.Points, 0.005)
}

func TestSinclairPoints_AbsentTotal(t *testing.T) {
	assert.Equal(t, models.ScoringResult{}, SinclairPoints(nil, f(90), models.GenderMale))
	assert.Equal(t, models.ScoringResult{}, SinclairPoints(f(0), f(90), models.GenderMale))
}

func TestSinclairPoints_NoCoefficient(t *testing.T) {
	res := SinclairPoints(f(250), nil, models.GenderMale)
	assert.Nil(t, res.Coefficient)
	assert.Nil(t, res.Points)
}

func TestBuildStandings(t *testing.T) {
	items := []models.QueueItem{
		{AthleteID: "a", Discipline: "snatch", RequestedWeight: 100, Status: models.QueueCompleted},
		{AthleteID: "a", Discipline: "snatch", RequestedWeight: 105, Status: models.QueueFailed},
		{AthleteID: "a", Discipline: "cj", RequestedWeight: 130, Status: models.QueueCompleted},
		{AthleteID: "b", Discipline: "snatch", RequestedWeight: 80, Status: models.QueueCompleted},
		{AthleteID: "b", Discipline: "cj", RequestedWeight: 100, Status: models.QueueCompleted},
		{AthleteID: "c", Discipline: "snatch", RequestedWeight: 90, Status: models.QueuePending},
	}
	athletes := []models.AthleteProfile{
		{AthleteID: "c", Name: "C", BodyWeight: f(70), Gender: models.GenderMale},
		{AthleteID: "b", Name: "B", BodyWeight: f(58), Gender: models.GenderFemale},
		{AthleteID: "a", Name: "A", BodyWeight: f(81), Gender: models.GenderMale},
	}

	got := BuildStandings(items, athletes)
	require.Len(t, got, 3)
	assert.Equal(t, 230.0, got[0].Total)
	assert.Equal(t, "a", got[0].AthleteID)
	assert.Equal(t, "b", got[1].AthleteID)
	assert.Equal(t, 180.0, got[1].Total)
	assert.Equal(t, "c", got[2].AthleteID, "athlete without a total ranks last")
	assert.Nil(t, got[2].Points)
	assert.Equal(t, []int{1, 2, 3}, []int{got[0].Rank, got[1].Rank, got[2].Rank})
}
