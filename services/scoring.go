// Package services: services/scoring.go
package services

import (
	"math"
	"sort"

	"go-lift-control/models"
)

// sinclairConstants holds the A and B constants per gender.
var sinclairConstants = map[models.Gender]struct{ A, B float64 }{
	models.GenderMale:   {A: 0.794358141, B: 174.393},
	models.GenderFemale: {A: 0.89726074, B: 148.026},
}

// SinclairCoefficient returns the bodyweight coefficient, or nil when the
// bodyweight is missing or not positive, the gender is unknown, or the result
// is not finite.
func SinclairCoefficient(bodyWeight *float64, gender models.Gender) *float64 {
	if bodyWeight == nil || *bodyWeight <= 0 {
		return nil
	}
	k, ok := sinclairConstants[gender]
	if !ok {
		return nil
	}

	x := math.Log10(*bodyWeight / k.B)
	coefficient := roundTo(math.Pow(10, k.A*x*x), 4)
	if math.IsNaN(coefficient) || math.IsInf(coefficient, 0) {
		return nil
	}
	return &coefficient
}

// SinclairPoints scales total by the Sinclair coefficient.
func SinclairPoints(total, bodyWeight *float64, gender models.Gender) models.ScoringResult {
	if total == nil || *total <= 0 {
		return models.ScoringResult{}
	}
	coefficient := SinclairCoefficient(bodyWeight, gender)
	if coefficient == nil {
		return models.ScoringResult{}
	}
	points := roundTo(*total**coefficient, 2)
	return models.ScoringResult{Coefficient: coefficient, Points: &points}
}

// BuildStandings totals each athlete's best passed attempt per discipline and
// ranks by Sinclair points. Athletes without points rank after those with
// points; ties fall back to total, then athlete id.
func BuildStandings(items []models.QueueItem, athletes []models.AthleteProfile) []models.Standing {
	best := make(map[string]map[string]float64)
	for _, it := range items {
		if it.Status != models.QueueCompleted {
			continue
		}
		if best[it.AthleteID] == nil {
			best[it.AthleteID] = make(map[string]float64)
		}
		if it.RequestedWeight > best[it.AthleteID][it.Discipline] {
			best[it.AthleteID][it.Discipline] = it.RequestedWeight
		}
	}

	standings := make([]models.Standing, 0, len(athletes))
	for _, a := range athletes {
		var total float64
		for _, w := range best[a.AthleteID] {
			total += w
		}
		res := SinclairPoints(&total, a.BodyWeight, a.Gender)
		standings = append(standings, models.Standing{
			AthleteID:   a.AthleteID,
			Name:        a.Name,
			Total:       total,
			Coefficient: res.Coefficient,
			Points:      res.Points,
		})
	}

	sort.SliceStable(standings, func(i, j int) bool {
		pi, pj := standings[i].Points, standings[j].Points
		switch {
		case pi != nil && pj == nil:
			return true
		case pi == nil && pj != nil:
			return false
		case pi != nil && *pi != *pj:
			return *pi > *pj
		case standings[i].Total != standings[j].Total:
			return standings[i].Total > standings[j].Total
		}
		return standings[i].AthleteID < standings[j].AthleteID
	})
	for i := range standings {
		standings[i].Rank = i + 1
	}
	return standings
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
