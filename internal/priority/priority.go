// Package priority implements the triage scoring model: a pure mapping
// from (category, distance, affected count) to a 0..100 score and a
// 1..4 tier. Scores are computed once at intake and never revised, so
// the function must stay deterministic.
package priority

import (
	"math"

	"github.com/resqlabs/resq/internal/models"
)

const baseScore = 50

var categoryWeights = map[models.TriageCategory]int{
	models.CategoryCritical: 40,
	models.CategoryRescue:   35,
	models.CategoryMedical:  30,
	models.CategoryPower:    20,
	models.CategoryResource: 15,
	models.CategoryOther:    10,
}

// Score converts an incoming need into a priority score and tier.
// Distance brackets use strict less-than: exactly 2 km earns the <5 km
// bonus, not the <2 km one.
func Score(category models.TriageCategory, distanceKm float64, affectedCount int) (score, tier int) {
	score = baseScore

	weight, ok := categoryWeights[category]
	if !ok {
		weight = categoryWeights[models.CategoryOther]
	}
	score += weight

	switch {
	case distanceKm < 2:
		score += 20
	case distanceKm < 5:
		score += 15
	case distanceKm < 10:
		score += 10
	default:
		score += 5
	}

	bonus := affectedCount * 2
	if bonus > 20 {
		bonus = 20
	}
	if bonus > 0 {
		score += bonus
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score, Tier(score)
}

// Tier maps a score onto the four dispatch tiers. Tier 4 is critical.
func Tier(score int) int {
	switch {
	case score > 85:
		return 4
	case score > 70:
		return 3
	case score > 50:
		return 2
	default:
		return 1
	}
}

// EstimateResponseMinutes applies the flat 5 min/km travel heuristic.
func EstimateResponseMinutes(distanceKm float64) int {
	return int(math.Ceil(distanceKm * 5))
}
