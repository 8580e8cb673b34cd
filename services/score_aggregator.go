package services

import (
	"fmt"
	"math"
	"strings"

	"thesis-review-api/models"
)

// Quick-entry buckets map a qualitative judgement to a fixed numeric anchor
// on the 0-100 scale. The anchor is only a convenience: once criterion
// scores exist, the canonical weighted formula always wins.
const (
	BucketExcellent  = "excellent"
	BucketGood       = "good"
	BucketAcceptable = "acceptable"
	BucketFail       = "fail"
)

var bucketAnchors = map[string]float64{
	BucketExcellent:  90,
	BucketGood:       70,
	BucketAcceptable: 50,
	BucketFail:       20,
}

// AggregationResult carries the computed overall score plus warnings about
// criteria that had to be excluded. Overall is nil when no criterion
// qualified; it is never coerced to zero.
type AggregationResult struct {
	Overall  *float64 `json:"overall"`
	Warnings []string `json:"warnings,omitempty"`
}

// AggregateOverall computes the canonical weighted overall score:
//
//	overall = Σ(score/max * 100 * weight) / Σ(weight)
//
// summing only over criteria with max_score > 0, weight > 0 and a present
// score. Excluded criteria are reported as warnings, never silently zeroed.
func AggregateOverall(criteria []models.ReviewCriterion, scores []models.ReviewCriterionScore) AggregationResult {
	result := AggregationResult{}

	byID := make(map[int]models.ReviewCriterionScore, len(scores))
	for _, s := range scores {
		byID[s.CriterionID] = s
	}

	var numerator, denominator float64
	for _, crit := range criteria {
		if crit.DeleteAt != nil {
			continue
		}
		if crit.MaxScore <= 0 {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("criterion '%s' excluded: max score is not positive", crit.CriterionName))
			continue
		}
		if crit.Weight <= 0 {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("criterion '%s' excluded: weight is not positive", crit.CriterionName))
			continue
		}
		score, ok := byID[crit.CriterionID]
		if !ok {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("criterion '%s' excluded: no score recorded", crit.CriterionName))
			continue
		}
		numerator += score.Score / crit.MaxScore * 100 * crit.Weight
		denominator += crit.Weight
	}

	if denominator == 0 {
		result.Warnings = append(result.Warnings, "no criteria qualified for aggregation")
		return result
	}

	overall := roundScore(numerator / denominator)
	result.Overall = &overall
	return result
}

// BucketAnchor returns the numeric anchor for a qualitative bucket.
func BucketAnchor(bucket string) (float64, error) {
	anchor, ok := bucketAnchors[strings.ToLower(strings.TrimSpace(bucket))]
	if !ok {
		return 0, &ValidationError{
			Field:   "bucket",
			Message: fmt.Sprintf("unknown bucket '%s' (expected excellent, good, acceptable or fail)", bucket),
		}
	}
	return anchor, nil
}

// ReconcileQuickEntry resolves a quick-entry bucket against the canonical
// aggregation. The computed value is authoritative whenever criterion scores
// produced one; the anchor only fills the gap before any scores exist.
func ReconcileQuickEntry(bucket string, computed AggregationResult) (float64, error) {
	if computed.Overall != nil {
		return *computed.Overall, nil
	}
	return BucketAnchor(bucket)
}

// roundScore keeps scores stable across recomputation by rounding to two
// decimal places.
func roundScore(v float64) float64 {
	return math.Round(v*100) / 100
}
