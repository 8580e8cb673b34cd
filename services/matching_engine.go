package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"thesis-review-api/config"
	"thesis-review-api/models"
)

// ReviewerSnapshot is the read-only view of one reviewer used for scoring.
// Snapshots are taken once per call; workload counts may be stale and are
// re-validated at assignment time.
type ReviewerSnapshot struct {
	ReviewerID        int
	Name              string
	Skills            map[string]int // normalized skill -> proficiency level 1-4
	ActiveAssignments int
	Stats             *models.ReviewerStats
}

// SubmissionContext is the read-only view of the submission being matched.
type SubmissionContext struct {
	SubmissionID   int
	RequiredSkills []string
	SupervisorID   int
	SubmitterID    int
}

// MatchConstraints narrows the candidate pool for one call.
type MatchConstraints struct {
	// MinSkillScore, when set, marks reviewers below it ineligible.
	MinSkillScore *float64
	// MaxWorkload caps active assignments; zero falls back to the configured
	// default.
	MaxWorkload int
	// PrioritizeHighPerformance reweights the overall score in favour of the
	// performance signal.
	PrioritizeHighPerformance bool
}

// Suggestion is one ranked matching result. Suggestions are ephemeral:
// computed on demand, never persisted.
type Suggestion struct {
	ReviewerID           int      `json:"reviewer_id"`
	ReviewerName         string   `json:"reviewer_name,omitempty"`
	SkillMatchScore      float64  `json:"skill_match_score"`
	MatchedSkills        []string `json:"matched_skills"`
	WorkloadScore        float64  `json:"workload_score"`
	PerformanceScore     float64  `json:"performance_score"`
	OverallScore         float64  `json:"overall_score"`
	ActiveAssignments    int      `json:"active_assignments"`
	IsEligible           bool     `json:"is_eligible"`
	IneligibilityReasons []string `json:"ineligibility_reasons,omitempty"`
}

// MatchResult is the full outcome of one ranking pass.
type MatchResult struct {
	Suggestions []Suggestion `json:"suggestions"`
	Explanation string       `json:"explanation,omitempty"`
	Truncated   bool         `json:"truncated,omitempty"`
}

// RankReviewers scores every reviewer in the pool against the submission and
// returns them ordered by overall score descending, active assignments
// ascending, reviewer id ascending. Ineligible reviewers are kept in the
// list with reasons so callers can show why someone was passed over.
//
// Malformed pool entries are skipped individually. The pass honours the
// caller's context and the configured score budget: on expiry the ranking
// computed so far is returned with Truncated set.
func RankReviewers(ctx context.Context, cfg config.MatchingConfig, sub SubmissionContext, pool []ReviewerSnapshot, cons MatchConstraints) MatchResult {
	maxWorkload := cons.MaxWorkload
	if maxWorkload <= 0 {
		maxWorkload = cfg.DefaultMaxWorkload
	}

	weights := cfg.Weights
	if cons.PrioritizeHighPerformance {
		weights.Skill, weights.Performance = weights.Performance, weights.Skill
	}

	required := normalizeSkills(sub.RequiredSkills)

	deadline := time.Now().Add(cfg.Budget())
	result := MatchResult{Suggestions: make([]Suggestion, 0, len(pool))}

	for i, reviewer := range pool {
		if ctx.Err() != nil || time.Now().After(deadline) {
			result.Truncated = true
			result.Explanation = fmt.Sprintf(
				"ranking truncated after %d of %d reviewers: time budget exhausted", i, len(pool))
			break
		}
		if reviewer.ReviewerID <= 0 {
			continue
		}

		s := scoreReviewer(cfg, weights, sub, reviewer, required, maxWorkload, cons.MinSkillScore)
		result.Suggestions = append(result.Suggestions, s)
	}

	sortSuggestions(result.Suggestions)

	if result.Explanation == "" {
		result.Explanation = explainRanking(result.Suggestions, len(required))
	}
	return result
}

func scoreReviewer(cfg config.MatchingConfig, weights config.MatchingWeights, sub SubmissionContext, reviewer ReviewerSnapshot, required []string, maxWorkload int, minSkillScore *float64) Suggestion {
	s := Suggestion{
		ReviewerID:        reviewer.ReviewerID,
		ReviewerName:      reviewer.Name,
		ActiveAssignments: reviewer.ActiveAssignments,
		IsEligible:        true,
		MatchedSkills:     []string{},
	}

	s.SkillMatchScore, s.MatchedSkills = skillMatch(required, reviewer.Skills)
	s.WorkloadScore = workloadScore(reviewer.ActiveAssignments, maxWorkload)

	performance, hasPerformance := performanceScore(cfg, reviewer.Stats)
	s.PerformanceScore = performance

	// A reviewer with no history at all drops the performance term from the
	// weighted sum instead of being punished with a zero.
	wSkill, wWorkload, wPerf := weights.Skill, weights.Workload, weights.Performance
	if !hasPerformance {
		wPerf = 0
	}
	if total := wSkill + wWorkload + wPerf; total > 0 {
		s.OverallScore = roundScore4(
			(s.SkillMatchScore*wSkill + s.WorkloadScore*wWorkload + performance*wPerf) / total)
	}

	if reviewer.ReviewerID == sub.SupervisorID {
		s.fail("reviewer is the submission's supervisor")
	}
	if reviewer.ReviewerID == sub.SubmitterID {
		s.fail("reviewer is the submission's submitter")
	}
	if reviewer.ActiveAssignments >= maxWorkload {
		s.fail(fmt.Sprintf("workload limit reached (%d of %d active assignments)",
			reviewer.ActiveAssignments, maxWorkload))
	}
	if minSkillScore != nil && s.SkillMatchScore < *minSkillScore {
		s.fail(fmt.Sprintf("skill match %.2f is below the required minimum %.2f",
			s.SkillMatchScore, *minSkillScore))
	}
	return s
}

func (s *Suggestion) fail(reason string) {
	s.IsEligible = false
	s.IneligibilityReasons = append(s.IneligibilityReasons, reason)
}

// skillMatch returns the proficiency-weighted overlap between the required
// tags and the reviewer's skills, normalized to [0,1]. A submission without
// required tags matches everyone fully.
func skillMatch(required []string, skills map[string]int) (float64, []string) {
	if len(required) == 0 {
		return 1, []string{}
	}
	matched := []string{}
	var sum float64
	for _, tag := range required {
		level, ok := skills[tag]
		if !ok || level <= 0 {
			continue
		}
		if level > models.SkillLevelExpert {
			level = models.SkillLevelExpert
		}
		sum += float64(level) / float64(models.SkillLevelExpert)
		matched = append(matched, tag)
	}
	return roundScore4(sum / float64(len(required))), matched
}

// workloadScore decreases linearly with the active assignment count and
// bottoms out at zero once the cap is reached.
func workloadScore(active, maxWorkload int) float64 {
	if maxWorkload <= 0 || active >= maxWorkload {
		return 0
	}
	if active < 0 {
		active = 0
	}
	return roundScore4(1 - float64(active)/float64(maxWorkload))
}

// performanceScore blends the reviewer's history metrics. Missing metrics
// are excluded and the remaining weights renormalized; the second return
// value is false when no metric was available at all.
func performanceScore(cfg config.MatchingConfig, stats *models.ReviewerStats) (float64, bool) {
	if stats == nil {
		return 0, false
	}

	type metric struct {
		value  float64
		weight float64
	}
	var metrics []metric

	if stats.CompletedAssignments >= 0 {
		experience := float64(stats.CompletedAssignments) / float64(cfg.ExperienceCeiling)
		metrics = append(metrics, metric{clamp01(experience), cfg.Performance.Experience})
	}
	if stats.OnTimeRate != nil {
		metrics = append(metrics, metric{clamp01(*stats.OnTimeRate), cfg.Performance.OnTimeRate})
	}
	if stats.QualityRating != nil {
		// quality_rating is stored on a 1-5 scale
		metrics = append(metrics, metric{clamp01((*stats.QualityRating - 1) / 4), cfg.Performance.Quality})
	}
	if stats.AverageScoreGiven != nil {
		metrics = append(metrics, metric{consistency(*stats.AverageScoreGiven), cfg.Performance.Consistency})
	}

	var sum, weightSum float64
	for _, m := range metrics {
		sum += m.value * m.weight
		weightSum += m.weight
	}
	if weightSum == 0 {
		return 0, false
	}
	return roundScore4(sum / weightSum), true
}

// consistency rewards reviewers whose average given score sits near the
// scale midpoint; habitual extremes (all 100s or all 20s) score low.
func consistency(avgScoreGiven float64) float64 {
	const midpoint = 70.0
	deviation := math.Abs(avgScoreGiven-midpoint) / midpoint
	return clamp01(1 - deviation)
}

// sortSuggestions orders by overall score descending with deterministic
// tie-breakers: fewer active assignments first, then lower reviewer id.
func sortSuggestions(suggestions []Suggestion) {
	sort.Slice(suggestions, func(i, j int) bool {
		a, b := suggestions[i], suggestions[j]
		if a.OverallScore != b.OverallScore {
			return a.OverallScore > b.OverallScore
		}
		if a.ActiveAssignments != b.ActiveAssignments {
			return a.ActiveAssignments < b.ActiveAssignments
		}
		return a.ReviewerID < b.ReviewerID
	})
}

func explainRanking(suggestions []Suggestion, requiredSkillCount int) string {
	eligible := 0
	for _, s := range suggestions {
		if s.IsEligible {
			eligible++
		}
	}
	if len(suggestions) == 0 {
		return "no reviewers were available to rank"
	}
	if eligible == 0 {
		return fmt.Sprintf(
			"ranked %d reviewers but none are eligible; review workload limits and skill requirements",
			len(suggestions))
	}
	return fmt.Sprintf("ranked %d reviewers (%d eligible) against %d required skill tags",
		len(suggestions), eligible, requiredSkillCount)
}

func normalizeSkills(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		norm := NormalizeSkillTag(tag)
		if norm == "" || seen[norm] {
			continue
		}
		seen[norm] = true
		out = append(out, norm)
	}
	return out
}

// NormalizeSkillTag canonicalizes a skill tag for comparison.
func NormalizeSkillTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// roundScore4 keeps sub-scores stable to four decimal places so ordering is
// reproducible across runs.
func roundScore4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
