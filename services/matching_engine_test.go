package services

import (
	"context"
	"math"
	"reflect"
	"testing"

	"thesis-review-api/config"
	"thesis-review-api/models"
)

func floatPtr(v float64) *float64 { return &v }

func testSubmission() SubmissionContext {
	return SubmissionContext{
		SubmissionID:   10,
		RequiredSkills: []string{"Go", "Databases"},
		SupervisorID:   100,
		SubmitterID:    200,
	}
}

func reviewer(id int, skills map[string]int, active int, stats *models.ReviewerStats) ReviewerSnapshot {
	return ReviewerSnapshot{
		ReviewerID:        id,
		Skills:            skills,
		ActiveAssignments: active,
		Stats:             stats,
	}
}

func TestSkillMatchProficiencyWeighted(t *testing.T) {
	required := normalizeSkills([]string{"Go", "Databases"})

	match, matched := skillMatch(required, map[string]int{"go": 4, "databases": 2})
	// (4/4 + 2/4) / 2 = 0.75
	if match != 0.75 {
		t.Fatalf("expected 0.75, got %v", match)
	}
	if len(matched) != 2 {
		t.Fatalf("expected both skills matched, got %v", matched)
	}

	match, matched = skillMatch(required, map[string]int{"statistics": 4})
	if match != 0 {
		t.Fatalf("expected 0 without overlap, got %v", match)
	}
	if len(matched) != 0 {
		t.Fatalf("expected no matched skills, got %v", matched)
	}
}

func TestWorkloadScoreFloorsAtCap(t *testing.T) {
	if got := workloadScore(0, 5); got != 1 {
		t.Fatalf("idle reviewer should score 1, got %v", got)
	}
	if got := workloadScore(2, 5); got != 0.6 {
		t.Fatalf("expected 0.6 at 2/5, got %v", got)
	}
	if got := workloadScore(5, 5); got != 0 {
		t.Fatalf("expected 0 at the cap, got %v", got)
	}
	if got := workloadScore(7, 5); got != 0 {
		t.Fatalf("expected 0 above the cap, got %v", got)
	}
}

func TestPerformanceScoreExcludesMissingMetrics(t *testing.T) {
	cfg := config.DefaultMatchingConfig()

	// Only experience present: the score equals the normalized experience,
	// not a blend dragged down by zeroed metrics.
	stats := &models.ReviewerStats{CompletedAssignments: 10}
	got, ok := performanceScore(cfg, stats)
	if !ok {
		t.Fatal("expected a performance score")
	}
	if got != 0.5 {
		t.Fatalf("expected 0.5 (10 of 20 ceiling), got %v", got)
	}

	// No stats row at all: performance is unavailable.
	if _, ok := performanceScore(cfg, nil); ok {
		t.Fatal("expected no performance score without stats")
	}

	full := &models.ReviewerStats{
		CompletedAssignments: 20,
		OnTimeRate:           floatPtr(1),
		QualityRating:        floatPtr(5),
		AverageScoreGiven:    floatPtr(70),
	}
	got, ok = performanceScore(cfg, full)
	if !ok || got != 1 {
		t.Fatalf("expected a perfect blend of 1, got %v (ok=%v)", got, ok)
	}
}

func TestRankReviewersEligibilityRules(t *testing.T) {
	cfg := config.DefaultMatchingConfig()
	sub := testSubmission()
	pool := []ReviewerSnapshot{
		reviewer(100, map[string]int{"go": 4, "databases": 4}, 0, nil), // supervisor
		reviewer(200, map[string]int{"go": 4, "databases": 4}, 0, nil), // submitter
		reviewer(300, map[string]int{"go": 4, "databases": 4}, 5, nil), // at workload cap
		reviewer(400, map[string]int{"statistics": 2}, 0, nil),         // weak skills
		reviewer(500, map[string]int{"go": 3, "databases": 3}, 1, nil), // fine
	}

	result := RankReviewers(context.Background(), cfg, sub, pool, MatchConstraints{
		MaxWorkload:   5,
		MinSkillScore: floatPtr(0.5),
	})

	byID := make(map[int]Suggestion, len(result.Suggestions))
	for _, s := range result.Suggestions {
		byID[s.ReviewerID] = s
	}

	if len(result.Suggestions) != 5 {
		t.Fatalf("ineligible reviewers must still be returned, got %d of 5", len(result.Suggestions))
	}
	for _, id := range []int{100, 200, 300, 400} {
		s := byID[id]
		if s.IsEligible {
			t.Fatalf("reviewer %d should be ineligible", id)
		}
		if len(s.IneligibilityReasons) == 0 {
			t.Fatalf("reviewer %d must carry ineligibility reasons", id)
		}
	}
	if !byID[500].IsEligible {
		t.Fatalf("reviewer 500 should be eligible: %v", byID[500].IneligibilityReasons)
	}

	// No reviewer at or above the cap may ever be eligible.
	for _, s := range result.Suggestions {
		if s.ActiveAssignments >= 5 && s.IsEligible {
			t.Fatalf("reviewer %d is at the workload cap but eligible", s.ReviewerID)
		}
	}
}

func TestRankReviewersDeterministicOrdering(t *testing.T) {
	cfg := config.DefaultMatchingConfig()
	sub := testSubmission()
	pool := []ReviewerSnapshot{
		reviewer(3, map[string]int{"go": 4, "databases": 4}, 1, nil),
		reviewer(1, map[string]int{"go": 4, "databases": 4}, 1, nil),
		reviewer(2, map[string]int{"go": 4, "databases": 4}, 0, nil),
		reviewer(4, map[string]int{"go": 2}, 0, nil),
	}

	first := RankReviewers(context.Background(), cfg, sub, pool, MatchConstraints{MaxWorkload: 5})
	second := RankReviewers(context.Background(), cfg, sub, pool, MatchConstraints{MaxWorkload: 5})

	order := func(r MatchResult) []int {
		ids := make([]int, 0, len(r.Suggestions))
		for _, s := range r.Suggestions {
			ids = append(ids, s.ReviewerID)
		}
		return ids
	}

	if !reflect.DeepEqual(order(first), order(second)) {
		t.Fatalf("identical inputs produced different orderings: %v vs %v", order(first), order(second))
	}

	got := order(first)
	// Reviewer 2 ranks first on workload; 1 beats 3 on the id tie-breaker;
	// 4 ranks last on skill.
	want := []int{2, 1, 3, 4}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected order %v, got %v", want, got)
	}
}

func TestRankReviewersSkipsMalformedEntries(t *testing.T) {
	cfg := config.DefaultMatchingConfig()
	pool := []ReviewerSnapshot{
		{ReviewerID: 0},
		{ReviewerID: -3},
		reviewer(7, map[string]int{"go": 4}, 0, nil),
	}

	result := RankReviewers(context.Background(), cfg, testSubmission(), pool, MatchConstraints{MaxWorkload: 5})
	if len(result.Suggestions) != 1 || result.Suggestions[0].ReviewerID != 7 {
		t.Fatalf("expected only reviewer 7, got %+v", result.Suggestions)
	}
}

func TestRankReviewersEmptyPoolExplains(t *testing.T) {
	cfg := config.DefaultMatchingConfig()

	result := RankReviewers(context.Background(), cfg, testSubmission(), nil, MatchConstraints{})
	if len(result.Suggestions) != 0 {
		t.Fatalf("expected no suggestions, got %d", len(result.Suggestions))
	}
	if result.Explanation == "" {
		t.Fatal("expected an explanation for the empty pool")
	}
}

func TestRankReviewersHonoursCancelledContext(t *testing.T) {
	cfg := config.DefaultMatchingConfig()
	pool := make([]ReviewerSnapshot, 50)
	for i := range pool {
		pool[i] = reviewer(i+1, map[string]int{"go": 4}, 0, nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := RankReviewers(ctx, cfg, testSubmission(), pool, MatchConstraints{MaxWorkload: 5})
	if !result.Truncated {
		t.Fatal("expected a truncated ranking under a cancelled context")
	}
	if len(result.Suggestions) != 0 {
		t.Fatalf("expected no suggestions scored, got %d", len(result.Suggestions))
	}
}

func TestOverallScoreUsesConfiguredWeights(t *testing.T) {
	cfg := config.DefaultMatchingConfig()
	cfg.Weights = config.MatchingWeights{Skill: 1, Workload: 0, Performance: 0}

	pool := []ReviewerSnapshot{reviewer(1, map[string]int{"go": 2}, 4, nil)}
	sub := SubmissionContext{SubmissionID: 1, RequiredSkills: []string{"go"}}

	result := RankReviewers(context.Background(), cfg, sub, pool, MatchConstraints{MaxWorkload: 5})
	if len(result.Suggestions) != 1 {
		t.Fatalf("expected one suggestion, got %d", len(result.Suggestions))
	}
	s := result.Suggestions[0]
	if math.Abs(s.OverallScore-s.SkillMatchScore) > 1e-9 {
		t.Fatalf("with full skill weight overall %v should equal skill %v", s.OverallScore, s.SkillMatchScore)
	}
}
