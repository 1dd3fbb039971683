package evaluator

import (
	"testing"

	"github.com/shockwave-oss/shockwave/internal/models"
)

func TestConditionEvaluate(t *testing.T) {
	ctx := &models.EvaluationContext{
		User: models.User{},
		Stats: []models.UserChampionStat{
			{ChampionID: 1, Level: 7, Score: 500000},
		},
	}

	tests := []struct {
		name string
		cond Condition
		want bool
	}{
		{
			name: "mastery level at_least met",
			cond: Condition{Kind: KindMasteryLevel, ChampionID: 1, Range: Range{CompareType: CompareAtLeast, Value: 5}},
			want: true,
		},
		{
			name: "mastery level missing champion defaults to zero",
			cond: Condition{Kind: KindMasteryLevel, ChampionID: 99, Range: Range{CompareType: CompareAtLeast, Value: 1}},
			want: false,
		},
		{
			name: "total mastery score between",
			cond: Condition{Kind: KindTotalMasteryScore, Range: Range{CompareType: CompareBetween, Min: 1, Max: 1000000}},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cond.Evaluate(ctx); got != tt.want {
				t.Fatalf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRankedTierUnrankedEqualsZero(t *testing.T) {
	tests := []struct {
		name string
		ctx  *models.EvaluationContext
		cond Condition
		want bool
	}{
		{
			name: "no ranks, equal(0) matches",
			ctx:  &models.EvaluationContext{},
			cond: Condition{Kind: KindRankedTier, TierCompare: CompareEqual, Tier: models.TierUnranked, Queue: QueueAny},
			want: true,
		},
		{
			name: "no ranks, higher(iron) does not match",
			ctx:  &models.EvaluationContext{},
			cond: Condition{Kind: KindRankedTier, TierCompare: CompareHigher, Tier: models.TierIron, Queue: QueueAny},
			want: false,
		},
		{
			name: "treat_as_unranked forces equal(0) regardless of rows",
			ctx: &models.EvaluationContext{
				User:  models.User{TreatAsUnranked: true},
				Ranks: []models.UserRank{{Queue: "RANKED_SOLO_5x5", Tier: models.TierDiamond}},
			},
			cond: Condition{Kind: KindRankedTier, TierCompare: CompareEqual, Tier: models.TierUnranked, Queue: QueueAny},
			want: true,
		},
		{
			name: "has ranks, higher(silver) matches gold",
			ctx: &models.EvaluationContext{
				Ranks: []models.UserRank{{Queue: "RANKED_SOLO_5x5", Tier: models.TierGold}},
			},
			cond: Condition{Kind: KindRankedTier, TierCompare: CompareHigher, Tier: models.TierSilver, Queue: QueueHighest},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cond.Evaluate(tt.ctx); got != tt.want {
				t.Fatalf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCombinator(t *testing.T) {
	tests := []struct {
		name     string
		kind     models.RoleCombinatorKind
		amount   int
		matching int
		total    int
		want     bool
	}{
		{"all satisfied", models.CombinatorAll, 0, 3, 3, true},
		{"all missing one", models.CombinatorAll, 0, 2, 3, false},
		{"any with one", models.CombinatorAny, 0, 1, 5, true},
		{"any with zero", models.CombinatorAny, 0, 0, 5, false},
		{"at_least satisfied", models.CombinatorAtLeast, 2, 2, 5, true},
		{"at_least unsatisfied", models.CombinatorAtLeast, 3, 2, 5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Combinator(tt.kind, tt.amount, tt.matching, tt.total); got != tt.want {
				t.Fatalf("Combinator() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateReturnsBreakdown(t *testing.T) {
	role := models.Role{Combinator: models.RoleCombinator{Type: models.CombinatorAny}}
	conditions := []Condition{
		{ID: 1, Kind: KindMasteryLevel, ChampionID: 1, Range: Range{CompareType: CompareAtLeast, Value: 100}},
		{ID: 2, Kind: KindTotalMasteryLevel, Range: Range{CompareType: CompareAtLeast, Value: 0}},
	}
	ctx := &models.EvaluationContext{}

	applies, results := Evaluate(role, conditions, ctx)
	if !applies {
		t.Fatalf("expected role to apply via Any combinator")
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 condition results, got %d", len(results))
	}
	if results[0].Applies {
		t.Fatalf("expected condition 1 to fail")
	}
	if !results[1].Applies {
		t.Fatalf("expected condition 2 to pass")
	}
}
