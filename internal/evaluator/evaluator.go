// Package evaluator implements the pure role-condition evaluator of
// spec.md §4.5: evaluate(role, conditions, ctx) -> bool. Grounded on
// original_source/shockwave/shockwave_core/src/role_model.rs and
// evaluate.rs, expressed as the tagged-union-plus-evaluate(ctx) shape
// spec.md §9 DESIGN NOTES recommends (a closed set of kinds instead of
// OO polymorphism).
package evaluator

import "github.com/shockwave-oss/shockwave/internal/models"

// CompareType selects how a Range or RankedTier comparator behaves.
type CompareType string

const (
	CompareAtLeast CompareType = "at_least"
	CompareAtMost  CompareType = "at_most"
	CompareBetween CompareType = "between"
	CompareExactly CompareType = "exactly"

	CompareHigher CompareType = "higher"
	CompareLower  CompareType = "lower"
	CompareEqual  CompareType = "equal"
)

// Range is an integer range test: AtLeast(v) | AtMost(v) | Between(min,max) | Exactly(v).
type Range struct {
	CompareType CompareType `json:"compare_type"`
	Value       int64       `json:"value,omitempty"`
	Min         int64       `json:"min,omitempty"`
	Max         int64       `json:"max,omitempty"`
}

// Test reports whether v satisfies the range.
func (r Range) Test(v int64) bool {
	switch r.CompareType {
	case CompareAtLeast:
		return v >= r.Value
	case CompareAtMost:
		return v <= r.Value
	case CompareBetween:
		return v >= r.Min && v <= r.Max
	case CompareExactly:
		return v == r.Value
	default:
		return false
	}
}

// QueueSelector picks which queue(s) a RankedTier condition considers.
type QueueSelector string

const (
	QueueAny               QueueSelector = "ANY"
	QueueHighest           QueueSelector = "HIGHEST"
	QueueHighestIncludeTFT QueueSelector = "HIGHEST_TFT"
)

// ConditionKind discriminates the RoleCondition tagged union.
type ConditionKind string

const (
	KindMasteryLevel      ConditionKind = "mastery_level"
	KindMasteryScore      ConditionKind = "mastery_score"
	KindTotalMasteryLevel ConditionKind = "total_mastery_level"
	KindTotalMasteryScore ConditionKind = "total_mastery_score"
	KindRankedTier        ConditionKind = "ranked_tier"
	KindServer            ConditionKind = "server"
)

// Condition is one RoleCondition row (§3/§6), deserialized from its
// JSON tagged-union shape.
type Condition struct {
	ID   int64
	Kind ConditionKind

	// mastery_level | mastery_score | total_mastery_level | total_mastery_score
	Range      Range
	ChampionID int64 // 0 if total_* or unset

	// ranked_tier
	TierCompare CompareType
	Tier        models.Tier
	Queue       QueueSelector
	QueueName   string // set when Queue is neither ANY/HIGHEST/HIGHEST_TFT

	// server
	Region string
}

// Evaluate runs a single condition against ctx.
func (c Condition) Evaluate(ctx *models.EvaluationContext) bool {
	switch c.Kind {
	case KindMasteryLevel:
		level, _ := ctx.StatFor(c.ChampionID)
		return c.Range.Test(int64(level))
	case KindMasteryScore:
		_, score := ctx.StatFor(c.ChampionID)
		return c.Range.Test(score)
	case KindTotalMasteryLevel:
		return c.Range.Test(int64(ctx.TotalMasteryLevel()))
	case KindTotalMasteryScore:
		return c.Range.Test(ctx.TotalMasteryScore())
	case KindRankedTier:
		return c.evaluateRankedTier(ctx)
	case KindServer:
		for _, a := range ctx.Accounts {
			if a.IncludeRegion && a.Region == c.Region {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func (c Condition) evaluateRankedTier(ctx *models.EvaluationContext) bool {
	if len(ctx.Ranks) == 0 || ctx.User.TreatAsUnranked {
		return c.TierCompare == CompareEqual && c.Tier == models.TierUnranked
	}

	switch c.Queue {
	case QueueAny:
		for _, r := range ctx.Ranks {
			if compareTier(c.TierCompare, r.Tier, c.Tier) {
				return true
			}
		}
		return false
	case QueueHighest, QueueHighestIncludeTFT:
		highest := models.TierUnranked
		found := false
		for _, r := range ctx.Ranks {
			if c.Queue == QueueHighest && isTFTQueue(r.Queue) {
				continue
			}
			found = true
			if r.Tier > highest {
				highest = r.Tier
			}
		}
		if !found {
			return c.TierCompare == CompareEqual && c.Tier == models.TierUnranked
		}
		return compareTier(c.TierCompare, highest, c.Tier)
	default:
		for _, r := range ctx.Ranks {
			if r.Queue == c.QueueName {
				return compareTier(c.TierCompare, r.Tier, c.Tier)
			}
		}
		return c.TierCompare == CompareEqual && c.Tier == models.TierUnranked
	}
}

func isTFTQueue(queue string) bool {
	return len(queue) >= 11 && queue[:11] == "RANKED_TFT_" || queue == "RANKED_TFT"
}

func compareTier(cmp CompareType, have, want models.Tier) bool {
	switch cmp {
	case CompareHigher:
		return have > want
	case CompareLower:
		return have < want
	case CompareEqual:
		return have == want
	default:
		return false
	}
}

// Combinator applies a role's combinator over the per-condition results.
func Combinator(kind models.RoleCombinatorKind, amount int, matching, total int) bool {
	switch kind {
	case models.CombinatorAll:
		return matching == total
	case models.CombinatorAny:
		return matching >= 1
	case models.CombinatorAtLeast:
		return matching >= amount
	default:
		return false
	}
}

// ConditionResult pairs a condition with its boolean outcome, the shape
// the HTTP façade's /evaluate endpoint returns (§4.11/§6).
type ConditionResult struct {
	ConditionID int64
	Applies     bool
}

// Evaluate runs every condition, applies the role's combinator, and
// returns both the overall verdict and the per-condition breakdown —
// spec.md §4.5's evaluate(role, conditions, ctx) -> bool, extended to
// also report the breakdown the façade needs.
func Evaluate(role models.Role, conditions []Condition, ctx *models.EvaluationContext) (bool, []ConditionResult) {
	results := make([]ConditionResult, len(conditions))
	matching := 0
	for i, c := range conditions {
		ok := c.Evaluate(ctx)
		results[i] = ConditionResult{ConditionID: c.ID, Applies: ok}
		if ok {
			matching++
		}
	}
	applies := Combinator(role.Combinator.Type, role.Combinator.Amount, matching, len(conditions))
	return applies, results
}
