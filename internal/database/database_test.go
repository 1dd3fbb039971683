package database

import (
	"testing"

	"github.com/shockwave-oss/shockwave/internal/evaluator"
)

func TestJSONBStrings(t *testing.T) {
	in := [][]byte{[]byte(`["1","2"]`), []byte(`[]`)}
	got := jsonbStrings(in)
	want := []string{`["1","2"]`, `[]`}
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d: got %q want %q", i, got[i], want[i])
		}
	}
}

func TestDecodeCondition(t *testing.T) {
	tests := []struct {
		name    string
		kind    string
		options string
		wantErr bool
		check   func(t *testing.T, c evaluator.Condition)
	}{
		{
			name:    "mastery_level at_least",
			kind:    "mastery_level",
			options: `{"compare_type":"at_least","value":5,"champion":42}`,
			check: func(t *testing.T, c evaluator.Condition) {
				if c.ChampionID != 42 || c.Range.CompareType != evaluator.CompareAtLeast || c.Range.Value != 5 {
					t.Fatalf("unexpected condition: %+v", c)
				}
			},
		},
		{
			name:    "ranked_tier named queue",
			kind:    "ranked_tier",
			options: `{"compare_type":"higher","tier":3,"queue":"RANKED_SOLO_5x5"}`,
			check: func(t *testing.T, c evaluator.Condition) {
				if c.QueueName != "RANKED_SOLO_5x5" || c.TierCompare != evaluator.CompareHigher {
					t.Fatalf("unexpected condition: %+v", c)
				}
			},
		},
		{
			name:    "unknown kind",
			kind:    "not_a_real_kind",
			options: `{}`,
			wantErr: true,
		},
		{
			name:    "malformed json",
			kind:    "server",
			options: `{not json`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := decodeCondition(1, tt.kind, []byte(tt.options))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, c)
		})
	}
}
