package updater

import (
	"errors"
	"testing"

	"github.com/shockwave-oss/shockwave/internal/riotapi"
)

func TestIsNotFound(t *testing.T) {
	if !isNotFound(&riotapi.NotFoundError{Op: "get_summoner"}) {
		t.Fatalf("expected NotFoundError to be recognized")
	}
	if isNotFound(errors.New("some other error")) {
		t.Fatalf("expected non-NotFoundError to not be recognized")
	}
}

func TestMasteryPointEquality(t *testing.T) {
	a := masteryPoint{level: 7, score: 100}
	b := masteryPoint{level: 7, score: 100}
	c := masteryPoint{level: 7, score: 101}
	if a != b {
		t.Fatalf("expected equal masteryPoints to compare equal")
	}
	if a == c {
		t.Fatalf("expected differing masteryPoints to compare unequal")
	}
}
