package sweep

import "testing"

func TestNextOffsetAdvancesOnFullPage(t *testing.T) {
	if got := nextOffset(0, 100, 100); got != 100 {
		t.Fatalf("expected 100, got %d", got)
	}
	if got := nextOffset(100, 100, 100); got != 200 {
		t.Fatalf("expected 200, got %d", got)
	}
}

func TestNextOffsetWrapsOnShortPage(t *testing.T) {
	if got := nextOffset(300, 42, 100); got != 0 {
		t.Fatalf("expected wraparound to 0, got %d", got)
	}
	if got := nextOffset(300, 0, 100); got != 0 {
		t.Fatalf("expected wraparound to 0 on empty page, got %d", got)
	}
}
