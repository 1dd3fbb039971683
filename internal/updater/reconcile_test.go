package updater

import "testing"

func TestRenderNicknamePatternTruncatesByCodepoints(t *testing.T) {
	pattern := "{username} [{region}] some very long suffix that goes past the limit"
	got := renderNicknamePattern(pattern, "NA", "hideonbush")
	if got != string([]rune(got)) {
		t.Fatalf("sanity: got should already be rune-safe")
	}
	if len([]rune(got)) > maxNicknameCodepoints {
		t.Fatalf("expected at most %d codepoints, got %d (%q)", maxNicknameCodepoints, len([]rune(got)), got)
	}
}

func TestRenderNicknamePatternSubstitutes(t *testing.T) {
	got := renderNicknamePattern("{username}-{region}", "EUW", "foo")
	want := "foo-EUW"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRenderNicknamePatternMultibyteTruncation(t *testing.T) {
	// 40 multi-byte runes; truncation must count runes, not bytes.
	pattern := ""
	for i := 0; i < 40; i++ {
		pattern += "é"
	}
	got := renderNicknamePattern(pattern, "", "")
	if len([]rune(got)) != maxNicknameCodepoints {
		t.Fatalf("expected exactly %d runes, got %d", maxNicknameCodepoints, len([]rune(got)))
	}
}

func TestIsUsableSnowflake(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"", false},
		{"123456789", true},
		{"12a34", false},
		{"abc", false},
	}
	for _, tt := range tests {
		if got := isUsableSnowflake(tt.in); got != tt.want {
			t.Errorf("isUsableSnowflake(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
