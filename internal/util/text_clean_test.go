package util

import "testing"

func TestCleanText(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain", "hello world", "hello world"},
		{"nul bytes dropped", "he\x00llo", "hello"},
		{"tabs become spaces", "a\tb", "a b"},
		{"space run collapses", "a    b", "a b"},
		{"mixed tab space run collapses", "a \t  b", "a b"},
		{"newline run collapses", "a\n\n\nb", "a\nb"},
		{"newline swallows trailing spaces", "line one   \nline two", "line one\nline two"},
		{"crlf keeps newline", "a\r\nb", "a\nb"},
		{"control chars dropped", "a\x01\x02\x7fb", "ab"},
		{"leading and trailing trimmed", "  \n hi \n  ", "hi"},
		{"space after newline dropped", "a\n   b", "a\nb"},
		{"unicode preserved", "αβ\tγ", "αβ γ"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CleanText(tc.in)
			if got != tc.want {
				t.Fatalf("CleanText(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestCleanTextIdempotent(t *testing.T) {
	in := "  A  paper\ttitle \n\n\nAbstract:   text \x00here \n body  "
	once := CleanText(in)
	twice := CleanText(once)
	if once != twice {
		t.Fatalf("CleanText is not idempotent: %q vs %q", once, twice)
	}
}

func TestPreview(t *testing.T) {
	if got := Preview("short", 10); got != "short" {
		t.Fatalf("got %q", got)
	}
	if got := Preview("abcdefghij", 4); got != "abcd..." {
		t.Fatalf("got %q", got)
	}
	// Truncation counts runes, not bytes.
	if got := Preview("ααααα", 3); got != "ααα..." {
		t.Fatalf("got %q", got)
	}
	if got := Preview("  padded  ", 100); got != "padded" {
		t.Fatalf("got %q", got)
	}
}
