package normalize

import (
	"testing"
	"time"
)

func TestStripHTMLRemovesTagsAndEntities(t *testing.T) {
	in := `<p>Hello &amp; <b>welcome</b>&nbsp;to   the&quot;show&quot;</p>`
	got := StripHTML(in)
	want := `Hello & welcome to the"show"`
	if got != want {
		t.Fatalf("StripHTML = %q, want %q", got, want)
	}
}

func TestStripHTMLCollapsesWhitespace(t *testing.T) {
	got := StripHTML("  line one\n\n\tline   two  ")
	if got != "line one line two" {
		t.Fatalf("StripHTML whitespace = %q", got)
	}
}

func TestTruncateRunesHandlesMultibyte(t *testing.T) {
	s := "你好世界这是测试"
	out := TruncateRunes(s, 4)
	if out != "你好世界" {
		t.Fatalf("TruncateRunes = %q, want %q", out, "你好世界")
	}

	// 不超限时原样返回
	if got := TruncateRunes("short", 10); got != "short" {
		t.Fatalf("TruncateRunes should keep original when under limit: %q", got)
	}

	if got := TruncateRunes("abc", 0); got != "" {
		t.Fatalf("TruncateRunes with zero limit should be empty: %q", got)
	}
}

func TestParseDateKnownFormats(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2024-01-02T15:04:05Z", time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)},
		{"Mon, 02 Jan 2006 15:04:05 UTC", time.Date(2006, 1, 2, 15, 4, 5, 0, time.UTC)},
		{"2024-01-02 15:04:05", time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)},
		{"2024-01-02", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
	}

	for _, tc := range cases {
		got := ParseDate(tc.in)
		if got == nil {
			t.Fatalf("ParseDate(%q) = nil", tc.in)
		}
		if !got.Equal(tc.want) {
			t.Fatalf("ParseDate(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseDateUnparseableReturnsNil(t *testing.T) {
	for _, in := range []string{"", "   ", "yesterday", "not a date"} {
		if got := ParseDate(in); got != nil {
			t.Fatalf("ParseDate(%q) = %v, want nil", in, got)
		}
	}
}
