package format

import "testing"

func TestEscapeMarkdown(t *testing.T) {
	cases := []struct {
		name    string
		text    string
		version int
		entity  string
		want    string
	}{
		{"v1 plain", "alice", MarkdownV1, "", "alice"},
		{"v1 specials", "a_b*c`d[e", MarkdownV1, "", `a\_b\*c\` + "`" + `d\[e`},
		{"v1 keeps dots", "x.y", MarkdownV1, "", "x.y"},
		{"v2 specials", "1.5+2=3!", MarkdownV2, "", `1\.5\+2\=3\!`},
		{"v2 backslash", `a\b`, MarkdownV2, "", `a\\b`},
		{"v2 brackets and dash", "[a-b](c)", MarkdownV2, "", `\[a\-b\]\(c\)`},
		{"v2 code", "f(x)`", MarkdownV2, "code", "f(x)\\`"},
		{"v2 link", "https://t.me/x?a=(1)", MarkdownV2, "text_link", `https://t.me/x?a=(1\)`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := EscapeMarkdown(tc.text, tc.version, tc.entity)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("EscapeMarkdown(%q) = %q, want %q", tc.text, got, tc.want)
			}
		})
	}
}

func TestEscapeMarkdownUnknownVersion(t *testing.T) {
	if _, err := EscapeMarkdown("x", 3, ""); err == nil {
		t.Fatal("expected error for version 3")
	}
}
