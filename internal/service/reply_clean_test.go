package service

import "testing"

func TestCleanModelReply(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "  Track your spending weekly. ", "Track your spending weekly."},
		{"empty", "   ", ""},
		{"bom", "\uFEFFHello", "Hello"},
		{"fenced", "```\nSave 10% first.\n```", "Save 10% first."},
		{"fenced with lang", "```text\nSave 10% first.\n```", "Save 10% first."},
		{"speaker label", "Buddy: Try a weekly review.", "Try a weekly review."},
		{"assistant label", "assistant:  ok", "ok"},
		{"inner fence kept", "Use this:\n```\n50/30/20\n```", "Use this:\n```\n50/30/20\n```"},
		{"only fences", "``````", "``````"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := cleanModelReply(tc.in); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}
