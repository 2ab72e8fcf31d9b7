package tgui

import "testing"

func TestTokenRoundTrip(t *testing.T) {
	t.Parallel()

	cases := []struct {
		data   string
		action string
		param  string
	}{
		{Token("stats"), "stats", ""},
		{Token("approve", "42"), "approve", "42"},
		{TokenID("ban", 123456789), "ban", "123456789"},
		{"\fapprove:42", "approve", "42"}, // client-prefixed data
		{"panel", "panel", ""},
	}
	for _, tc := range cases {
		action, param := Split(tc.data)
		if action != tc.action || param != tc.param {
			t.Fatalf("Split(%q) = (%q, %q), want (%q, %q)", tc.data, action, param, tc.action, tc.param)
		}
	}
}

func TestSplitID(t *testing.T) {
	t.Parallel()

	action, id, ok := SplitID(TokenID("reverse", 7))
	if !ok || action != "reverse" || id != 7 {
		t.Fatalf("SplitID = %q %d %v", action, id, ok)
	}
	if _, _, ok := SplitID("reverse"); ok {
		t.Fatalf("missing param accepted")
	}
	if _, _, ok := SplitID("reverse:notanumber"); ok {
		t.Fatalf("bad param accepted")
	}
}

func TestTruncRunes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello world", 5, "hello…"},
		{"привет мир", 6, "привет…"},
		{"", 3, ""},
		{"abc", 0, ""},
	}
	for _, tc := range cases {
		if got := TruncRunes(tc.in, tc.n); got != tc.want {
			t.Fatalf("TruncRunes(%q, %d) = %q, want %q", tc.in, tc.n, got, tc.want)
		}
	}
}

func TestInlineKeyboardShape(t *testing.T) {
	t.Parallel()

	rm := NewInline().
		Row(Btn("A", "a"), Btn("B", "b")).
		Row(URLBtn("Link", "https://example.com")).
		Markup()

	if len(rm.InlineKeyboard) != 2 {
		t.Fatalf("rows = %d", len(rm.InlineKeyboard))
	}
	if len(rm.InlineKeyboard[0]) != 2 || len(rm.InlineKeyboard[1]) != 1 {
		t.Fatalf("row shapes = %d/%d", len(rm.InlineKeyboard[0]), len(rm.InlineKeyboard[1]))
	}
}

func TestReplyKeyboard(t *testing.T) {
	t.Parallel()

	rm := Reply([]string{"My profile"}, []string{"Resources"})
	if !rm.ResizeKeyboard {
		t.Fatalf("resize flag not set")
	}
	if len(rm.ReplyKeyboard) != 2 {
		t.Fatalf("rows = %d", len(rm.ReplyKeyboard))
	}
	if rm.ReplyKeyboard[0][0].Text != "My profile" {
		t.Fatalf("label = %q", rm.ReplyKeyboard[0][0].Text)
	}
}
