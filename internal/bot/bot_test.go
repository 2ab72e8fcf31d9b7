package bot

import (
	"strings"
	"testing"

	"teambot/internal/storage"
)

func TestComposeContent(t *testing.T) {
	t.Parallel()

	c, err := composeContent(map[string]string{fieldText: "hello"})
	if err != nil {
		t.Fatalf("text compose: %v", err)
	}
	if c.Type != storage.ContentText || c.Text != "hello" {
		t.Fatalf("content = %+v", c)
	}

	c, err = composeContent(map[string]string{
		fieldFileType: string(storage.ContentPhoto),
		fieldFileID:   "file123",
		fieldText:     "caption",
	})
	if err != nil {
		t.Fatalf("photo compose: %v", err)
	}
	if c.Type != storage.ContentPhoto || c.FileID != "file123" || c.Text != "caption" {
		t.Fatalf("content = %+v", c)
	}

	// Media without a caption is fine; text without a body is not.
	if _, err := composeContent(map[string]string{
		fieldFileType: string(storage.ContentDocument),
		fieldFileID:   "doc1",
	}); err != nil {
		t.Fatalf("captionless media rejected: %v", err)
	}
	if _, err := composeContent(map[string]string{fieldText: "   "}); err == nil {
		t.Fatalf("blank text accepted")
	}
}

func TestMustID(t *testing.T) {
	t.Parallel()

	if got := mustID("123"); got != 123 {
		t.Fatalf("mustID = %d", got)
	}
	for _, in := range []string{"", "0", "-5", "abc", "12x"} {
		if got := mustID(in); got != 0 {
			t.Fatalf("mustID(%q) = %d, want 0", in, got)
		}
	}
}

func TestBroadcastContentStep(t *testing.T) {
	t.Parallel()

	if !broadcastContentStep(flowBroadcastAll, stepOnly) {
		t.Fatalf("broadcast-all input step should accept media")
	}
	if !broadcastContentStep(flowBroadcastOne, stepContent) {
		t.Fatalf("single-broadcast content step should accept media")
	}
	if broadcastContentStep(flowBroadcastOne, stepTarget) {
		t.Fatalf("target step must stay text-only")
	}
	if broadcastContentStep(flowIntake, stepSource) {
		t.Fatalf("intake must stay text-only")
	}
}

func TestIntakeSummaryAndSnapshot(t *testing.T) {
	t.Parallel()

	f := map[string]string{
		fieldSource:     "a friend",
		fieldExperience: "two years",
		fieldTime:       "evenings",
		fieldWhy:        "motivated",
	}

	summary := intakeSummary(f)
	for _, want := range []string{askSource, "a friend", askWhy, "motivated"} {
		if !strings.Contains(summary, want) {
			t.Fatalf("summary missing %q:\n%s", want, summary)
		}
	}

	snap := applicationText(f)
	for _, want := range []string{"two years", "evenings"} {
		if !strings.Contains(snap, want) {
			t.Fatalf("snapshot missing %q:\n%s", want, snap)
		}
	}
}

func TestFlowsAreWellFormed(t *testing.T) {
	t.Parallel()

	for _, f := range flows() {
		if f.Entry == "" {
			t.Fatalf("flow %s has no entry", f.ID)
		}
		if _, ok := f.Steps[f.Entry]; !ok {
			t.Fatalf("flow %s entry %q not in steps", f.ID, f.Entry)
		}
		for id, s := range f.Steps {
			if s.Prompt == nil {
				t.Fatalf("flow %s step %s has no prompt", f.ID, id)
			}
			if s.Next != "" {
				if _, ok := f.Steps[s.Next]; !ok {
					t.Fatalf("flow %s step %s points at unknown step %q", f.ID, id, s.Next)
				}
			}
		}
	}
}

func TestUserCardText(t *testing.T) {
	t.Parallel()

	u := storage.UserRecord{
		ID:     42,
		Handle: "alice",
		Status: storage.StatusApproved,
	}
	card := userCardText(u)
	if !strings.Contains(card, "@alice") || !strings.Contains(card, "42") {
		t.Fatalf("card missing identity:\n%s", card)
	}
	if !strings.Contains(card, "not set") {
		t.Fatalf("unset fields should render as placeholders:\n%s", card)
	}
}
