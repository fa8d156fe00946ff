package domain

import "testing"

func TestStageEnumeration(t *testing.T) {
	all := AllStages()
	if len(all) != 14 {
		t.Fatalf("expected 14 stages, got %d", len(all))
	}
	if all[0] != StageLead || all[13] != StageRejected {
		t.Fatalf("unexpected order: first=%s last=%s", all[0], all[13])
	}

	choices := StageChoices()
	if choices["application_in_process"] != "Application In Process" {
		t.Fatalf("unexpected label %q", choices["application_in_process"])
	}
	if len(choices) != len(all) {
		t.Fatal("choices and stages disagree")
	}
}

func TestParseStage(t *testing.T) {
	if s, ok := ParseStage("docs_pending"); !ok || s != StageDocsPending {
		t.Fatalf("ParseStage(docs_pending) = %q, %v", s, ok)
	}
	for _, bad := range []string{"", "Lead", "won", "lead "} {
		if _, ok := ParseStage(bad); ok {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
	if Stage("won").Label() != "won" {
		t.Fatal("unknown stages should label as their raw value")
	}
}

func TestIsComplete(t *testing.T) {
	c := Client{Name: "Ana", Email: "ana@example.com"}
	if c.IsComplete() {
		t.Fatal("missing phone should be incomplete")
	}
	c.Phone = "  "
	if c.IsComplete() {
		t.Fatal("blank phone should be incomplete")
	}
	c.Phone = "+12015550123"
	if !c.IsComplete() {
		t.Fatal("expected complete")
	}
}

func TestUserRefName(t *testing.T) {
	if got := (UserRef{Email: "a@b.c"}).Name(); got != "a@b.c" {
		t.Fatalf("got %q", got)
	}
	if got := (UserRef{FirstName: "Ana", LastName: "Lima", Email: "a@b.c"}).Name(); got != "Ana Lima" {
		t.Fatalf("got %q", got)
	}
}
