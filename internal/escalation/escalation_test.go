package escalation

import "testing"

func Test_Escalate(t *testing.T) {
	t.Parallel()
	rec := New().Escalate("mensagem complexa", "user-1")

	if rec.Action != "escalate" {
		t.Errorf("action: got %q", rec.Action)
	}
	if rec.Reason == "" {
		t.Error("reason must not be empty")
	}
	if rec.Operator != "human_operator_1" {
		t.Errorf("operator: got %q", rec.Operator)
	}
}

func Test_Escalate_Deterministic(t *testing.T) {
	t.Parallel()
	a := New()
	if a.Escalate("a", "1") != a.Escalate("b", "2") {
		t.Error("escalation record must not depend on inputs")
	}
}
