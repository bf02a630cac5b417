package moderator

import (
	"context"
	"errors"
	"testing"
)

type fakeGateway struct {
	reply string
	err   error
}

func (f *fakeGateway) Complete(_ context.Context, _, _ string) (string, error) {
	return f.reply, f.err
}

func (f *fakeGateway) Embed(_ context.Context, _ string) ([]float32, error) {
	return nil, errors.New("not implemented")
}

func Test_Moderate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		reply      string
		wantAction Action
		wantReason string
	}{
		{
			name:       "flag with reason",
			reply:      "flag: spam content",
			wantAction: ActionFlag,
			wantReason: "spam content",
		},
		{
			name:       "flag without reason gets default",
			reply:      "flag",
			wantAction: ActionFlag,
			wantReason: "inappropriate or abusive content",
		},
		{
			name:       "warn with reason",
			reply:      "warn: too vague to act on",
			wantAction: ActionWarn,
			wantReason: "too vague to act on",
		},
		{
			name:       "warn without reason gets default",
			reply:      "warn:",
			wantAction: ActionWarn,
			wantReason: "message too short",
		},
		{
			name:       "allow carries no reason",
			reply:      "allow",
			wantAction: ActionAllow,
		},
		{
			name:       "mixed case is folded",
			reply:      "FLAG: Conteúdo abusivo",
			wantAction: ActionFlag,
			wantReason: "conteúdo abusivo",
		},
		{
			name:       "ambiguous reply fails open",
			reply:      "hmm, hard to say",
			wantAction: ActionAllow,
		},
		{
			name:       "empty reply fails open",
			reply:      "",
			wantAction: ActionAllow,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			m := New(&fakeGateway{reply: tc.reply})
			v, err := m.Moderate(context.Background(), "qualquer mensagem")
			if err != nil {
				t.Fatalf("moderate: %v", err)
			}
			if v.Action != tc.wantAction {
				t.Errorf("action: want %s, got %s", tc.wantAction, v.Action)
			}
			if v.Reason != tc.wantReason {
				t.Errorf("reason: want %q, got %q", tc.wantReason, v.Reason)
			}
		})
	}
}

func Test_Moderate_TransportError(t *testing.T) {
	t.Parallel()
	m := New(&fakeGateway{err: errors.New("connection refused")})
	if _, err := m.Moderate(context.Background(), "oi"); err == nil {
		t.Fatal("want transport error to propagate")
	}
}
