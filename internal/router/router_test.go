package router

import (
	"context"
	"errors"
	"testing"
)

// fakeGateway returns a canned completion.
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

func Test_Classify(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		reply string
		want  Label
	}{
		{name: "clean label", reply: "partnership_request", want: LabelPartnership},
		{name: "first token wins", reply: "moderation — this message is abusive", want: LabelModeration},
		{name: "case folded", reply: "Social_Media_Promotion", want: LabelPromotion},
		{name: "surrounding whitespace", reply: "  service_request\n", want: LabelService},
		{name: "empty reply degrades to fallback", reply: "", want: LabelFallback},
		{name: "whitespace-only reply degrades to fallback", reply: "  \n\t", want: LabelFallback},
		{name: "unknown token passes through", reply: "banana", want: Label("banana")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			r := New(&fakeGateway{reply: tc.reply})
			got, err := r.Classify(context.Background(), "qualquer mensagem")
			if err != nil {
				t.Fatalf("classify: %v", err)
			}
			if got != tc.want {
				t.Errorf("want %q, got %q", tc.want, got)
			}
		})
	}
}

func Test_Classify_TransportError(t *testing.T) {
	t.Parallel()
	r := New(&fakeGateway{err: errors.New("connection refused")})
	if _, err := r.Classify(context.Background(), "oi"); err == nil {
		t.Fatal("want transport error to propagate")
	}
}

func Test_Label_Known(t *testing.T) {
	t.Parallel()
	for _, l := range []Label{LabelPartnership, LabelPromotion, LabelService, LabelModeration, LabelFallback} {
		if !l.Known() {
			t.Errorf("%s should be known", l)
		}
	}
	if Label("banana").Known() {
		t.Error("banana should not be known")
	}
	if Label("").Known() {
		t.Error("empty label should not be known")
	}
}
