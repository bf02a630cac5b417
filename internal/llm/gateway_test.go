package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// fakeModel is a canned-reply chat model for tests.
type fakeModel struct {
	reply string
	err   error

	// lastMessages records the most recent Generate input.
	lastMessages []*schema.Message
}

func (f *fakeModel) Generate(_ context.Context, in []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.lastMessages = in
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeModel) Stream(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

func (f *fakeModel) WithTools(_ []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return f, nil
}

// fakeEmbedder returns a fixed vector per input text.
type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}

func Test_Client_Complete(t *testing.T) {
	t.Parallel()
	fm := &fakeModel{reply: "partnership_request"}
	c, err := NewClient(fm, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	got, err := c.Complete(context.Background(), "classify", "vendo bolos")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got != "partnership_request" {
		t.Errorf("want partnership_request, got %q", got)
	}
	if len(fm.lastMessages) != 2 {
		t.Fatalf("want system+user messages, got %d", len(fm.lastMessages))
	}
	if fm.lastMessages[0].Role != schema.System || fm.lastMessages[1].Role != schema.User {
		t.Errorf("unexpected roles: %v %v", fm.lastMessages[0].Role, fm.lastMessages[1].Role)
	}
}

func Test_Client_CompleteError(t *testing.T) {
	t.Parallel()
	c, err := NewClient(&fakeModel{err: errors.New("backend down")}, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := c.Complete(context.Background(), "s", "u"); err == nil {
		t.Fatal("want error from failing model")
	}
}

func Test_Client_Embed(t *testing.T) {
	t.Parallel()
	c, err := NewClient(&fakeModel{}, &fakeEmbedder{vec: []float32{1, 2, 3}})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	vec, err := c.Embed(context.Background(), "texto")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vec) != 3 || vec[0] != 1 {
		t.Errorf("unexpected vector: %v", vec)
	}
}

func Test_Client_EmbedWithoutEmbedder(t *testing.T) {
	t.Parallel()
	c, err := NewClient(&fakeModel{}, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := c.Embed(context.Background(), "texto"); err == nil {
		t.Fatal("want error when no embedder is configured")
	}
}

func Test_NewClient_NilModel(t *testing.T) {
	t.Parallel()
	if _, err := NewClient(nil, nil); err == nil {
		t.Fatal("want error for nil model")
	}
}
