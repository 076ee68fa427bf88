package resolver

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/kirana-assistant/agent/contract"
	promptx "github.com/tanpawarit/kirana-assistant/agent/prompt"
)

type fakeToolCallingModel struct {
	mu        sync.Mutex
	responses []*schema.Message
	err       error
	delay     time.Duration
	idx       int
	inputs    [][]*schema.Message
}

func (f *fakeToolCallingModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, input)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.idx >= len(f.responses) {
		return nil, errors.New("no fake response left")
	}
	msg := f.responses[f.idx]
	f.idx++
	return msg, nil
}

func (f *fakeToolCallingModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not implemented in fake model")
}

func (f *fakeToolCallingModel) WithTools(tools []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	return f, nil
}

func reply(content string) *fakeToolCallingModel {
	return &fakeToolCallingModel{responses: []*schema.Message{{Role: schema.Assistant, Content: content}}}
}

func newTestResolver(t *testing.T, fake *fakeToolCallingModel, opts ...Option) *Resolver {
	t.Helper()
	r, err := New(context.Background(), fake, promptx.LoadPromptSet().Intent, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return r
}

func TestResolveRecordSale(t *testing.T) {
	t.Parallel()

	fake := reply(`{"action":"RECORD_SALE","params":{"product":"Milk","quantity":2,"unit":null},"speech":"Recording 2 milk.","response":"Recording a sale of 2 milk."}`)
	r := newTestResolver(t, fake)

	intent := r.Resolve(context.Background(), contractx.ResolveRequest{
		Message: "sold 2 milk",
		Context: "Low stock items: none",
	})

	if intent.Action != contractx.ActionRecordSale {
		t.Fatalf("unexpected action: %s", intent.Action)
	}
	cmd, ok := intent.Command.(contractx.RecordSale)
	if !ok {
		t.Fatalf("unexpected command type: %T", intent.Command)
	}
	if cmd.Product != "Milk" {
		t.Fatalf("unexpected product: %q", cmd.Product)
	}
	if qty, ok := cmd.Quantity.Positive(); !ok || qty != 2 {
		t.Fatalf("unexpected quantity: %v", cmd.Quantity.Raw)
	}
	if intent.Speech != "Recording 2 milk." {
		t.Fatalf("unexpected speech: %q", intent.Speech)
	}
	if intent.Fallback() {
		t.Fatal("intent must not be a fallback")
	}
}

func TestResolvePassesContextHistoryAndMessage(t *testing.T) {
	t.Parallel()

	fake := reply(`{"action":"NONE","params":{},"response":"Which product did you sell 3 of?"}`)
	r := newTestResolver(t, fake, WithHistoryTurns(2))

	history := []contractx.ChatTurn{
		{Role: contractx.RoleUser, Content: "oldest"},
		{Role: contractx.RoleAssistant, Content: "old reply"},
		{Role: "system", Content: "ignored role"},
		{Role: contractx.RoleUser, Content: "sold 2 milk"},
	}
	intent := r.Resolve(context.Background(), contractx.ResolveRequest{
		Message:  "sold 3",
		History:  history,
		Language: "hi",
		Context:  "INVENTORY EMPTY: no products are recorded yet.",
	})

	if intent.Action != contractx.ActionNone || intent.Response != "Which product did you sell 3 of?" {
		t.Fatalf("unexpected intent: %#v", intent)
	}
	if len(fake.inputs) != 1 {
		t.Fatalf("expected 1 model call, got %d", len(fake.inputs))
	}

	msgs := fake.inputs[0]
	if len(msgs) != 3 {
		t.Fatalf("expected system + 1 history + user messages, got %d", len(msgs))
	}
	system := msgs[0].Content
	for _, want := range []string{"INVENTORY EMPTY", "RECORD_SALE", `code "hi"`, `{"action": "RECORD_SALE"`} {
		if !strings.Contains(system, want) {
			t.Fatalf("system prompt missing %q", want)
		}
	}
	if msgs[1].Role != schema.User || msgs[1].Content != "sold 2 milk" {
		t.Fatalf("unexpected history message: %#v", msgs[1])
	}
	if msgs[2].Role != schema.User || msgs[2].Content != "sold 3" {
		t.Fatalf("unexpected user message: %#v", msgs[2])
	}
	if history[0].Content != "oldest" || len(history) != 4 {
		t.Fatal("history must not be modified")
	}
}

func TestResolveFencedReplyWithProse(t *testing.T) {
	t.Parallel()

	fake := reply("Here you go:\n```json\n{\"action\":\"GET_INFO\",\"params\":{\"query_type\":\"sales_report\"},\"content\":\"Checking today's sales.\"}\n```")
	r := newTestResolver(t, fake)

	intent := r.Resolve(context.Background(), contractx.ResolveRequest{Message: "today's sales?"})
	cmd, ok := intent.Command.(contractx.GetInfo)
	if !ok {
		t.Fatalf("unexpected command type: %T", intent.Command)
	}
	if cmd.QueryType != contractx.QuerySalesReport {
		t.Fatalf("unexpected query type: %s", cmd.QueryType)
	}
	if intent.Response != "Checking today's sales." {
		t.Fatalf("content must fill response, got %q", intent.Response)
	}
}

func TestResolveFallbacks(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		fake    *fakeToolCallingModel
		failure contractx.FailureKind
	}{
		"model error":    {fake: &fakeToolCallingModel{err: errors.New("503")}, failure: contractx.FailureModelUnavailable},
		"truncated json": {fake: reply(`{"action":"RECORD_SALE","params":{"product":"Mi`), failure: contractx.FailureMalformedResponse},
		"plain prose":    {fake: reply("I think you sold some milk."), failure: contractx.FailureMalformedResponse},
		"unknown action": {fake: reply(`{"action":"DELETE","response":"x"}`), failure: contractx.FailureMalformedResponse},
		"missing qty":    {fake: reply(`{"action":"RECORD_SALE","params":{"product":"Milk"},"response":"x"}`), failure: contractx.FailureMalformedResponse},
		"empty reply":    {fake: reply("   "), failure: contractx.FailureMalformedResponse},
		"slow model":     {fake: &fakeToolCallingModel{delay: time.Second}, failure: contractx.FailureModelUnavailable},
	}

	for name, tc := range cases {
		r := newTestResolver(t, tc.fake, WithTimeout(20*time.Millisecond))
		intent := r.Resolve(context.Background(), contractx.ResolveRequest{Message: "sold milk"})

		if intent.Action != contractx.ActionNone {
			t.Fatalf("%s: expected NONE, got %s", name, intent.Action)
		}
		if _, ok := intent.Command.(contractx.NoAction); !ok {
			t.Fatalf("%s: unexpected command type %T", name, intent.Command)
		}
		if intent.Failure != tc.failure {
			t.Fatalf("%s: expected failure %s, got %s", name, tc.failure, intent.Failure)
		}
		if intent.Response == "" || intent.Speech == "" {
			t.Fatalf("%s: fallback must carry an apology", name)
		}
	}
}

func TestNewRequiresPrompt(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), reply("{}"), "  ")
	if !errors.Is(err, contractx.ErrPromptMissing) {
		t.Fatalf("expected ErrPromptMissing, got %v", err)
	}
}

func TestPhraserPassesDraftAndFacts(t *testing.T) {
	t.Parallel()

	fake := reply("  2 Milk sold for ₹54, 3 left.  ")
	p, err := NewPhraser(context.Background(), fake, promptx.LoadPromptSet().Phrase, time.Second)
	if err != nil {
		t.Fatalf("NewPhraser() error = %v", err)
	}

	out, err := p.Phrase(context.Background(), contractx.PhraseRequest{
		Action:   contractx.ActionRecordSale,
		Draft:    "Recorded sale of 2 Milk for ₹54. 3 left in stock.",
		Facts:    []string{"2", "₹54", "3"},
		Language: "te",
	})
	if err != nil {
		t.Fatalf("Phrase() error = %v", err)
	}
	if out != "2 Milk sold for ₹54, 3 left." {
		t.Fatalf("unexpected phrase: %q", out)
	}

	msgs := fake.inputs[0]
	if !strings.Contains(msgs[0].Content, `code "te"`) {
		t.Fatalf("system prompt missing language: %q", msgs[0].Content)
	}
	if !strings.Contains(msgs[1].Content, "Numbers to keep: 2, ₹54, 3") {
		t.Fatalf("user message missing facts: %q", msgs[1].Content)
	}
}
