package translate

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	promptx "github.com/tanpawarit/kirana-assistant/agent/prompt"
	"github.com/tanpawarit/kirana-assistant/pkg/upstash"
)

type fakeChatModel struct {
	mu      sync.Mutex
	replies []string
	err     error
	inputs  [][]*schema.Message
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, input)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.replies) == 0 {
		return nil, errors.New("no fake reply left")
	}
	reply := f.replies[0]
	f.replies = f.replies[1:]
	return schema.AssistantMessage(reply, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not implemented in fake model")
}

func (f *fakeChatModel) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inputs)
}

func newTestTranslator(t *testing.T, fake *fakeChatModel, opts ...Option) *Translator {
	t.Helper()
	tr, err := New(context.Background(), fake, promptx.LoadPromptSet().Translate, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return tr
}

func TestTranslateAndCache(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{replies: []string{"```json\n{\"hi\": \"तूर दाल\", \"ta\": \"துவரம் பருப்பு\", \"fr\": \"x\"}\n```"}}
	tr := newTestTranslator(t, fake)

	got, err := tr.Translate(context.Background(), " Toor Dal ", []string{"TA", "hi"})
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if got.Cached || got.Translations["hi"] != "तूर दाल" || got.Translations["ta"] != "துவரம் பருப்பு" {
		t.Fatalf("unexpected result: %#v", got)
	}
	if _, ok := got.Translations["fr"]; ok {
		t.Fatal("unrequested language must be dropped")
	}

	user := fake.inputs[0][1].Content
	if !strings.Contains(user, "Product name: Toor Dal") || !strings.Contains(user, "hi (Hindi), ta (Tamil)") {
		t.Fatalf("unexpected user message: %q", user)
	}

	again, err := tr.Translate(context.Background(), "toor dal", []string{"hi", "ta", "hi"})
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if !again.Cached || again.Translations["hi"] != "तूर दाल" {
		t.Fatalf("expected cached result, got %#v", again)
	}
	if fake.calls() != 1 {
		t.Fatalf("expected 1 model call, got %d", fake.calls())
	}
}

func TestTranslateFallsBackToOriginal(t *testing.T) {
	t.Parallel()

	cases := map[string]*fakeChatModel{
		"model error": {err: errors.New("429 rate limited")},
		"prose reply": {replies: []string{"Sorry, I cannot help with that."}},
	}
	for name, fake := range cases {
		cache := NewMemoryCache()
		tr := newTestTranslator(t, fake, WithCache(cache), WithTimeout(time.Second))

		got, err := tr.Translate(context.Background(), "Sugar", []string{"hi", "bn"})
		if err != nil {
			t.Fatalf("%s: Translate() error = %v", name, err)
		}
		if got.Translations["hi"] != "Sugar" || got.Translations["bn"] != "Sugar" {
			t.Fatalf("%s: expected original text, got %#v", name, got.Translations)
		}
		if cache.Len() != 0 {
			t.Fatalf("%s: failures must not be cached", name)
		}
	}
}

func TestTranslateMissingLanguageUsesOriginal(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{replies: []string{`{"hi": "चीनी"}`}}
	tr := newTestTranslator(t, fake)

	got, err := tr.Translate(context.Background(), "Sugar", []string{"hi", "pa"})
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if got.Translations["hi"] != "चीनी" || got.Translations["pa"] != "Sugar" {
		t.Fatalf("unexpected translations: %#v", got.Translations)
	}
}

func TestTranslateRequiresText(t *testing.T) {
	t.Parallel()

	tr := newTestTranslator(t, &fakeChatModel{})
	if _, err := tr.Translate(context.Background(), "  ", nil); err == nil {
		t.Fatal("expected error for empty text")
	}
}

func TestNormalizeLanguagesAndCacheKey(t *testing.T) {
	t.Parallel()

	if got := NormalizeLanguages(nil); len(got) != len(DefaultLanguages) || got[0] != "bn" {
		t.Fatalf("unexpected defaults: %v", got)
	}
	a := CacheKey("Toor Dal", NormalizeLanguages([]string{"ta", "HI"}))
	b := CacheKey(" toor dal", NormalizeLanguages([]string{"hi", "ta", "ta"}))
	if a != b || a != "toor dal|hi,ta" {
		t.Fatalf("cache keys differ: %q vs %q", a, b)
	}
}

type fakeKV struct {
	mu     sync.Mutex
	values map[string]string
	ttls   map[string]time.Duration
	err    error
}

func (f *fakeKV) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	v, ok := f.values[key]
	if !ok {
		return "", upstash.ErrNotFound
	}
	return v, nil
}

func (f *fakeKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.values[key] = value
	f.ttls[key] = ttl
	return nil
}

func TestUpstashCacheRoundTrip(t *testing.T) {
	t.Parallel()

	kv := &fakeKV{values: map[string]string{}, ttls: map[string]time.Duration{}}
	writer := NewUpstashCache(kv, time.Hour, nil)
	writer.Set(context.Background(), "sugar|hi", map[string]string{"hi": "चीनी"})

	if kv.values["translate:sugar|hi"] != `{"hi":"चीनी"}` || kv.ttls["translate:sugar|hi"] != time.Hour {
		t.Fatalf("unexpected remote write: %#v %#v", kv.values, kv.ttls)
	}

	reader := NewUpstashCache(kv, time.Hour, nil)
	got, ok := reader.Get(context.Background(), "sugar|hi")
	if !ok || got["hi"] != "चीनी" {
		t.Fatalf("expected remote hit, got %#v %v", got, ok)
	}
	if _, ok := reader.Get(context.Background(), "salt|hi"); ok {
		t.Fatal("expected miss")
	}
}

func TestUpstashCacheErrorsAreMisses(t *testing.T) {
	t.Parallel()

	var ops []string
	kv := &fakeKV{values: map[string]string{}, ttls: map[string]time.Duration{}, err: errors.New("connection refused")}
	c := NewUpstashCache(kv, 0, func(ctx context.Context, op string, err error) { ops = append(ops, op) })

	c.Set(context.Background(), "k", map[string]string{"hi": "x"})
	if got, ok := c.Get(context.Background(), "k"); !ok || got["hi"] != "x" {
		t.Fatal("local layer must still serve the value")
	}
	if _, ok := c.Get(context.Background(), "other"); ok {
		t.Fatal("expected miss")
	}
	if strings.Join(ops, ",") != "set,get" {
		t.Fatalf("unexpected error ops: %v", ops)
	}
}
