package upstash

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type recorder struct {
	commands [][]any
	auth     string
}

func newTestClient(t *testing.T, reply string) (*Client, *recorder) {
	t.Helper()

	rec := &recorder{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var cmd []any
		if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
			t.Errorf("decode command: %v", err)
		}
		rec.commands = append(rec.commands, cmd)
		rec.auth = r.Header.Get("Authorization")
		fmt.Fprint(w, reply)
	}))
	t.Cleanup(server.Close)

	c, err := New(Config{URL: server.URL + "/", Token: "token", KeyPrefix: "kirana:"}, WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c, rec
}

func TestNewValidatesConfig(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{Token: "token"}); err == nil {
		t.Fatal("expected error for missing url")
	}
	if _, err := New(Config{URL: "not a url", Token: "token"}); err == nil {
		t.Fatal("expected error for invalid url")
	}
	if _, err := New(Config{URL: "https://example.upstash.io"}); err == nil {
		t.Fatal("expected error for missing token")
	}
	if (Config{URL: "https://example.upstash.io"}).Enabled() {
		t.Fatal("config without token must be disabled")
	}
}

func TestSetSendsPrefixedKeyAndTTL(t *testing.T) {
	t.Parallel()

	c, rec := newTestClient(t, `{"result":"OK"}`)
	if err := c.Set(context.Background(), "tr:milk", `{"hi":"दूध"}`, 1500*time.Millisecond); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	cmd := rec.commands[0]
	if len(cmd) != 5 || cmd[0] != "SET" || cmd[1] != "kirana:tr:milk" || cmd[3] != "EX" {
		t.Fatalf("unexpected command: %#v", cmd)
	}
	if cmd[4] != float64(2) {
		t.Fatalf("ttl must round up to whole seconds, got %v", cmd[4])
	}
	if rec.auth != "Bearer token" {
		t.Fatalf("unexpected auth header %q", rec.auth)
	}
}

func TestSetWithoutTTL(t *testing.T) {
	t.Parallel()

	c, rec := newTestClient(t, `{"result":"OK"}`)
	if err := c.Set(context.Background(), "k", "v", 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if len(rec.commands[0]) != 3 {
		t.Fatalf("unexpected command: %#v", rec.commands[0])
	}
	if err := c.Set(context.Background(), "k", "v", -time.Second); err == nil {
		t.Fatal("expected error for negative ttl")
	}
}

func TestGet(t *testing.T) {
	t.Parallel()

	c, rec := newTestClient(t, `{"result":"hello"}`)
	got, err := c.Get(context.Background(), "greeting")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "hello" {
		t.Fatalf("Get() = %q", got)
	}
	if rec.commands[0][0] != "GET" || rec.commands[0][1] != "kirana:greeting" {
		t.Fatalf("unexpected command: %#v", rec.commands[0])
	}
}

func TestGetMissing(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, `{"result":null}`)
	_, err := c.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRedisErrorIsReturned(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, `{"error":"WRONGPASS invalid password"}`)
	err := c.Del(context.Background(), "k")
	if err == nil || err.Error() != "WRONGPASS invalid password" {
		t.Fatalf("unexpected error: %v", err)
	}
}
