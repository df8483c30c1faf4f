package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func newRedisStore(t *testing.T) (*RedisStore, *redis.Client) {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("parse redis url: %v", err)
	}
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis unreachable: %v", err)
	}
	store := NewSessionStore(client,
		[]byte("test-auth-key-must-be-32-bytes!!"),
		[]byte("test-enc-key-must-be-32-bytes!!!"),
		false,
	)
	return store, client
}

func TestRedisStore_IdentityRoundTrip(t *testing.T) {
	store, _ := newRedisStore(t)
	want := Identity{HolderID: uuid.New(), Role: "member"}

	var got Identity
	w := httptest.NewRecorder()
	RequireAuth(nil, store, newTestLogger())(captureIdentity(&got)).ServeHTTP(w, requestWithSession(t, store, want))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestRedisStore_DeleteOnNegativeMaxAge(t *testing.T) {
	store, client := newRedisStore(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	session, _ := store.Get(r, sessionName)
	session.Values[sessionHolderIDKey] = uuid.NewString()
	if err := session.Save(r, w); err != nil {
		t.Fatalf("save: %v", err)
	}
	key := sessionKeyPrefix + session.ID

	session.Options.MaxAge = -1
	if err := session.Save(r, httptest.NewRecorder()); err != nil {
		t.Fatalf("delete: %v", err)
	}
	n, err := client.Exists(context.Background(), key).Result()
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected session key %s to be removed", key)
	}
}

func TestRedisStore_TamperedCookieYieldsNewSession(t *testing.T) {
	store, _ := newRedisStore(t)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: sessionName, Value: "garbage"})
	session, err := store.New(r, sessionName)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !session.IsNew {
		t.Fatal("expected a fresh session for a tampered cookie")
	}
}
