package cache

import (
	"context"
	"testing"
	"time"

	"github.com/aluiziolira/go-car-prices/config"
)

func TestMemoryGetSet(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(2, time.Hour)

	if _, ok, err := store.Get(ctx, "ABC1234"); ok || err != nil {
		t.Fatalf("empty cache hit: ok=%v err=%v", ok, err)
	}

	value := []byte(`{"MARCA":"VW"}`)
	if err := store.Set(ctx, "ABC1234", value); err != nil {
		t.Fatalf("set: %v", err)
	}
	value[0] = 'x'

	got, ok, err := store.Get(ctx, "ABC1234")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if string(got) != `{"MARCA":"VW"}` {
		t.Fatalf("got %q, stored value was aliased", got)
	}
}

func TestMemoryEvictsLeastRecent(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(2, time.Hour)

	_ = store.Set(ctx, "AAA1111", []byte("1"))
	_ = store.Set(ctx, "BBB2222", []byte("2"))
	_, _, _ = store.Get(ctx, "AAA1111")
	_ = store.Set(ctx, "CCC3333", []byte("3"))

	if _, ok, _ := store.Get(ctx, "BBB2222"); ok {
		t.Fatalf("least recently used entry should be evicted")
	}
	if _, ok, _ := store.Get(ctx, "AAA1111"); !ok {
		t.Fatalf("recently used entry evicted")
	}
	if store.Len() != 2 {
		t.Fatalf("len=%d, want 2", store.Len())
	}
}

func TestMemoryExpires(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(10, 20*time.Millisecond)

	_ = store.Set(ctx, "ABC1234", []byte("v"))
	time.Sleep(60 * time.Millisecond)

	if _, ok, _ := store.Get(ctx, "ABC1234"); ok {
		t.Fatalf("entry should have expired")
	}
}

func TestNewSelectsBackend(t *testing.T) {
	tests := []struct {
		backend string
		check   func(Store) bool
		wantErr bool
	}{
		{backend: "memory", check: func(s Store) bool { _, ok := s.(*Memory); return ok }},
		{backend: "redis", check: func(s Store) bool { _, ok := s.(*Redis); return ok }},
		{backend: "none", check: func(s Store) bool { return s == nil }},
		{backend: "memcached", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.CacheBackend = tt.backend
			cfg.RedisAddr = "127.0.0.1:6379"

			store, err := New(cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if !tt.check(store) {
				t.Fatalf("New() = %T for backend %q", store, tt.backend)
			}
			if r, ok := store.(*Redis); ok {
				r.Close()
			}
		})
	}
}

func TestRedisKeyPrefix(t *testing.T) {
	r := NewRedis("127.0.0.1:6379", "", 0, time.Hour, DefaultRedisPrefix)
	defer r.Close()

	if got := r.key("ABC1234"); got != "placa:ABC1234" {
		t.Fatalf("key=%q, want placa:ABC1234", got)
	}
}
