package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

type fakeClient struct {
	values   map[string]string
	getErr   error
	setKey   string
	setValue any
	setTTL   time.Duration
}

func (f *fakeClient) Get(_ context.Context, key string) *goredis.StringCmd {
	if f.getErr != nil {
		return goredis.NewStringResult("", f.getErr)
	}
	value, ok := f.values[key]
	if !ok {
		return goredis.NewStringResult("", goredis.Nil)
	}
	return goredis.NewStringResult(value, nil)
}

func (f *fakeClient) Set(_ context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd {
	f.setKey = key
	f.setValue = value
	f.setTTL = expiration
	return goredis.NewStatusResult("OK", nil)
}

func TestGetMissReturnsNotFound(t *testing.T) {
	store, err := NewStore(&fakeClient{values: map[string]string{}}, "")
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	value, ok, err := store.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok || value != "" {
		t.Fatalf("Get() = %q, %v", value, ok)
	}
}

func TestGetHitUsesConfiguredKey(t *testing.T) {
	store, err := NewStore(&fakeClient{values: map[string]string{"custom": "summary"}}, "custom")
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	value, ok, err := store.Get(context.Background())
	if err != nil || !ok || value != "summary" {
		t.Fatalf("Get() = %q, %v, %v", value, ok, err)
	}
}

func TestGetWrapsTransportError(t *testing.T) {
	store, _ := NewStore(&fakeClient{getErr: errors.New("connection reset")}, "")
	if _, _, err := store.Get(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestSetWritesWithTTL(t *testing.T) {
	fake := &fakeClient{}
	store, _ := NewStore(fake, "")
	if err := store.Set(context.Background(), "text", time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if fake.setKey != DefaultKey || fake.setValue != "text" || fake.setTTL != time.Minute {
		t.Fatalf("Set recorded key=%q value=%v ttl=%v", fake.setKey, fake.setValue, fake.setTTL)
	}
}

func TestOpenRequiresAddr(t *testing.T) {
	if _, err := Open(context.Background(), Config{}); err == nil {
		t.Fatal("expected error for empty addr")
	}
}
