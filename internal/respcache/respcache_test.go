package respcache

import (
	"testing"
	"time"
)

func TestTTLGetPut(t *testing.T) {
	c := NewTTL()
	defer c.Stop()

	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss for absent key")
	}

	c.Put("key", "value", time.Minute)
	got, ok := c.Get("key")
	if !ok {
		t.Fatal("expected hit after Put")
	}
	if got != "value" {
		t.Errorf("expected %q, got %q", "value", got)
	}
}

func TestTTLExpiry(t *testing.T) {
	c := NewTTL()
	defer c.Stop()

	c.Put("key", "value", 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	if _, ok := c.Get("key"); ok {
		t.Error("expected miss after expiry")
	}
}

func TestTTLZeroTTLNotStored(t *testing.T) {
	c := NewTTL()
	defer c.Stop()

	c.Put("key", "value", 0)
	if _, ok := c.Get("key"); ok {
		t.Error("expected zero TTL entries to be dropped")
	}
}

func TestNop(t *testing.T) {
	var c Nop
	c.Put("key", "value", time.Minute)
	if _, ok := c.Get("key"); ok {
		t.Error("Nop cache should never hit")
	}
}
