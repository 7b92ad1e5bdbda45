package cache

import (
	"strings"
	"testing"
	"time"
)

func TestKey(t *testing.T) {
	a := Key("embed", "text-embedding-3-small", "giraffes")
	b := Key("embed", "text-embedding-3-small", "giraffes")
	c := Key("embed", "text-embedding-3-small", "fish")

	if a != b {
		t.Errorf("expected stable keys, got %s and %s", a, b)
	}
	if a == c {
		t.Error("expected different inputs to produce different keys")
	}
	if !strings.HasPrefix(a, "bh:v1:embed:") {
		t.Errorf("unexpected key prefix: %s", a)
	}
}

func TestMemoryCache_SetGetDelete(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)

	if err := c.Set("k", []byte("v"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	val, ok := c.Get("k")
	if !ok || string(val) != "v" {
		t.Fatalf("expected hit with v, got %q %v", val, ok)
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 item, got %d", c.Len())
	}

	_ = c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Error("expected miss after delete")
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	_ = c.Set("k", []byte("v"), time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Error("expected expired entry to miss")
	}
}

func TestDiskCache_RoundTripAndExpiry(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)

	key := Key("evidence", "a giraffe has a long neck")
	if err := c.Set(key, []byte("payload"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	val, ok := c.Get(key)
	if !ok || string(val) != "payload" {
		t.Fatalf("expected hit, got %q %v", val, ok)
	}

	if err := c.Set(key, []byte("stale"), -time.Second); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, ok := c.Get(key); ok {
		t.Error("expected expired entry to miss")
	}

	if err := c.Delete("missing"); err != nil {
		t.Errorf("expected deleting a missing key to succeed, got %v", err)
	}
}

func TestLayeredCache_PromotesSlowHits(t *testing.T) {
	fast := NewMemoryCache(time.Minute, time.Minute)
	slow := NewDiskCache(t.TempDir(), time.Hour)
	c := NewLayeredCache(fast, slow, time.Minute)

	_ = slow.Set("k", []byte("v"), 0)

	if _, ok := fast.Get("k"); ok {
		t.Fatal("fast layer should start empty")
	}
	val, ok := c.Get("k")
	if !ok || string(val) != "v" {
		t.Fatalf("expected layered hit, got %q %v", val, ok)
	}
	if _, ok := fast.Get("k"); !ok {
		t.Error("expected slow hit to be promoted")
	}
}

func TestJSONHelpers(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)

	in := []float32{0.1, 0.2, 0.3}
	if err := SetJSON(c, "vec", in, 0); err != nil {
		t.Fatalf("SetJSON failed: %v", err)
	}
	var out []float32
	if !GetJSON(c, "vec", &out) {
		t.Fatal("expected GetJSON hit")
	}
	if len(out) != 3 || out[2] != 0.3 {
		t.Errorf("unexpected value %v", out)
	}
	if GetJSON(c, "missing", &out) {
		t.Error("expected miss")
	}
}
