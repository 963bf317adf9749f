//go:build integration
// +build integration

package cache

import (
	"context"
	"testing"
	"time"
)

// TestMemcachedCache_GetSet_Integration verifies that MemcachedCache stores and retrieves values
// when a memcached server is available.
func TestMemcachedCache_GetSet_Integration(t *testing.T) {
	c, err := NewMemcachedCache("localhost:11211", 500*time.Millisecond, 2)
	if err != nil {
		t.Fatalf("NewMemcachedCache() error = %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	if err := c.Set(ctx, "location:SW1A 1AA", []byte(`{"postalCode":"SW1A 1AA"}`), time.Minute); err != nil {
		t.Skipf("Set failed (memcached may not be running): %v", err)
	}
	got, ok, err := c.Get(ctx, "location:SW1A 1AA")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok || string(got) != `{"postalCode":"SW1A 1AA"}` {
		t.Errorf("Get() = %s, %v", got, ok)
	}
}

// TestMemcachedCache_Get_Miss_Integration verifies that a missing key is reported as a miss.
func TestMemcachedCache_Get_Miss_Integration(t *testing.T) {
	c, err := NewMemcachedCache("localhost:11211", 500*time.Millisecond, 2)
	if err != nil {
		t.Fatalf("NewMemcachedCache() error = %v", err)
	}
	defer c.Close()

	_, ok, err := c.Get(context.Background(), "nonexistent")
	if err != nil {
		t.Skipf("Get failed (memcached may not be running): %v", err)
	}
	if ok {
		t.Error("Get() ok = true, want false for miss")
	}
}

// TestMemcachedCache_Ping_Integration verifies Ping against a running server.
func TestMemcachedCache_Ping_Integration(t *testing.T) {
	c, err := NewMemcachedCache("localhost:11211", 500*time.Millisecond, 2)
	if err != nil {
		t.Fatalf("NewMemcachedCache() error = %v", err)
	}
	defer c.Close()
	if err := c.Ping(context.Background()); err != nil {
		t.Skipf("Ping failed (memcached may not be running): %v", err)
	}
}
