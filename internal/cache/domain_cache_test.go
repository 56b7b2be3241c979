package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/teresa-solution/tenant-access-service/internal/model"
)

func testTenant(domain string) *model.Tenant {
	return &model.Tenant{Name: "Test", Domain: domain, Status: model.StatusActive}
}

func TestDomainCache_GetPut(t *testing.T) {
	c := New(5*time.Minute, 100)

	_, ok := c.Get("acme.portal.example")
	assert.False(t, ok)

	c.Put("acme.portal.example", testTenant("acme.portal.example"), false)
	entry, ok := c.Get("acme.portal.example")
	assert.True(t, ok)
	assert.Equal(t, "acme.portal.example", entry.Tenant.Domain)
	assert.False(t, entry.MatchedCustom)

	// Lookups are case-insensitive.
	_, ok = c.Get("ACME.Portal.Example")
	assert.True(t, ok)
}

func TestDomainCache_TTLExpiry(t *testing.T) {
	c := New(5*time.Minute, 100)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Put("acme.portal.example", testTenant("acme.portal.example"), false)

	now = now.Add(4 * time.Minute)
	_, ok := c.Get("acme.portal.example")
	assert.True(t, ok)

	// At exactly the TTL the entry is no longer served.
	now = now.Add(1 * time.Minute)
	_, ok = c.Get("acme.portal.example")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestDomainCache_CapEvictsOldest(t *testing.T) {
	c := New(5*time.Minute, 3)
	now := time.Now()
	c.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		c.Put(fmt.Sprintf("tenant%d.example", i), testTenant("x"), false)
		now = now.Add(time.Second)
	}
	assert.Equal(t, 3, c.Len())

	c.Put("tenant3.example", testTenant("x"), false)
	assert.Equal(t, 3, c.Len())

	// The oldest entry went; the rest survived.
	_, ok := c.Get("tenant0.example")
	assert.False(t, ok)
	for _, domain := range []string{"tenant1.example", "tenant2.example", "tenant3.example"} {
		_, ok := c.Get(domain)
		assert.True(t, ok, domain)
	}
}

func TestDomainCache_OverwriteDoesNotEvict(t *testing.T) {
	c := New(5*time.Minute, 2)
	c.Put("a.example", testTenant("a.example"), false)
	c.Put("b.example", testTenant("b.example"), false)

	c.Put("a.example", testTenant("a.example"), true)
	assert.Equal(t, 2, c.Len())

	entry, ok := c.Get("a.example")
	assert.True(t, ok)
	assert.True(t, entry.MatchedCustom)
	_, ok = c.Get("b.example")
	assert.True(t, ok)
}

func TestDomainCache_Invalidate(t *testing.T) {
	c := New(5*time.Minute, 100)
	c.Put("a.example", testTenant("a.example"), false)
	c.Put("b.example", testTenant("b.example"), false)

	c.Invalidate("a.example", "unknown.example")
	_, ok := c.Get("a.example")
	assert.False(t, ok)
	_, ok = c.Get("b.example")
	assert.True(t, ok)

	c.InvalidateAll()
	assert.Equal(t, 0, c.Len())
}
