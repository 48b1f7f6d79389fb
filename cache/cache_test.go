package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"gallery/access"
	"gallery/models"
	"gallery/store"
)

func TestDisabledCacheIsNoOp(t *testing.T) {
	c := New("")
	assert.False(t, c.Enabled())
	assert.NoError(t, c.Ping(context.Background()))

	key := c.PageKey(access.AnonymousScope(), store.AssetFilter{Page: 1})
	_, ok := c.GetPage(context.Background(), key)
	assert.False(t, ok)

	// None of these may panic on a disabled cache.
	c.SetPage(context.Background(), key, []byte("{}"))
	c.Invalidate(context.Background())
	c.Close()
}

func TestPageKeySeparatesScopes(t *testing.T) {
	var c *Cache

	anon := access.AnonymousScope()
	member := access.ForUser(&models.User{ID: 3, TenantID: 7, Role: models.RoleMember})
	other := access.ForUser(&models.User{ID: 4, TenantID: 8, Role: models.RoleMember})
	admin := access.ForUser(&models.User{ID: 1, TenantID: 1, Role: models.RoleAdmin})

	filter := store.AssetFilter{Page: 1}
	keys := []string{
		c.PageKey(anon, filter),
		c.PageKey(member, filter),
		c.PageKey(other, filter),
		c.PageKey(admin, filter),
	}
	seen := map[string]bool{}
	for _, k := range keys {
		assert.False(t, seen[k], "duplicate key %s", k)
		seen[k] = true
	}
}

func TestPageKeySeparatesFilters(t *testing.T) {
	var c *Cache
	scope := access.ForUser(&models.User{ID: 3, TenantID: 7, Role: models.RoleMember})

	album := uint64(4)
	keys := []string{
		c.PageKey(scope, store.AssetFilter{Page: 1}),
		c.PageKey(scope, store.AssetFilter{Page: 2}),
		c.PageKey(scope, store.AssetFilter{Page: 1, Query: "sunset"}),
		c.PageKey(scope, store.AssetFilter{Page: 1, AlbumID: &album}),
	}
	seen := map[string]bool{}
	for _, k := range keys {
		assert.False(t, seen[k], "duplicate key %s", k)
		seen[k] = true
	}
}

func TestPageKeyIsStable(t *testing.T) {
	var c *Cache
	scope := access.ForUser(&models.User{ID: 3, TenantID: 7, Role: models.RoleMember})
	filter := store.AssetFilter{Page: 1, Query: "beach"}
	assert.Equal(t, c.PageKey(scope, filter), c.PageKey(scope, filter))
}
