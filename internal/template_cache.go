package internal

import (
	gocache "github.com/patrickmn/go-cache"

	"github.com/lychee-technology/propria"
)

// TemplateCache is a read-through cache for template lookups on the join and
// reference-validation paths. Entries expire on the configured TTL and are
// invalidated eagerly on template update/delete.
type TemplateCache struct {
	enabled bool
	cache   *gocache.Cache
}

func NewTemplateCache(cfg propria.CacheConfig) *TemplateCache {
	if !cfg.Enabled {
		return &TemplateCache{}
	}
	return &TemplateCache{
		enabled: true,
		cache:   gocache.New(cfg.TTL, cfg.CleanupInterval),
	}
}

func (c *TemplateCache) Get(identifier string) (*propria.PropertyTemplate, bool) {
	if !c.enabled {
		return nil, false
	}
	cached, ok := c.cache.Get(identifier)
	if !ok {
		return nil, false
	}
	template, ok := cached.(*propria.PropertyTemplate)
	return template, ok
}

func (c *TemplateCache) Put(template *propria.PropertyTemplate) {
	if !c.enabled || template == nil {
		return
	}
	c.cache.SetDefault(template.Identifier, template)
}

func (c *TemplateCache) Invalidate(identifier string) {
	if !c.enabled {
		return
	}
	c.cache.Delete(identifier)
}
