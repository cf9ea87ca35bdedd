package chart

import (
	"html/template"
	"strconv"

	"spendboard/internal/aggregate"
	"spendboard/internal/cache"
)

// Cached memoises rendered fragments per snapshot version. A new snapshot
// gets a new version, so entries never need invalidating; old ones age out
// of the LRU.
type Cached struct {
	renderer *Renderer
	cache    cache.Cache[template.HTML]
}

func NewCached(r *Renderer, c cache.Cache[template.HTML]) *Cached {
	return &Cached{renderer: r, cache: c}
}

func (c *Cached) Render(version uint64, spec Spec, t aggregate.Table) (template.HTML, error) {
	key := strconv.FormatUint(version, 10) + "/" + spec.Name
	if frag, ok := c.cache.Get(key); ok {
		return frag, nil
	}
	frag, err := c.renderer.Render(spec, t)
	if err != nil {
		return "", err
	}
	c.cache.Set(key, frag)
	return frag, nil
}
