package tenancy

import (
	"fmt"
	"sync"

	"github.com/dmitrymomot/mongotenant/pkg/odm"
)

// modelCache memoizes bound models per model name and stringified tenant id.
// Ids that print identically share an entry, so 1 and "1" resolve to the
// same bound model; filtering uses the id of the call that built it.
type modelCache struct {
	mu     sync.Mutex
	models map[string]map[string]odm.Model
}

func newModelCache() *modelCache {
	return &modelCache{models: make(map[string]map[string]odm.Model)}
}

// get returns the cached bound model, calling build at most once per key.
func (c *modelCache) get(m odm.Model, tenantID any, build func(odm.Model, any) odm.Model) (odm.Model, bool) {
	key := fmt.Sprint(tenantID)

	c.mu.Lock()
	defer c.mu.Unlock()

	byTenant, ok := c.models[m.Name()]
	if !ok {
		byTenant = make(map[string]odm.Model)
		c.models[m.Name()] = byTenant
	}
	if bound, ok := byTenant[key]; ok {
		return bound, true
	}
	bound := build(m, tenantID)
	byTenant[key] = bound
	return bound, false
}

func (c *modelCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, byTenant := range c.models {
		n += len(byTenant)
	}
	return n
}
