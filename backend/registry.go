package backend

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

var registry = struct {
	dialers map[string]Dialer
	sync.RWMutex
}{dialers: map[string]Dialer{}}

// Register makes a dialer available under name. Drivers call it from init.
func Register(name string, dialer Dialer) {
	registry.Lock()
	defer registry.Unlock()
	registry.dialers[name] = dialer
}

// Drivers returns registered driver names.
func Drivers() []string {
	registry.RLock()
	defer registry.RUnlock()
	names := make([]string, 0, len(registry.dialers))
	for name := range registry.dialers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dial connects using the dialer registered for cfg.Driver.
func Dial(ctx context.Context, cfg *Config) (FileSystem, error) {
	registry.RLock()
	dialer, ok := registry.dialers[cfg.Driver]
	registry.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %v)", ErrUnknownDriver, cfg.Driver, Drivers())
	}
	return dialer(ctx, cfg)
}
