package agent

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"sync"
)

//go:embed configs/*.json
var configFS embed.FS

var (
	builtinOnce sync.Once
	builtinCfgs map[Key]Config
	builtinErr  error
)

// Builtin returns the embedded agent configs, keyed by agent key. The map
// is shared: callers must not mutate it.
func Builtin() (map[Key]Config, error) {
	builtinOnce.Do(func() {
		builtinCfgs = make(map[Key]Config)
		entries, err := fs.ReadDir(configFS, "configs")
		if err != nil {
			builtinErr = fmt.Errorf("agent: read embedded configs: %w", err)
			return
		}
		for _, e := range entries {
			data, err := configFS.ReadFile("configs/" + e.Name())
			if err != nil {
				builtinErr = fmt.Errorf("agent: read %s: %w", e.Name(), err)
				return
			}
			cfg, err := ParseConfig(data)
			if err != nil {
				builtinErr = err
				return
			}
			builtinCfgs[Key(cfg.AgentKey)] = cfg
		}
	})
	return builtinCfgs, builtinErr
}

// BuiltinConfig returns the embedded config for key.
func BuiltinConfig(key Key) (Config, error) {
	cfgs, err := Builtin()
	if err != nil {
		return Config{}, err
	}
	cfg, ok := cfgs[key]
	if !ok {
		return Config{}, fmt.Errorf("agent: no config for key %q", key)
	}
	return cfg, nil
}

// Keys lists the built-in agent keys in sorted order.
func Keys() []Key {
	cfgs, err := Builtin()
	if err != nil {
		return nil
	}
	keys := make([]Key, 0, len(cfgs))
	for k := range cfgs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
