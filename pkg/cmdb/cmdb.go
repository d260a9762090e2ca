package cmdb

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/adjust/Rex/pkg/template"
)

// EnvironmentProvider supplies the current environment name.
type EnvironmentProvider interface {
	Environment() string
}

// SettingsProvider supplies the full current configuration as a flat
// key/value mapping. Every setting becomes a template variable.
type SettingsProvider interface {
	Settings() map[string]any
}

// StaticEnvironment is a fixed environment name.
type StaticEnvironment string

func (e StaticEnvironment) Environment() string { return string(e) }

// StaticSettings is a fixed settings mapping.
type StaticSettings map[string]any

func (s StaticSettings) Settings() map[string]any { return s }

// Options configures a CMDB instance.
type Options struct {
	// Path selects the candidate path strategy. Required.
	Path PathStrategy `validate:"required"`

	// Merge is a full custom policy. Mutually exclusive with MergeBehavior.
	Merge *Policy

	// MergeBehavior names a built-in policy. Empty means left-precedent.
	MergeBehavior string

	// Environment provides the environment name. Optional; when nil the
	// environment variable renders empty.
	Environment EnvironmentProvider

	// Settings provides configuration values merged into every variable
	// context. Optional.
	Settings SettingsProvider

	// Engine templates source file content before parsing. Optional;
	// defaults to the mustache-style engine.
	Engine template.Engine
}

// Stats reports memo cache behavior for one instance.
type Stats struct {
	CacheHits   int64
	CacheMisses int64
}

// CMDB resolves layered per-host configuration data. Instances are meant
// for one execution context at a time; the memo cache is mutex-guarded so
// stray concurrent use is safe, but lookups are not parallelized.
type CMDB struct {
	strategy PathStrategy
	policy   *Policy
	env      EnvironmentProvider
	settings SettingsProvider
	engine   template.Engine

	mu    sync.Mutex
	files map[string]loadResult

	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
}

var validate = validator.New()

// New creates a CMDB instance from opts.
func New(opts Options) (*CMDB, error) {
	if err := validate.Struct(opts); err != nil {
		return nil, fmt.Errorf("cmdb options validation failed: %w", err)
	}
	if opts.Merge != nil && opts.MergeBehavior != "" {
		return nil, fmt.Errorf("cmdb options: Merge and MergeBehavior are mutually exclusive")
	}

	policy := opts.Merge
	if policy == nil {
		var err error
		policy, err = PolicyByName(opts.MergeBehavior)
		if err != nil {
			return nil, err
		}
	}

	engine := opts.Engine
	if engine == nil {
		engine = template.New(template.StyleMustache)
	}

	return &CMDB{
		strategy: opts.Path,
		policy:   policy,
		env:      opts.Environment,
		settings: opts.Settings,
		engine:   engine,
		files:    make(map[string]loadResult),
	}, nil
}

// Get resolves data for server. With an empty item it returns the full
// merged tree; otherwise it returns the tree's value at the item key. The
// boolean reports whether a value was present. A missing item or missing
// source files are normal outcomes, not errors; only unreadable or
// malformed sources fail.
func (c *CMDB) Get(item, server string) (any, bool, error) {
	vars := c.variableContext(server)

	acc := map[string]any{}
	for _, pattern := range c.strategy.candidates(c, item, server) {
		rendered := RenderPath(pattern, vars)
		for _, path := range Expand(rendered, acc) {
			tree, err := c.loadSource(path, vars)
			if err != nil {
				return nil, false, err
			}
			if tree == nil {
				continue
			}
			// Accumulator first: later, more general sources only fill
			// gaps the specific ones left.
			merged := c.policy.Merge(acc, tree)
			m, ok := merged.(map[string]any)
			if !ok {
				// Non-mapping root; nothing to fold in.
				continue
			}
			acc = m
		}
	}

	log.Debug().
		Str("server", server).
		Str("item", item).
		Int("keys", len(acc)).
		Msg("cmdb lookup resolved")

	if item == "" {
		return acc, true, nil
	}
	v, ok := acc[item]
	if !ok {
		return nil, false, nil
	}
	return v, true, nil
}

// Exists reports whether item resolves to a value for server.
func (c *CMDB) Exists(item, server string) (bool, error) {
	_, ok, err := c.Get(item, server)
	return ok, err
}

// Stats returns cache counters for this instance.
func (c *CMDB) Stats() Stats {
	return Stats{
		CacheHits:   c.cacheHits.Load(),
		CacheMisses: c.cacheMisses.Load(),
	}
}

// variableContext seeds the template variables for one lookup: all
// configured settings, the environment name, and the server identity
// under both "server" and "hostname".
func (c *CMDB) variableContext(server string) Vars {
	vars := Vars{}
	if c.settings != nil {
		for k, v := range c.settings.Settings() {
			vars[k] = v
		}
	}
	env := ""
	if c.env != nil {
		env = c.env.Environment()
	}
	vars["environment"] = env
	vars["server"] = server
	vars["hostname"] = server
	return vars
}
