package cmdb

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// ParseError reports a malformed CMDB source. It is fatal for the whole
// lookup: a broken source is a configuration bug, not a skippable miss.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cmdb source %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// loadResult is one memo cache entry. absent marks a file that did not
// exist when first probed; the probe is never repeated.
type loadResult struct {
	tree   any
	absent bool
}

// loadSource loads and parses a single source file, memoized per instance.
//
// The raw content is templated with vars before parsing, so sources may
// reference host and environment variables in their values. A missing file
// returns (nil, nil) and is negatively memoized. A YAML error aborts the
// lookup via *ParseError.
func (c *CMDB) loadSource(path string, vars Vars) (any, error) {
	c.mu.Lock()
	if res, ok := c.files[path]; ok {
		c.mu.Unlock()
		c.cacheHits.Add(1)
		if res.absent {
			return nil, nil
		}
		return res.tree, nil
	}
	c.mu.Unlock()
	c.cacheMisses.Add(1)

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Debug().Str("path", path).Msg("cmdb source absent")
		c.memoize(path, loadResult{absent: true})
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cmdb source %s: %w", path, err)
	}

	// A missing trailing newline trips up some YAML constructs; always
	// terminate the document before templating.
	text, err := c.engine.Render(string(data)+"\n", vars)
	if err != nil {
		return nil, fmt.Errorf("templating cmdb source %s: %w", path, err)
	}

	var tree any
	if err := yaml.Unmarshal([]byte(text), &tree); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	log.Debug().Str("path", path).Msg("cmdb source loaded")
	c.memoize(path, loadResult{tree: tree})
	return tree, nil
}

func (c *CMDB) memoize(path string, res loadResult) {
	c.mu.Lock()
	c.files[path] = res
	c.mu.Unlock()
}
