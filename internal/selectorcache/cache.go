// File: internal/selectorcache/cache.go
// Description: The durable (scenario, task) → locator store. A hit that still
// validates against the live page costs nothing; everything else costs one
// model call. Persistence is read-merge-write at scenario granularity: two
// processes writing disjoint scenarios both survive, two writing the same
// scenario can lose one update. That race is documented, not fixed here.
package selectorcache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Entry is one cached resolution.
type Entry struct {
	Task     string `json:"task"`
	Selector string `json:"selector"`
}

// scenarioSteps is the on-disk shape of one scenario's entries.
type scenarioSteps struct {
	Steps []Entry `json:"steps"`
}

// ResolutionError reports that neither the cache nor the model produced a
// usable locator for a task.
type ResolutionError struct {
	Task string
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("failed to resolve a locator for task %q: %v", e.Task, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// ValidationError reports that a locator does not match the element shape
// the task requires.
type ValidationError struct {
	Locator string
	Reason  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("locator %q failed validation: %s", e.Locator, e.Reason)
}

// Resolver obtains a fresh locator from the model.
type Resolver interface {
	Resolve(ctx context.Context, task, snapshot string) (string, error)
}

// SnapshotFunc captures the current page markup for a model request.
type SnapshotFunc func(ctx context.Context) (string, error)

// Validator checks a locator against the live page: at least one match, plus
// the dropdown shape check when the task selects from a dropdown.
type Validator func(ctx context.Context, loc string) error

// Cache is one scenario run's view of a selector cache file.
type Cache struct {
	path     string
	resolver Resolver
	snapshot SnapshotFunc
	logger   *zap.Logger

	mu     sync.Mutex
	loaded map[string][]Entry
	// touched tracks which scenarios this instance mutated; only those are
	// merged over the on-disk content at write time.
	touched map[string]bool
}

// New loads the cache file fully into memory. A missing, unreadable or
// corrupt file degrades to an empty cache with a warning.
func New(path string, resolver Resolver, snapshot SnapshotFunc, logger *zap.Logger) *Cache {
	c := &Cache{
		path:     path,
		resolver: resolver,
		snapshot: snapshot,
		logger:   logger.Named("selector_cache"),
		loaded:   make(map[string][]Entry),
		touched:  make(map[string]bool),
	}
	c.loaded = c.readFile()
	return c
}

func (c *Cache) readFile() map[string][]Entry {
	out := make(map[string][]Entry)
	raw, err := os.ReadFile(c.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			c.logger.Warn("Cache file unreadable, starting empty", zap.String("path", c.path), zap.Error(err))
		}
		return out
	}
	var shaped map[string]scenarioSteps
	if err := json.Unmarshal(raw, &shaped); err != nil {
		c.logger.Warn("Cache file corrupt, starting empty", zap.String("path", c.path), zap.Error(err))
		return out
	}
	for name, sc := range shaped {
		out[name] = sc.Steps
	}
	return out
}

// Lookup returns the cached locator for (scenario, task) without touching
// the page or the model.
func (c *Cache) Lookup(scenario, task string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.loaded[scenario] {
		if e.Task == task {
			return e.Selector, true
		}
	}
	return "", false
}

// Resolve returns a locator for the task. A validated cache hit makes no
// model call. On a miss or a failed validation it resolves through the model
// exactly once, re-validates, stores and persists the result.
func (c *Cache) Resolve(ctx context.Context, scenario, task string, validate Validator) (string, error) {
	if cached, ok := c.Lookup(scenario, task); ok {
		if err := validate(ctx, cached); err == nil {
			c.logger.Debug("Cache hit",
				zap.String("scenario", scenario),
				zap.String("task", task),
			)
			return cached, nil
		} else {
			c.logger.Info("Cached locator no longer validates, re-resolving",
				zap.String("task", task),
				zap.String("locator", cached),
				zap.Error(err),
			)
		}
	}

	snapshot, err := c.snapshot(ctx)
	if err != nil {
		return "", &ResolutionError{Task: task, Err: fmt.Errorf("failed to snapshot page: %w", err)}
	}

	fresh, err := c.resolver.Resolve(ctx, task, snapshot)
	if err != nil {
		return "", &ResolutionError{Task: task, Err: err}
	}
	if strings.TrimSpace(fresh) == "" {
		return "", &ResolutionError{Task: task, Err: fmt.Errorf("model returned an empty locator")}
	}

	// A freshly resolved locator gets no second chance.
	if err := validate(ctx, fresh); err != nil {
		return "", &ResolutionError{Task: task, Err: err}
	}

	c.put(scenario, task, fresh)
	if err := c.persist(); err != nil {
		// The resolution itself succeeded; a failed write only costs the
		// next run a model call.
		c.logger.Warn("Failed to persist selector cache", zap.String("path", c.path), zap.Error(err))
	}
	return fresh, nil
}

// put upserts the entry: replace when the task exists, append otherwise.
func (c *Cache) put(scenario, task, selector string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries := c.loaded[scenario]
	for i, e := range entries {
		if e.Task == task {
			entries[i].Selector = selector
			c.touched[scenario] = true
			return
		}
	}
	c.loaded[scenario] = append(entries, Entry{Task: task, Selector: selector})
	c.touched[scenario] = true
}

// persist merges this instance's touched scenarios over a fresh read of the
// file and rewrites it whole. Other writers appending other scenarios in the
// meantime survive; a racing writer to the same scenario may be clobbered.
func (c *Cache) persist() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	onDisk := c.readFile()
	for name := range c.touched {
		onDisk[name] = c.loaded[name]
	}

	shaped := make(map[string]scenarioSteps, len(onDisk))
	for name, entries := range onDisk {
		shaped[name] = scenarioSteps{Steps: entries}
	}

	raw, err := json.MarshalIndent(shaped, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cache file: %w", err)
	}
	if dir := filepath.Dir(c.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	// Write-then-rename keeps the file structurally whole under racing
	// writers; it does not prevent one writer's merge from being replaced.
	tmp, err := os.CreateTemp(filepath.Dir(c.path), filepath.Base(c.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create cache temp file: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close cache temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace cache file: %w", err)
	}
	return nil
}

// PathFor derives the cache file path for a feature file: the feature's stem
// plus a short content hash of its absolute path, so unrelated suites never
// share a file.
func PathFor(dir, featurePath string) string {
	abs, err := filepath.Abs(featurePath)
	if err != nil {
		abs = featurePath
	}
	sum := sha1.Sum([]byte(abs))
	stem := strings.TrimSuffix(filepath.Base(featurePath), filepath.Ext(featurePath))
	return filepath.Join(dir, fmt.Sprintf("%s-%s.selectors.json", stem, hex.EncodeToString(sum[:4])))
}
