package desc

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"codemanual/internal/safeio"
	"codemanual/internal/scan"
)

const (
	// DefaultPrefixChars is how much of a file is sent to the generator.
	DefaultPrefixChars = 1000

	// GenerateErrorPrefix starts the description stored when generation fails.
	GenerateErrorPrefix = "Error generating description: "
	// ReadErrorPrefix starts the description shown for files that cannot be read.
	ReadErrorPrefix = "Error reading file: "
	// NoDescription is shown for uncached files when generation is disabled.
	NoDescription = "No description available."
)

// Generator produces a short description for a file from its leading text.
type Generator interface {
	Describe(ctx context.Context, text, path string) (string, error)
}

// Options configures a Cache.
type Options struct {
	// PrefixChars truncates file text before it is sent to the generator.
	PrefixChars int
	Logger      *zap.Logger
}

// Cache is a write-through description cache keyed by bare file name.
// Two files sharing a name in different directories share one entry.
type Cache struct {
	store  Store
	gen    Generator
	fs     *safeio.SafeFS
	prefix int
	log    *zap.Logger
}

// NewCache binds store and gen. A nil gen disables generation: misses render
// NoDescription and leave the store untouched.
func NewCache(store Store, gen Generator, fs *safeio.SafeFS, opts Options) *Cache {
	prefix := opts.PrefixChars
	if prefix <= 0 {
		prefix = DefaultPrefixChars
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{store: store, gen: gen, fs: fs, prefix: prefix, log: logger}
}

// GetOrGenerate returns the cached description for entry's bare name, or
// generates, stores and flushes a new one. Generator failures are stored as
// GenerateErrorPrefix + reason like any other description; only store
// failures and context cancellation are returned as errors.
func (c *Cache) GetOrGenerate(ctx context.Context, entry scan.FileEntry) (string, error) {
	name := entry.Name()
	rec, ok, err := c.store.Get(ctx, name)
	if err != nil {
		return "", fmt.Errorf("desc: get %s: %w", name, err)
	}
	if ok {
		return rec.Description, nil
	}
	if c.gen == nil {
		return NoDescription, nil
	}

	text, err := c.fs.ReadPrefix(entry.RelPath, c.prefix)
	if err != nil {
		c.log.Warn("cannot read file for description", zap.String("path", entry.RelPath), zap.Error(err))
		return ReadErrorPrefix + err.Error(), nil
	}

	c.log.Debug("cache miss, generating description", zap.String("name", name), zap.String("path", entry.RelPath))
	description, err := c.gen.Describe(ctx, text, entry.RelPath)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		c.log.Warn("description generation failed", zap.String("path", entry.RelPath), zap.Error(err))
		description = GenerateErrorPrefix + err.Error()
	}

	if err := c.store.Put(ctx, name, Record{Description: description}); err != nil {
		return "", fmt.Errorf("desc: put %s: %w", name, err)
	}
	if err := c.store.Flush(ctx); err != nil {
		return "", fmt.Errorf("desc: flush: %w", err)
	}
	return description, nil
}
