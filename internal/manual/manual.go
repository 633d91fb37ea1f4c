package manual

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"codemanual/internal/config"
	"codemanual/internal/desc"
	"codemanual/internal/llm"
	"codemanual/internal/progress"
	"codemanual/internal/publish"
	"codemanual/internal/refs"
	"codemanual/internal/render"
	"codemanual/internal/safeio"
	"codemanual/internal/scan"
	"codemanual/internal/tree"
)

// Deps lets callers (mostly tests) replace the collaborators Run would
// otherwise build from the configuration. Zero values mean "build from config".
type Deps struct {
	Client    llm.Client
	Store     desc.Store
	Publisher publish.Publisher
	Sink      progress.Sink
	Logger    *zap.Logger
}

// Result summarizes a completed run.
type Result struct {
	OutputPath string
	Files      int
	// Cached is the number of stored descriptions, zero if the store could not be counted.
	Cached int
	// Published is the remote location of the document, empty when not uploaded.
	Published string
}

// Run documents cfg.ProjectRoot and writes the manual to cfg.OutputPath.
// Configuration problems are reported before any file is read or any
// generator call is made. Descriptions generated before a failure stay cached.
func Run(ctx context.Context, cfg *config.Config, deps Deps) (*Result, error) {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	absRoot, err := scan.CheckRoot(cfg.ProjectRoot)
	if err != nil {
		return nil, err
	}
	tmpl, err := render.LoadTemplate(cfg.TemplatePath)
	if err != nil {
		return nil, err
	}
	if !strings.Contains(tmpl, render.Placeholder) {
		return nil, fmt.Errorf("%w: %s", render.ErrPlaceholderMissing, cfg.TemplatePath)
	}

	store := deps.Store
	if store == nil {
		store, err = OpenStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		defer store.Close()
	}
	if n, ok := countCached(ctx, store, log); ok {
		log.Info("description cache loaded", zap.Int("entries", n))
	}

	var gen desc.Generator
	if !cfg.Offline {
		client := deps.Client
		if client == nil {
			client, err = BuildClient(ctx, cfg, log)
			if err != nil {
				return nil, err
			}
			defer client.Close()
		}
		gen = &llm.Describer{Client: client, Project: filepath.Base(absRoot)}
	}

	entries, err := scan.Enumerate(absRoot, scan.Options{ExcludeExts: cfg.ExcludeExts, ExcludeDirs: cfg.ExcludeDirs})
	if err != nil {
		return nil, err
	}
	log.Info("project scanned", zap.String("root", absRoot), zap.Int("files", len(entries)))

	fs, err := safeio.NewSafeFS(absRoot)
	if err != nil {
		return nil, err
	}
	root := tree.Build(absRoot, entries)
	scanner, err := refs.NewScanner(fs, entries, refs.Options{
		MatchStem:    cfg.MatchStem,
		CacheEntries: cfg.ContentCacheEntries,
	}, log)
	if err != nil {
		return nil, err
	}
	cache := desc.NewCache(store, gen, fs, desc.Options{PrefixChars: cfg.LLM.PrefixChars, Logger: log})

	fragment, err := render.New(cache, scanner, deps.Sink, log).Render(ctx, root)
	if err != nil {
		return nil, err
	}
	doc, err := render.Compose(tmpl, fragment)
	if err != nil {
		return nil, err
	}
	if err := render.WriteDocument(cfg.OutputPath, doc); err != nil {
		return nil, err
	}
	log.Info("manual written", zap.String("path", cfg.OutputPath))

	res := &Result{OutputPath: cfg.OutputPath, Files: len(entries)}
	res.Cached, _ = countCached(ctx, store, log)

	pub := deps.Publisher
	if pub == nil && cfg.Artifact.Enabled {
		pub, err = publish.NewS3Publisher(publish.S3Config{
			Endpoint:  cfg.Artifact.Endpoint,
			Region:    cfg.Artifact.Region,
			AccessKey: cfg.Artifact.AccessKey,
			SecretKey: cfg.Artifact.SecretKey,
			Bucket:    cfg.Artifact.Bucket,
			UseSSL:    cfg.Artifact.UseSSL,
		})
		if err != nil {
			return res, fmt.Errorf("publish: %w", err)
		}
	}
	if pub != nil {
		loc, err := pub.Publish(ctx, publish.ObjectKey(filepath.Base(absRoot), filepath.Base(cfg.OutputPath)), []byte(doc))
		if err != nil {
			return res, fmt.Errorf("publish: %w", err)
		}
		res.Published = loc
		log.Info("manual published", zap.String("location", loc))
	}
	return res, nil
}

func countCached(ctx context.Context, store desc.Store, log *zap.Logger) (int, bool) {
	n, err := store.Len(ctx)
	if err != nil {
		log.Warn("cannot count cached descriptions", zap.Error(err))
		return 0, false
	}
	return n, true
}

// OpenStore picks the Postgres store when a DSN is configured, otherwise the
// JSON file store.
func OpenStore(ctx context.Context, cfg *config.Config) (desc.Store, error) {
	if cfg.DescriptionStoreDSN != "" {
		return desc.NewPostgresStore(ctx, cfg.DescriptionStoreDSN)
	}
	return desc.OpenFileStore(cfg.CachePath)
}

// BuildClient creates the generator client and its middleware stack. With the
// default configuration there is no timeout, no retry and no rate limit.
func BuildClient(ctx context.Context, cfg *config.Config, log *zap.Logger) (llm.Client, error) {
	var (
		base llm.Client
		err  error
	)
	if cfg.LLM.Fake {
		base = llm.NewFakeClient()
	} else {
		base, err = llm.NewGeminiClient(ctx, cfg.LLM.APIKey, cfg.LLM.Model)
		if err != nil {
			return nil, fmt.Errorf("llm: %w", err)
		}
	}
	return llm.Wrap(base,
		llm.WithLogging(log),
		llm.Retry(cfg.LLM.Retries+1, 500*time.Millisecond),
		llm.RateLimit(cfg.LLM.RPS, cfg.LLM.Burst),
		llm.Timeout(cfg.LLM.Timeout),
	), nil
}

// Check sends a minimal prompt through the configured client.
func Check(ctx context.Context, cfg *config.Config, deps Deps) (string, error) {
	if cfg.NeedsCredential() && cfg.LLM.APIKey == "" {
		return "", fmt.Errorf("%w: set %s", config.ErrMissingCredential, cfg.LLM.APIKeyEnv)
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	client := deps.Client
	if client == nil {
		var err error
		client, err = BuildClient(ctx, cfg, log)
		if err != nil {
			return "", err
		}
		defer client.Close()
	}
	return llm.Ping(ctx, client)
}
