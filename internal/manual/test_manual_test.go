package manual

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"codemanual/internal/config"
	"codemanual/internal/desc"
	"codemanual/internal/llm"
	"codemanual/internal/progress"
	"codemanual/internal/render"
	"codemanual/internal/scan"
)

type countingClient struct {
	mu    sync.Mutex
	calls int
	fail  error
	fake  *llm.FakeClient
}

func newCounting(fail error) *countingClient {
	return &countingClient{fail: fail, fake: llm.NewFakeClient()}
}

func (c *countingClient) Name() string { return "counting" }
func (c *countingClient) Close() error { return nil }

func (c *countingClient) Complete(ctx context.Context, prompt string) (string, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.fail != nil {
		return "", c.fail
	}
	return c.fake.Complete(ctx, prompt)
}

func (c *countingClient) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type memPublisher struct {
	key     string
	content []byte
}

func (m *memPublisher) Publish(_ context.Context, key string, content []byte) (string, error) {
	m.key, m.content = key, content
	return "bucket/" + key, nil
}

type workspace struct {
	root string
	cfg  *config.Config
}

func newWorkspace(t *testing.T, files map[string]string) workspace {
	t.Helper()
	base := t.TempDir()
	root := filepath.Join(base, "proj")
	require.NoError(t, os.MkdirAll(root, 0o755))
	for rel, body := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
	tmpl := filepath.Join(base, "template.html")
	require.NoError(t, os.WriteFile(tmpl, []byte("<html><body>"+render.Placeholder+"</body></html>"), 0o644))

	return workspace{root: root, cfg: &config.Config{
		ProjectRoot:  root,
		CachePath:    filepath.Join(base, "descriptions.json"),
		TemplatePath: tmpl,
		OutputPath:   filepath.Join(base, "out", "manual.html"),
		ExcludeExts:  scan.DefaultExcludeExts(),
		ExcludeDirs:  scan.DefaultExcludeDirs(),
		LLM:          config.LLMConfig{Fake: true, PrefixChars: desc.DefaultPrefixChars},
	}}
}

func (w workspace) output(t *testing.T) string {
	t.Helper()
	raw, err := os.ReadFile(w.cfg.OutputPath)
	require.NoError(t, err)
	return string(raw)
}

func (w workspace) cache(t *testing.T) map[string]desc.Record {
	t.Helper()
	raw, err := os.ReadFile(w.cfg.CachePath)
	require.NoError(t, err)
	var out map[string]desc.Record
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestRun_EndToEnd(t *testing.T) {
	w := newWorkspace(t, map[string]string{
		"main.ext":     "uses util",
		"lib/util.ext": "helpers",
		"logo.png":     "binary",
	})
	w.cfg.MatchStem = true
	client := newCounting(nil)
	sink := &progress.Counter{}

	res, err := Run(context.Background(), w.cfg, Deps{Client: client, Sink: sink, Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	require.Equal(t, 2, res.Files)
	require.Equal(t, 2, res.Cached)
	require.Empty(t, res.Published)
	require.Equal(t, 2, client.Calls())
	require.Equal(t, 2, sink.Total)
	require.Equal(t, 2, sink.Done)
	require.True(t, sink.Finished)

	doc := w.output(t)
	require.True(t, strings.HasPrefix(doc, "<html><body><ul>"))
	require.NotContains(t, doc, render.Placeholder)
	require.NotContains(t, doc, "logo.png")
	require.Contains(t, doc, "Placeholder description for lib/util.ext.")
	require.Contains(t, doc, "<li>main.ext</li>")
	require.Less(t, strings.Index(doc, "📁 lib"), strings.Index(doc, "📄 main.ext"))

	cached := w.cache(t)
	require.Contains(t, cached, "main.ext")
	require.Contains(t, cached, "util.ext")
}

func TestRun_SecondRunUsesCache(t *testing.T) {
	w := newWorkspace(t, map[string]string{"a.txt": "alpha", "b/c.txt": "gamma"})
	first := newCounting(nil)
	_, err := Run(context.Background(), w.cfg, Deps{Client: first})
	require.NoError(t, err)
	require.Equal(t, 2, first.Calls())
	before := w.output(t)

	second := newCounting(nil)
	_, err = Run(context.Background(), w.cfg, Deps{Client: second})
	require.NoError(t, err)
	require.Zero(t, second.Calls())
	require.Equal(t, before, w.output(t))
}

func TestRun_FailuresStayCached(t *testing.T) {
	w := newWorkspace(t, map[string]string{"x.txt": "x"})
	_, err := Run(context.Background(), w.cfg, Deps{Client: newCounting(errors.New("quota exceeded"))})
	require.NoError(t, err)
	require.Equal(t, desc.GenerateErrorPrefix+"quota exceeded", w.cache(t)["x.txt"].Description)

	healthy := newCounting(nil)
	_, err = Run(context.Background(), w.cfg, Deps{Client: healthy})
	require.NoError(t, err)
	require.Zero(t, healthy.Calls())
	require.Contains(t, w.output(t), desc.GenerateErrorPrefix+"quota exceeded")
}

func TestRun_EmptyProject(t *testing.T) {
	w := newWorkspace(t, nil)
	client := newCounting(nil)
	res, err := Run(context.Background(), w.cfg, Deps{Client: client})
	require.NoError(t, err)
	require.Zero(t, res.Files)
	require.Zero(t, client.Calls())
	require.Equal(t, "<html><body><ul></ul></body></html>", w.output(t))
}

func TestRun_OfflineNeverGenerates(t *testing.T) {
	w := newWorkspace(t, map[string]string{"a.txt": "alpha"})
	w.cfg.Offline = true
	w.cfg.LLM.Fake = false
	client := newCounting(nil)

	_, err := Run(context.Background(), w.cfg, Deps{Client: client})
	require.NoError(t, err)
	require.Zero(t, client.Calls())
	require.Contains(t, w.output(t), desc.NoDescription)
	_, err = os.Stat(w.cfg.CachePath)
	require.True(t, os.IsNotExist(err))
}

func TestRun_ConfigErrorsStopBeforeGeneration(t *testing.T) {
	cases := map[string]struct {
		mutate func(w workspace)
		want   func(t *testing.T, err error)
	}{
		"missing template": {
			mutate: func(w workspace) { w.cfg.TemplatePath = filepath.Join(w.root, "nope.html") },
			want:   func(t *testing.T, err error) { require.ErrorIs(t, err, render.ErrTemplateMissing) },
		},
		"template without placeholder": {
			mutate: func(w workspace) {
				require.NoError(t, os.WriteFile(w.cfg.TemplatePath, []byte("<html></html>"), 0o644))
			},
			want: func(t *testing.T, err error) { require.ErrorIs(t, err, render.ErrPlaceholderMissing) },
		},
		"missing root": {
			mutate: func(w workspace) { w.cfg.ProjectRoot = filepath.Join(w.root, "missing") },
			want: func(t *testing.T, err error) {
				var nf *scan.PathNotFoundError
				require.ErrorAs(t, err, &nf)
			},
		},
		"missing credential": {
			mutate: func(w workspace) { w.cfg.LLM.Fake = false },
			want:   func(t *testing.T, err error) { require.ErrorIs(t, err, config.ErrMissingCredential) },
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			w := newWorkspace(t, map[string]string{"a.txt": "alpha"})
			tc.mutate(w)
			client := newCounting(nil)
			_, err := Run(context.Background(), w.cfg, Deps{Client: client})
			require.Error(t, err)
			tc.want(t, err)
			require.Zero(t, client.Calls())
			_, statErr := os.Stat(w.cfg.OutputPath)
			require.True(t, os.IsNotExist(statErr))
		})
	}
}

func TestRun_CorruptCacheIsFatal(t *testing.T) {
	w := newWorkspace(t, map[string]string{"a.txt": "alpha"})
	require.NoError(t, os.WriteFile(w.cfg.CachePath, []byte("{not json"), 0o644))
	_, err := Run(context.Background(), w.cfg, Deps{Client: newCounting(nil)})
	require.ErrorIs(t, err, desc.ErrCorruptCache)
}

func TestRun_CancelledContextKeepsEarlierEntries(t *testing.T) {
	w := newWorkspace(t, map[string]string{"a.txt": "alpha", "b.txt": "beta"})
	ctx, cancel := context.WithCancel(context.Background())
	client := &cancelAfterFirst{cancel: cancel}

	_, err := Run(ctx, w.cfg, Deps{Client: client})
	require.ErrorIs(t, err, context.Canceled)

	cached := w.cache(t)
	require.Len(t, cached, 1)
	require.Contains(t, cached, "a.txt")
}

type cancelAfterFirst struct {
	cancel context.CancelFunc
	calls  int
}

func (c *cancelAfterFirst) Name() string { return "cancel-after-first" }
func (c *cancelAfterFirst) Close() error { return nil }

func (c *cancelAfterFirst) Complete(ctx context.Context, _ string) (string, error) {
	c.calls++
	if c.calls == 1 {
		return "first", nil
	}
	c.cancel()
	return "", ctx.Err()
}

func TestRun_Publishes(t *testing.T) {
	w := newWorkspace(t, map[string]string{"a.txt": "alpha"})
	pub := &memPublisher{}
	res, err := Run(context.Background(), w.cfg, Deps{Client: newCounting(nil), Publisher: pub})
	require.NoError(t, err)
	require.Equal(t, "proj/manual.html", pub.key)
	require.Equal(t, "bucket/proj/manual.html", res.Published)
	require.Equal(t, w.output(t), string(pub.content))
}

func TestCheck(t *testing.T) {
	w := newWorkspace(t, nil)
	got, err := Check(context.Background(), w.cfg, Deps{})
	require.NoError(t, err)
	require.Equal(t, "OK", got)

	w.cfg.LLM.Fake = false
	_, err = Check(context.Background(), w.cfg, Deps{})
	require.ErrorIs(t, err, config.ErrMissingCredential)
}

// uncountable behaves like a file store whose size query fails.
type uncountable struct {
	*desc.FileStore
}

func (uncountable) Len(context.Context) (int, error) {
	return 0, errors.New("connection reset")
}

func TestRun_CountFailureIsLoggedNotReported(t *testing.T) {
	w := newWorkspace(t, map[string]string{"a.txt": "alpha"})
	fs, err := desc.OpenFileStore(w.cfg.CachePath)
	require.NoError(t, err)
	core, logs := observer.New(zap.InfoLevel)

	res, err := Run(context.Background(), w.cfg, Deps{
		Client: newCounting(nil),
		Store:  uncountable{fs},
		Logger: zap.New(core),
	})
	require.NoError(t, err)
	require.Zero(t, res.Cached)
	require.Zero(t, logs.FilterMessage("description cache loaded").Len())

	warned := logs.FilterMessage("cannot count cached descriptions").All()
	require.Len(t, warned, 2)
	require.Equal(t, "connection reset", warned[0].ContextMap()["error"])
	require.NoError(t, fs.Close())
	require.Contains(t, w.cache(t), "a.txt")
}
