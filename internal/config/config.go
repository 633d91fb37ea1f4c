package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultAPIKeyEnv names the environment variable holding the generator credential.
const DefaultAPIKeyEnv = "GEMINI_API_KEY"

var (
	ErrMissingRoot       = errors.New("config: project root is required")
	ErrMissingCredential = errors.New("config: generator credential is not set")
)

type Config struct {
	ProjectRoot string

	CachePath    string
	TemplatePath string
	OutputPath   string

	ExcludeExts []string
	ExcludeDirs []string
	MatchStem   bool
	// ContentCacheEntries bounds the reference scanner's in-memory file cache.
	ContentCacheEntries int

	// Offline renders cached descriptions only and never calls the generator.
	Offline bool
	Verbose bool
	Quiet   bool

	// DescriptionStoreDSN selects the Postgres description store when set.
	DescriptionStoreDSN string

	LLM      LLMConfig
	Artifact ArtifactConfig
}

type LLMConfig struct {
	APIKeyEnv   string
	APIKey      string
	Model       string
	PrefixChars int
	Timeout     time.Duration
	Retries     int
	RPS         float64
	Burst       int
	// Fake swaps the remote model for a deterministic local stub.
	Fake bool
}

type ArtifactConfig struct {
	Enabled   bool
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	keyEnv := firstNonEmpty(strings.TrimSpace(os.Getenv("MANUAL_API_KEY_ENV")), DefaultAPIKeyEnv)
	timeout, err := envDuration("MANUAL_LLM_TIMEOUT", 0)
	if err != nil {
		return nil, err
	}
	retries, err := envInt("MANUAL_LLM_RETRIES", 0)
	if err != nil {
		return nil, err
	}
	rps, err := envFloat("MANUAL_LLM_RPS", 0)
	if err != nil {
		return nil, err
	}
	burst, err := envInt("MANUAL_LLM_BURST", 1)
	if err != nil {
		return nil, err
	}
	prefix, err := envInt("MANUAL_PREFIX_CHARS", 1000)
	if err != nil {
		return nil, err
	}
	contentCache, err := envInt("MANUAL_CONTENT_CACHE", 256)
	if err != nil {
		return nil, err
	}

	return &Config{
		CachePath:           firstNonEmpty(strings.TrimSpace(os.Getenv("MANUAL_CACHE_PATH")), "descriptions.json"),
		TemplatePath:        firstNonEmpty(strings.TrimSpace(os.Getenv("MANUAL_TEMPLATE_PATH")), "template.html"),
		OutputPath:          firstNonEmpty(strings.TrimSpace(os.Getenv("MANUAL_OUTPUT_PATH")), "output/manual.html"),
		ExcludeExts:         envList("MANUAL_EXCLUDE_EXTS", []string{".png", ".jpg", ".jpeg", ".gif", ".ico"}),
		ExcludeDirs:         envList("MANUAL_EXCLUDE_DIRS", []string{".git"}),
		MatchStem:           envBool("MANUAL_MATCH_STEM", false),
		ContentCacheEntries: contentCache,
		DescriptionStoreDSN: strings.TrimSpace(os.Getenv("DESCRIPTION_STORE_PG_DSN")),
		LLM: LLMConfig{
			APIKeyEnv:   keyEnv,
			APIKey:      strings.TrimSpace(os.Getenv(keyEnv)),
			Model:       firstNonEmpty(strings.TrimSpace(os.Getenv("MANUAL_MODEL")), "gemma-3-27b-it"),
			PrefixChars: prefix,
			Timeout:     timeout,
			Retries:     retries,
			RPS:         rps,
			Burst:       burst,
			Fake:        envBool("MANUAL_FAKE_LLM", false),
		},
		Artifact: loadArtifactConfig(),
	}, nil
}

// Validate reports configuration errors that must stop the run before any
// file is read or any generator call is made.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ProjectRoot) == "" {
		return ErrMissingRoot
	}
	if c.NeedsCredential() && strings.TrimSpace(c.LLM.APIKey) == "" {
		return fmt.Errorf("%w: set %s", ErrMissingCredential, c.LLM.APIKeyEnv)
	}
	if strings.TrimSpace(c.TemplatePath) == "" {
		return errors.New("config: template path is required")
	}
	if strings.TrimSpace(c.OutputPath) == "" {
		return errors.New("config: output path is required")
	}
	if strings.TrimSpace(c.CachePath) == "" && c.DescriptionStoreDSN == "" {
		return errors.New("config: cache path is required")
	}
	return nil
}

// NeedsCredential reports whether the configured run talks to the remote model.
func (c *Config) NeedsCredential() bool {
	return !c.Offline && !c.LLM.Fake
}

func loadArtifactConfig() ArtifactConfig {
	endpoint := strings.TrimSpace(os.Getenv("ARTIFACT_S3_ENDPOINT"))
	return ArtifactConfig{
		Enabled:   endpoint != "",
		Endpoint:  endpoint,
		Region:    firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_REGION")), "us-east-1"),
		AccessKey: firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_ACCESS_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_USER"))),
		SecretKey: firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_SECRET_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD"))),
		Bucket:    firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_BUCKET")), "codemanual"),
		UseSSL:    envBool("ARTIFACT_S3_USE_SSL", true),
	}
}

func envList(key string, def []string) []string {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

func envInt(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return v, nil
}

func envFloat(key string, def float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return v, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return v, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
