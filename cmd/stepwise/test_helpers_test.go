package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"stepwise/internal/config"
	"stepwise/internal/testsupport"
)

// fakeProxy stands in for the generation proxy and the model listing API.
type fakeProxy struct {
	mu       sync.Mutex
	text     string
	status   int
	body     string
	models   []string
	tokens   int
	lastKeys []string
}

func (p *fakeProxy) reply(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.text, p.status, p.body = text, 0, ""
}

func (p *fakeProxy) fail(status int, body string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status, p.body = status, body
}

func (p *fakeProxy) setModels(models ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.models = models
}

func (p *fakeProxy) setTokens(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokens = n
}

func (p *fakeProxy) keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.lastKeys...)
}

func (p *fakeProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := r.Header.Get("X-Api-Key")
	if key == "" {
		key = r.URL.Query().Get("key")
	}
	p.lastKeys = append(p.lastKeys, key)
	if p.status != 0 {
		http.Error(w, p.body, p.status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/api/generate":
		_ = json.NewEncoder(w).Encode(map[string]string{"text": p.text})
	case "/api/count-tokens":
		_ = json.NewEncoder(w).Encode(map[string]int{"totalTokens": p.tokens})
	case "/v1beta/models":
		models := make([]map[string]string, 0, len(p.models))
		for _, m := range p.models {
			models = append(models, map[string]string{"name": "models/" + m})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"models": models})
	default:
		http.NotFound(w, r)
	}
}

type cliTestEnv struct {
	cfg        *config.Config
	proxy      *fakeProxy
	configPath string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()
	t.Setenv("STEPWISE_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("STEPWISE_PROXY_URL", "")

	proxy := &fakeProxy{}
	server := httptest.NewServer(proxy)
	t.Cleanup(server.Close)

	opts = append([]testsupport.ConfigOption{testsupport.WithProxyURL(server.URL)}, opts...)
	cfg := testsupport.NewConfig(t, opts...)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "stepwise.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, proxy: proxy, configPath: configPath}
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return runCLI(t, args, e.configPath, "")
}

func (e *cliTestEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	stdout, stderr, err := e.run(t, args...)
	if err != nil {
		t.Fatalf("stepwise %s: %v\nstderr: %s", strings.Join(args, " "), err, stderr)
	}
	return stdout
}

func runCLI(t *testing.T, args []string, configPath, stdin string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q

[ai]
proxy_url = %q
api_base_url = %q
api_key = %q
retry_attempts = 1
retry_base_delay_ms = 1
retry_max_delay_ms = 2

[frames]
ffmpeg_binary = %q
ffprobe_binary = %q

[store]
persist_debounce_ms = 1

[logging]
level = "error"
`,
		cfg.Paths.DataDir,
		cfg.Paths.LogDir,
		cfg.AI.ProxyURL,
		cfg.AI.APIBaseURL,
		cfg.AI.APIKey,
		cfg.Frames.FFmpegBinary,
		cfg.Frames.FFprobeBinary,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
