package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/deploymenttheory/n8n-workflow-deployer/internal/common/errors"
	"github.com/deploymenttheory/n8n-workflow-deployer/internal/config"
)

// isolate clears the environment the command reads.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv(config.HostEnv, "")
	t.Setenv(config.APIKeyEnv, "")
	t.Setenv("N8N_DEPLOYER_N8N_HOST", "")
	t.Setenv("N8N_DEPLOYER_N8N_API_KEY", "")
	t.Setenv("N8N_DEPLOYER_TRACING_ENABLED", "")
	t.Setenv("N8N_DEPLOYER_TRACING_ENDPOINT", "")
	t.Setenv("N8N_DEPLOYER_TRACING_SAMPLE_RATIO", "")
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	rootCmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)

	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestVersion(t *testing.T) {
	isolate(t)

	out, _, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "n8n-deployer v"+Version+"\n", out)
}

func TestMissingCredentialsFailsBeforeAnyWork(t *testing.T) {
	isolate(t)

	_, stderr, err := run(t, "--dir", t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfigMissing))
	assert.Contains(t, stderr, "ERROR: ")
	assert.Contains(t, stderr, "N8N_HOST or N8N_API_KEY")

	var reported *reportedError
	assert.True(t, errors.As(err, &reported), "the message is printed once")
}

func TestEmptyDirectorySucceedsWithoutNetwork(t *testing.T) {
	isolate(t)
	// Nothing listens here; any request would fail the run.
	t.Setenv(config.HostEnv, "127.0.0.1:1")
	t.Setenv(config.APIKeyEnv, "key")

	out, _, err := run(t, "deploy", "--dir", filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Contains(t, out, "does not exist")
}

func TestInvalidLogFormat(t *testing.T) {
	isolate(t)

	_, _, err := run(t, "--log-format", "xml", "--dir", t.TempDir())
	assert.True(t, errors.Is(err, errors.ErrInvalidConfig))
}

func TestDeployEndToEnd(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies []map[string]interface{}
		paths  []string
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()

		assert.Equal(t, "key", r.Header.Get("X-N8N-API-KEY"))
		paths = append(paths, r.Method+" "+r.URL.Path)

		switch r.Method {
		case http.MethodGet:
			if r.URL.Query().Get("name") == "B" {
				_, _ = w.Write([]byte(`{"data":[{"id":"42","name":"B"}]}`))
				return
			}
			_, _ = w.Write([]byte(`{"data":[]}`))
		case http.MethodPost:
			var body map[string]interface{}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			bodies = append(bodies, body)
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":"7"}`))
		case http.MethodPut:
			_, _ = w.Write([]byte(`{"id":"42"}`))
		}
	}))
	defer srv.Close()

	isolate(t)
	t.Setenv(config.HostEnv, srv.URL)
	t.Setenv(config.APIKeyEnv, "key")

	dir := t.TempDir()
	writeFile(t, dir, "a.json", `{"name":"A","nodes":[],"connections":{},"active":true}`)
	writeFile(t, dir, "b.json", `{"name":"B","nodes":[],"connections":{}}`)
	writeFile(t, dir, "c.json", `{"name":`)

	out, stderr, err := run(t, "--dir", dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrDeploymentFailed))

	assert.Contains(t, out, "Created: a")
	assert.Contains(t, out, "Updated: b")
	assert.Contains(t, out, " Created: 1\n Updated: 1\n Errors: 1\n")
	assert.Contains(t, out, " - c: Invalid JSON in c")
	assert.Contains(t, stderr, "Error c: Invalid JSON in c")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		"GET /api/v1/workflows",
		"POST /api/v1/workflows",
		"GET /api/v1/workflows",
		"PUT /api/v1/workflows/42",
	}, paths)
	require.Len(t, bodies, 1)
	assert.Equal(t, false, bodies[0]["active"])
}

func TestExecutePrintsUnreportedErrors(t *testing.T) {
	isolate(t)

	err := Execute(context.Background(), []string{"--no-such-flag"})
	assert.Error(t, err)
}

func TestTracingFlagInstallsProvider(t *testing.T) {
	isolate(t)
	t.Setenv(config.HostEnv, "127.0.0.1:1")
	t.Setenv(config.APIKeyEnv, "key")
	// Nothing is sampled, so the final flush has nothing to send
	t.Setenv("N8N_DEPLOYER_TRACING_SAMPLE_RATIO", "0")

	before := otel.GetTracerProvider()
	defer otel.SetTracerProvider(before)

	err := Execute(context.Background(), []string{
		"--dir", t.TempDir(),
		"--tracing",
		"--tracing-endpoint", "127.0.0.1:1",
	})
	require.NoError(t, err)

	assert.True(t, config.Instance.Tracing.Enabled)
	assert.Equal(t, "127.0.0.1:1", config.Instance.Tracing.Endpoint)
	_, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	assert.True(t, ok)
}

func TestInvalidTracingSampleRatio(t *testing.T) {
	isolate(t)
	t.Setenv(config.HostEnv, "127.0.0.1:1")
	t.Setenv(config.APIKeyEnv, "key")
	t.Setenv("N8N_DEPLOYER_TRACING_SAMPLE_RATIO", "2")

	_, _, err := run(t, "--dir", t.TempDir(), "--tracing")
	assert.True(t, errors.Is(err, errors.ErrInvalidConfig))
}
