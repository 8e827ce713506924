package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amansuggest/internal/config"
	"github.com/Aman-CERP/amansuggest/internal/daemon"
	"github.com/Aman-CERP/amansuggest/internal/suggest"
	"github.com/Aman-CERP/amansuggest/pkg/version"
)

type testEnv struct {
	configPath string
	dataRoot   string
	socketPath string
}

// newTestEnv writes a config with one project, p1, and no HTTP listener.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()
	env := &testEnv{
		configPath: filepath.Join(root, "config.yaml"),
		dataRoot:   filepath.Join(root, "data"),
		socketPath: filepath.Join("/tmp", fmt.Sprintf("amansuggest-cmd-%d.sock", time.Now().UnixNano())),
	}
	t.Cleanup(func() { _ = os.Remove(env.socketPath) })

	body := fmt.Sprintf(`data_root: %s
projects_enabled: true
projects:
  p1: {}
server:
  socket_path: %s
  pid_path: %s
  http_addr: ""
  log_level: info
`, env.dataRoot, env.socketPath, filepath.Join(root, "d.pid"))
	require.NoError(t, os.WriteFile(env.configPath, []byte(body), 0o644))
	return env
}

func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func writeSource(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

// startDaemon runs a daemon for env in-process until the test ends.
func (e *testEnv) startDaemon(t *testing.T) *daemon.Client {
	t.Helper()
	cfg, err := config.Load(e.configPath)
	require.NoError(t, err)
	dcfg := daemon.ConfigFrom(cfg)

	d, err := daemon.NewDaemon(cfg, dcfg, daemon.Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan error, 1)
	go func() { stopped <- d.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})

	client := daemon.NewClient(dcfg)
	require.Eventually(t, func() bool {
		st, err := client.Status(context.Background())
		return err == nil && st.Suggester.State == suggest.Ready
	}, 10*time.Second, 20*time.Millisecond)
	return client
}

func TestVersionCmd(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "amansuggest")
	assert.Contains(t, out, "commit")

	out, err = env.run(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, version.Version, strings.TrimSpace(out))

	out, err = env.run(t, "version", "--json")
	require.NoError(t, err)
	var info version.BuildInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, version.Version, info.Version)
}

func TestConfigPath_UsesFlag(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "config", "path")

	require.NoError(t, err)
	assert.Equal(t, env.configPath, strings.TrimSpace(out))
}

func TestConfigInit(t *testing.T) {
	// Given: no config file yet
	env := newTestEnv(t)
	require.NoError(t, os.Remove(env.configPath))

	// When: init runs
	out, err := env.run(t, "config", "init")

	// Then: the template is written and loads
	require.NoError(t, err)
	assert.Contains(t, out, "Created configuration")
	_, err = config.LoadFile(env.configPath)
	require.NoError(t, err)

	// When: init runs again without --force
	out, err = env.run(t, "config", "init")

	// Then: the file is left alone
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")

	// When: --force is given
	_, err = env.run(t, "config", "init", "--force")

	// Then: the old file is backed up
	require.NoError(t, err)
	backups, err := config.ListBackups(env.configPath)
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}

func TestConfigValidate(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")
	assert.Contains(t, out, "Rebuild schedule: 0 0 * * *")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("suggester:\n  rebuild_cron: \"every day\"\n"), 0o644))
	_, err = env.run(t, "config", "validate", bad)
	assert.Error(t, err)

	_, err = env.run(t, "config", "validate", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfigShow_JSON(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "config", "show", "--json")

	require.NoError(t, err)
	var shown struct {
		DataRoot  string   `json:"data_root"`
		Projects  []string `json:"projects"`
		Suggester struct {
			MaxResults int `json:"max_results"`
		} `json:"suggester"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &shown))
	assert.Equal(t, env.dataRoot, shown.DataRoot)
	assert.Equal(t, []string{"p1"}, shown.Projects)
	assert.Equal(t, 10, shown.Suggester.MaxResults)
}

func TestProjectCommands(t *testing.T) {
	env := newTestEnv(t)

	// When: a project is added
	out, err := env.run(t, "project", "add", "p2", "--path", "nested/p2")
	require.NoError(t, err)
	assert.Contains(t, out, "Added project p2")

	// Then: it is saved with its path and listed
	cfg, err := config.LoadFile(env.configPath)
	require.NoError(t, err)
	assert.Equal(t, "nested/p2", cfg.Projects["p2"].Path)

	out, err = env.run(t, "project", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "p1")
	assert.Contains(t, out, filepath.Join(env.dataRoot, "index", "nested", "p2"))

	// And: duplicates and unknown removals are rejected
	_, err = env.run(t, "project", "add", "p2")
	assert.Error(t, err)
	_, err = env.run(t, "project", "remove", "nope")
	assert.Error(t, err)

	// When: it is removed
	_, err = env.run(t, "project", "remove", "p2")
	require.NoError(t, err)
	cfg, err = config.LoadFile(env.configPath)
	require.NoError(t, err)
	assert.False(t, cfg.HasProject("p2"))
}

func TestCommands_WithoutDaemon(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Daemon is not running")

	out, err = env.run(t, "status", "--json")
	require.NoError(t, err)
	var st daemon.StatusResult
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.False(t, st.Running)

	out, err = env.run(t, "stop")
	require.NoError(t, err)
	assert.Contains(t, out, "Daemon is not running")

	for _, args := range [][]string{
		{"suggest", "pa"},
		{"select", "p1", "parse"},
		{"refresh"},
		{"delete", "p1"},
	} {
		_, err := env.run(t, args...)
		assert.ErrorContains(t, err, "daemon is not running", args)
	}
}

func TestIndex_Local(t *testing.T) {
	// Given: no daemon and a source tree
	env := newTestEnv(t)
	src := t.TempDir()
	writeSource(t, src, "a.go", "func parseRequest() {}\n")

	// When: indexing into p1
	out, err := env.run(t, "index", "p1", src)

	// Then: the index is written under the data root
	require.NoError(t, err)
	assert.Contains(t, out, "indexing directly")
	assert.Contains(t, out, "Indexed 1 files")
	assert.DirExists(t, filepath.Join(env.dataRoot, "index", "p1"))

	// And: unknown projects are refused
	_, err = env.run(t, "index", "nope", src)
	assert.Error(t, err)
}

func TestCommands_ThroughDaemon(t *testing.T) {
	// Given: a running daemon
	env := newTestEnv(t)
	env.startDaemon(t)
	src := t.TempDir()
	writeSource(t, src, "a.go", "func parseRequest(req string) {}\n")

	// When: indexing through the CLI
	out, err := env.run(t, "index", "p1", src, "--json")
	require.NoError(t, err)
	assert.NotContains(t, out, "indexing directly")

	// Then: suggestions come back
	out, err = env.run(t, "suggest", "pars", "-p", "p1")
	require.NoError(t, err)
	assert.Contains(t, out, "parse")

	out, err = env.run(t, "suggest", "pars", "--json")
	require.NoError(t, err)
	var reply struct {
		Suggestions []struct {
			Phrase string `json:"phrase"`
		} `json:"suggestions"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &reply))
	assert.NotEmpty(t, reply.Suggestions)

	// And: maintenance commands succeed
	out, err = env.run(t, "select", "p1", "parserequest", "-w", "3")
	require.NoError(t, err)
	assert.Contains(t, out, `Recorded "parserequest" in p1`)

	out, err = env.run(t, "refresh", "p1")
	require.NoError(t, err)
	assert.Contains(t, out, "Refreshed p1")

	_, err = env.run(t, "refresh", "nope")
	assert.Error(t, err)

	out, err = env.run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Daemon is running")
	assert.Contains(t, out, "ready")

	out, err = env.run(t, "delete", "p1")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted suggestion data for p1")
}

func TestDoctor(t *testing.T) {
	// Given: p1 configured but never indexed
	env := newTestEnv(t)

	// When: running the checks as JSON
	out, err := env.run(t, "doctor", "--json")

	// Then: the data root is created and p1 warns
	if err != nil {
		t.Skipf("host fails a required check: %v", err)
	}
	var results []struct {
		Name   string `json:"name"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	assert.DirExists(t, env.dataRoot)
	require.NotEmpty(t, results)
	last := results[len(results)-1]
	assert.Equal(t, "index:p1", last.Name)
	assert.Equal(t, "WARN", last.Status)
}
