package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCLI executes the CLI with args and returns combined output.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// newTestDataDir returns a temp data dir with the generative model and
// rerank disabled, so commands never wait on a model service.
func newTestDataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfgYAML := "variants:\n  use_generator: false\nsearch:\n  rerank: false\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(cfgYAML), 0o644))
	return dir
}

func TestRootCmd_Help(t *testing.T) {
	out, err := runCLI(t, "--help")
	require.NoError(t, err)

	assert.Contains(t, out, "kensaku")
	assert.Contains(t, out, "ingest")
	assert.Contains(t, out, "search")
	assert.Contains(t, out, "documents")
	assert.Contains(t, out, "stats")
}

func TestRootCmd_UnknownCommand(t *testing.T) {
	_, err := runCLI(t, "no-such-command")
	assert.Error(t, err)
}

func TestSearchCmd_RequiresTenant(t *testing.T) {
	dir := newTestDataDir(t)
	_, err := runCLI(t, "--data-dir", dir, "search", "query")
	assert.Error(t, err)
}

func TestIngestAndSearch_EndToEnd(t *testing.T) {
	dir := newTestDataDir(t)

	docPath := filepath.Join(dir, "manual.txt")
	require.NoError(t, os.WriteFile(docPath,
		[]byte("ワイヤレスマウスのおすすめ設定。電池は単三電池を使用します。"), 0o644))

	out, err := runCLI(t, "--data-dir", dir, "ingest", "--tenant", "acme", docPath)
	require.NoError(t, err)
	assert.Contains(t, out, "manual.txt")
	assert.Contains(t, out, "1 chunks")

	out, err = runCLI(t, "--data-dir", dir, "search", "--tenant", "acme", "マウス")
	require.NoError(t, err)
	assert.Contains(t, out, "manual.txt")

	// Another tenant sees nothing.
	out, err = runCLI(t, "--data-dir", dir, "search", "--tenant", "other", "マウス")
	require.NoError(t, err)
	assert.Contains(t, out, "No results")
}

func TestSearchCmd_JSONOutput(t *testing.T) {
	dir := newTestDataDir(t)

	docPath := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(docPath, []byte("wireless mouse setup notes"), 0o644))

	_, err := runCLI(t, "--data-dir", dir, "ingest", "--tenant", "acme", docPath)
	require.NoError(t, err)

	out, err := runCLI(t, "--data-dir", dir, "search", "--tenant", "acme", "--format", "json", "mouse")
	require.NoError(t, err)

	var resp struct {
		Results []struct {
			DocumentID string  `json:"document_id"`
			Score      float64 `json:"score"`
		} `json:"results"`
		Diagnostics struct {
			StrategiesRun []string `json:"strategies_run"`
		} `json:"diagnostics"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "notes.txt", resp.Results[0].DocumentID)
	assert.NotEmpty(t, resp.Diagnostics.StrategiesRun)
}

func TestDocumentsCmd_ListAndRemove(t *testing.T) {
	dir := newTestDataDir(t)

	docPath := filepath.Join(dir, "faq.txt")
	require.NoError(t, os.WriteFile(docPath, []byte("frequently asked questions about billing"), 0o644))

	_, err := runCLI(t, "--data-dir", dir, "ingest", "--tenant", "acme", docPath)
	require.NoError(t, err)

	out, err := runCLI(t, "--data-dir", dir, "documents", "list", "--tenant", "acme")
	require.NoError(t, err)
	assert.Contains(t, out, "faq.txt")
	assert.Contains(t, out, "active")

	_, err = runCLI(t, "--data-dir", dir, "documents", "deactivate", "--tenant", "acme", "faq.txt")
	require.NoError(t, err)

	out, err = runCLI(t, "--data-dir", dir, "search", "--tenant", "acme", "billing")
	require.NoError(t, err)
	assert.Contains(t, out, "No results")

	_, err = runCLI(t, "--data-dir", dir, "documents", "remove", "--tenant", "acme", "faq.txt")
	require.NoError(t, err)

	out, err = runCLI(t, "--data-dir", dir, "documents", "list", "--tenant", "acme")
	require.NoError(t, err)
	assert.Contains(t, out, "No documents")
}

func TestStatsCmd(t *testing.T) {
	dir := newTestDataDir(t)

	docPath := filepath.Join(dir, "doc.txt")
	require.NoError(t, os.WriteFile(docPath, []byte("inventory status report"), 0o644))

	_, err := runCLI(t, "--data-dir", dir, "ingest", "--tenant", "acme", docPath)
	require.NoError(t, err)

	out, err := runCLI(t, "--data-dir", dir, "stats", "--tenant", "acme")
	require.NoError(t, err)
	assert.Contains(t, out, "Documents: 1")
	assert.Contains(t, out, "Chunks: 1")
}

func TestVersionCmd(t *testing.T) {
	dir := newTestDataDir(t)

	out, err := runCLI(t, "--data-dir", dir, "version", "--short")
	require.NoError(t, err)
	assert.Contains(t, out, "dev")

	out, err = runCLI(t, "--data-dir", dir, "version", "--json")
	require.NoError(t, err)

	var info map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "dev", info["version"])
}

func TestIngestCmd_UnknownHint(t *testing.T) {
	dir := newTestDataDir(t)
	docPath := filepath.Join(dir, "doc.txt")
	require.NoError(t, os.WriteFile(docPath, []byte("text"), 0o644))

	_, err := runCLI(t, "--data-dir", dir, "ingest", "--tenant", "acme", "--hint", "bogus", docPath)
	assert.Error(t, err)
}
