package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	supporterr "supportbot/pkg/errors"
)

const testPolicies = `Refund policy: missing items are refunded within 24 hours.

Cancellation is free until the restaurant accepts the order.

Couriers deliver between 10am and 11pm every day.`

const testOrders = `order_id,customer,status,eta
A100,Dana,delivered,
B200,Lee,on the way,12 minutes
`

// execute runs the CLI against a throwaway data directory and a config
// path that does not exist, so built-in defaults apply.
func execute(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	out := new(bytes.Buffer)
	root.SetOut(out)
	root.SetErr(new(bytes.Buffer))
	base := []string{"--config", filepath.Join(dataDir, "absent.yaml"), "--data-dir", dataDir}
	root.SetArgs(append(base, args...))
	err := root.Execute()
	return out.String(), err
}

func newDataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "support_docs.txt"), []byte(testPolicies), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "orders.csv"), []byte(testOrders), 0o644))
	return dir
}

func TestRootCommand_Help(t *testing.T) {
	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetArgs([]string{"--help"})

	require.NoError(t, root.Execute())
	for _, sub := range []string{"build", "query", "orders", "chat", "version", "--data-dir"} {
		assert.Contains(t, buf.String(), sub)
	}
}

func TestVersionCommand(t *testing.T) {
	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "supportbot dev")
}

func TestBuildThenQuery(t *testing.T) {
	dir := newDataDir(t)

	out, err := execute(t, dir, "build")
	require.NoError(t, err)
	assert.Contains(t, out, "3 paragraphs indexed with hashed-384")
	assert.FileExists(t, filepath.Join(dir, "faiss_index.bin"))
	assert.FileExists(t, filepath.Join(dir, "faiss_meta.json"))

	out, err = execute(t, dir, "query", "-k", "1", "refund", "for", "missing", "items")
	require.NoError(t, err)
	assert.Contains(t, out, "[1] distance=")
	assert.Contains(t, out, "Refund policy")
	assert.NotContains(t, out, "[2]")
}

func TestBuild_RecoversCorruptIndex(t *testing.T) {
	dir := newDataDir(t)
	_, err := execute(t, dir, "build")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "faiss_index.bin"), []byte("garbage"), 0o644))

	out, err := execute(t, dir, "build")
	require.NoError(t, err)
	assert.Contains(t, out, "3 paragraphs indexed")

	out, err = execute(t, dir, "query", "refund")
	require.NoError(t, err)
	assert.Contains(t, out, "Refund policy")
}

func TestQuery_BuildsWhenArtifactsMissing(t *testing.T) {
	dir := newDataDir(t)

	out, err := execute(t, dir, "query", "--prompt", "cancellation")
	require.NoError(t, err)
	assert.Contains(t, out, "[3]")
	assert.Contains(t, out, "No order provided.")
	assert.FileExists(t, filepath.Join(dir, "faiss_index.bin"))
}

func TestQuery_InvalidTopK(t *testing.T) {
	_, err := execute(t, newDataDir(t), "query", "-k", "0", "refund")
	require.Error(t, err)
	assert.True(t, supporterr.IsInvalidInput(err))
}

func TestQuery_MissingCorpus(t *testing.T) {
	_, err := execute(t, t.TempDir(), "query", "refund")
	require.Error(t, err)
	assert.True(t, supporterr.IsCorpusUnavailable(err))
}

func TestOrdersImportAndShow(t *testing.T) {
	dir := newDataDir(t)

	out, err := execute(t, dir, "orders", "import")
	require.NoError(t, err)
	assert.Contains(t, out, "2 orders imported")

	out, err = execute(t, dir, "orders", "show", "B200")
	require.NoError(t, err)
	assert.Equal(t, "order_id: B200\ncustomer: Lee\nstatus: on the way\neta: 12 minutes\n", out)

	_, err = execute(t, dir, "orders", "show", "Z999")
	require.Error(t, err)
	assert.True(t, supporterr.IsInvalidInput(err))

	out, err = execute(t, dir, "query", "--order", "A100", "refund")
	require.NoError(t, err)
	assert.Contains(t, out, "Order info:\norder_id: A100\ncustomer: Dana\nstatus: delivered")
}

func TestOrdersShow_BeforeImport(t *testing.T) {
	_, err := execute(t, newDataDir(t), "orders", "show", "A100")
	require.Error(t, err)
	assert.True(t, supporterr.IsInvalidInput(err))
}
