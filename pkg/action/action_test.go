package action

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePlaybookBinary writes a shell script that stands in for ansible-playbook
func fakePlaybookBinary(t *testing.T, dir, script string) string {
	t.Helper()
	path := filepath.Join(dir, "fake-ansible")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func testExecutor(t *testing.T, script string) *Executor {
	t.Helper()
	dir := t.TempDir()
	e := New(dir)
	e.Binary = fakePlaybookBinary(t, dir, script)
	e.Timeout = 2 * time.Second
	return e
}

func TestRunSuccess(t *testing.T) {
	e := testExecutor(t, `echo "PLAY RECAP: ok=3 failed=0"`)

	ok, output := e.Run(context.Background(), "- hosts: local\n  tasks: []\n")

	assert.True(t, ok)
	assert.Contains(t, output, "PLAY RECAP")

	written, err := os.ReadFile(e.PlaybookPath)
	require.NoError(t, err)
	assert.Contains(t, string(written), "hosts: local")
}

func TestRunFailureReturnsOutput(t *testing.T) {
	e := testExecutor(t, `echo "fatal: unreachable"; exit 2`)

	ok, output := e.Run(context.Background(), "- hosts: local\n")

	assert.False(t, ok)
	assert.Contains(t, output, "fatal: unreachable")
}

func TestRunEmptyPlaybookRejected(t *testing.T) {
	e := testExecutor(t, `echo should-not-run`)

	ok, output := e.Run(context.Background(), "   \n")

	assert.False(t, ok)
	assert.Contains(t, output, "no playbook")
	assert.NoFileExists(t, e.PlaybookPath)
}

func TestRunTimeoutKillsProcessGroup(t *testing.T) {
	e := testExecutor(t, `echo started; sleep 30`)
	e.Timeout = 200 * time.Millisecond

	start := time.Now()
	ok, output := e.Run(context.Background(), "- hosts: local\n")

	assert.False(t, ok)
	assert.Contains(t, output, "started")
	assert.Contains(t, output, "timed out")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRunMissingBinary(t *testing.T) {
	e := New(t.TempDir())
	e.Binary = "/nonexistent/ansible-playbook"

	ok, output := e.Run(context.Background(), "- hosts: local\n")

	assert.False(t, ok)
	assert.Contains(t, output, "failed to start")
}

func TestWriteInventory(t *testing.T) {
	e := New(t.TempDir())

	require.NoError(t, e.WriteInventory())
	data, err := os.ReadFile(e.InventoryPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ansible_connection=local")
}
