// Package action writes the model's proposed playbook to disk and executes it
// through ansible-playbook against the cluster inventory.
package action

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/chaosmend/chaosmend-go/pkg/cerrors"
	"github.com/chaosmend/chaosmend-go/pkg/log"
)

// DefaultTimeout bounds one playbook run end to end
const DefaultTimeout = 120 * time.Second

// Executor runs remediation playbooks. The zero value is not usable, build
// one with New.
type Executor struct {
	Binary        string
	InventoryPath string
	PlaybookPath  string
	WorkDir       string
	Timeout       time.Duration
}

// New builds an executor with the conventional ansible layout rooted at
// workDir
func New(workDir string) *Executor {
	return &Executor{
		Binary:        "ansible-playbook",
		InventoryPath: filepath.Join(workDir, "inventory.ini"),
		PlaybookPath:  filepath.Join(workDir, "remediation.yml"),
		WorkDir:       workDir,
		Timeout:       DefaultTimeout,
	}
}

// Run persists the playbook and executes it, returning success and the
// combined process output. An empty playbook is rejected without spawning a
// process. On timeout the whole process group is killed and the partial
// output is returned so the caller can feed it back to the model.
func (e *Executor) Run(ctx context.Context, playbook string) (bool, string) {
	if strings.TrimSpace(playbook) == "" {
		return false, "no playbook was provided, nothing to execute"
	}

	if err := os.WriteFile(e.PlaybookPath, []byte(playbook), 0o644); err != nil {
		log.Errorf("[Action]: Unable to write playbook, err: %v", err)
		return false, "failed to write playbook to disk: " + err.Error()
	}

	log.Infof("[Action]: Executing playbook %v", e.PlaybookPath)

	cmd := exec.Command(e.Binary, "-i", e.InventoryPath, e.PlaybookPath)
	cmd.Dir = e.WorkDir
	// the playbook spawns its own children, a plain kill would orphan them
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Start(); err != nil {
		log.Errorf("[Action]: Unable to start %v, err: %v", e.Binary, err)
		return false, "failed to start " + e.Binary + ": " + err.Error()
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timeout := e.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	select {
	case err := <-done:
		if err != nil {
			log.Warnf("[Action]: Playbook exited with error: %v", err)
			return false, output.String()
		}
		return true, output.String()
	case <-time.After(timeout):
		e.killGroup(cmd)
		<-done
		log.Error("[Action]: Playbook execution timed out")
		return false, output.String() + "\nplaybook execution timed out after " + timeout.String()
	case <-ctx.Done():
		e.killGroup(cmd)
		<-done
		return false, output.String() + "\nplaybook execution cancelled"
	}
}

func (e *Executor) killGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	if err != nil {
		_ = cmd.Process.Kill()
		return
	}
	_ = syscall.Kill(-pgid, syscall.SIGKILL)
}

// WriteInventory materializes a localhost inventory so playbooks run against
// the machine driving the experiment
func (e *Executor) WriteInventory() error {
	inventory := "[local]\nlocalhost ansible_connection=local\n"
	if err := os.WriteFile(e.InventoryPath, []byte(inventory), 0o644); err != nil {
		return cerrors.Generic{Phase: "action", Reason: "failed to write inventory: " + err.Error()}
	}
	return nil
}
