// Package toolexec is the external-process boundary every shelling
// package in this repository (source, unpack, builder, packager) goes
// through to invoke git, gtar, gpatch, rsync, make, ninja, configure,
// and the pkg* toolchain. It generalizes the teacher's container
// Runner interface (Name/TestUsability/Run) from "run inside a
// sandboxed pod" to "run one external tool and capture its result".
package toolexec

import (
	"bytes"
	"context"
	"os/exec"

	"github.com/openflowlabs/gatebuild/pkg/gbuild"
)

// Invocation describes one external process call.
type Invocation struct {
	Tool string
	Args []string
	Env  []string // complete KEY=VALUE environment; empty means inherit os.Environ()
	Dir  string    // working directory; empty means the caller's cwd
}

// Result carries a completed invocation's captured output.
type Result struct {
	Stdout string
	Stderr string
}

// Runner executes Invocations. The production implementation shells
// out via os/exec; tests substitute a fake to avoid depending on the
// host having git/gtar/pkg* installed.
type Runner interface {
	Name() string
	TestUsability(ctx context.Context) bool
	Run(ctx context.Context, inv Invocation) (Result, error)
}

// ExecRunner is the production Runner, invoking real child processes.
type ExecRunner struct{}

// NewExecRunner returns the default os/exec-backed Runner.
func NewExecRunner() *ExecRunner { return &ExecRunner{} }

func (r *ExecRunner) Name() string { return "exec" }

// TestUsability reports whether a POSIX shell ("sh") resolves on PATH,
// without running anything.
func (r *ExecRunner) TestUsability(ctx context.Context) bool {
	_, err := exec.LookPath("sh")
	return err == nil
}

// Run shells out to inv.Tool with inv.Args, returning an
// ExternalToolError on a non-zero exit or launch failure.
func (r *ExecRunner) Run(ctx context.Context, inv Invocation) (Result, error) {
	cmd := exec.CommandContext(ctx, inv.Tool, inv.Args...)
	cmd.Dir = inv.Dir
	if len(inv.Env) > 0 {
		cmd.Env = inv.Env
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		return res, &gbuild.ExternalToolError{Tool: inv.Tool, Args: inv.Args, Err: err}
	}
	return res, nil
}
