package scraper

import (
	"bytes"
	"os/exec"
	"sync"
)

// Process is a handle to a spawned scraper invocation
type Process interface {
	// Kill sends a termination signal. Best-effort: there is no
	// confirmation wait.
	Kill() error
}

// Runner spawns external scraper processes. The scraper communicates only
// through its exit code and captured stdout/stderr text.
type Runner interface {
	// Start launches the scraper with the given arguments and invokes
	// onExit exactly once from a background goroutine when the process
	// terminates. A nil onExit error means exit code 0.
	Start(args []string, onExit func(err error, output string)) (Process, error)
}

// ExecRunner invokes the Python scraper via os/exec
type ExecRunner struct {
	python  string
	script  string
	workdir string
}

// NewExecRunner creates a runner for the configured scraper entry point
func NewExecRunner(python, script, workdir string) *ExecRunner {
	return &ExecRunner{python: python, script: script, workdir: workdir}
}

// Start spawns `<python> <script> <args...>` and watches it from a goroutine
func (r *ExecRunner) Start(args []string, onExit func(err error, output string)) (Process, error) {
	cmdArgs := append([]string{r.script}, args...)
	cmd := exec.Command(r.python, cmdArgs...)
	cmd.Dir = r.workdir

	out := &boundedBuffer{limit: 64 * 1024}
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	go func() {
		err := cmd.Wait()
		onExit(err, out.String())
	}()

	return &execProcess{cmd: cmd}, nil
}

type execProcess struct {
	cmd *exec.Cmd
}

func (p *execProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}

// boundedBuffer captures process output up to a fixed limit; anything past
// the limit is dropped. Safe for the concurrent stdout/stderr writes exec
// performs when both point at the same writer.
type boundedBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if remaining := b.limit - b.buf.Len(); remaining > 0 {
		if len(p) > remaining {
			b.buf.Write(p[:remaining])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *boundedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
