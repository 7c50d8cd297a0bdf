package agentloop

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

// pythonDriver is the session driver executed inside the interpreter.
// It evals/execs fragments against one persistent namespace and replies
// over a JSON-lines protocol on stdout. Bare expressions are evaluated
// and their repr printed; everything else is exec'd. A raising fragment
// reports its traceback and leaves the namespace untouched.
const pythonDriver = `
import sys, json, io, traceback, contextlib
ns = {}
for line in sys.stdin:
    line = line.strip()
    if not line:
        continue
    try:
        req = json.loads(line)
    except ValueError:
        continue
    code = req.get("code", "")
    out, err = io.StringIO(), io.StringIO()
    fault = ""
    ok = True
    try:
        with contextlib.redirect_stdout(out), contextlib.redirect_stderr(err):
            try:
                compiled = compile(code, "<session>", "eval")
            except SyntaxError:
                compiled = None
            if compiled is not None:
                value = eval(compiled, ns)
                if value is not None:
                    print(repr(value))
            else:
                exec(compile(code, "<session>", "exec"), ns)
    except BaseException:
        ok = False
        fault = traceback.format_exc()
    resp = {"stdout": out.getvalue(), "stderr": err.getvalue(), "fault": fault, "ok": ok}
    sys.stdout.write(json.dumps(resp) + "\n")
    sys.stdout.flush()
`

type driverRequest struct {
	Code string `json:"code"`
}

type driverResponse struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
	Fault  string `json:"fault"`
	OK     bool   `json:"ok"`
}

// PythonEnvironment is an ExecutionEnvironment backed by one long-lived
// python3 process. The interpreter starts lazily on the first Run and the
// namespace persists across calls, including calls that fault.
type PythonEnvironment struct {
	pythonPath string
	workingDir string

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Scanner
}

// PythonEnvironmentOption configures a PythonEnvironment.
type PythonEnvironmentOption func(*PythonEnvironment)

// WithPythonPath overrides the interpreter binary (default "python3").
func WithPythonPath(path string) PythonEnvironmentOption {
	return func(e *PythonEnvironment) {
		e.pythonPath = path
	}
}

// WithWorkingDirectory sets the directory fragments execute in.
func WithWorkingDirectory(dir string) PythonEnvironmentOption {
	return func(e *PythonEnvironment) {
		e.workingDir = dir
	}
}

// NewPythonEnvironment creates a PythonEnvironment. The interpreter is not
// started until the first Run.
func NewPythonEnvironment(opts ...PythonEnvironmentOption) *PythonEnvironment {
	e := &PythonEnvironment{
		pythonPath: "python3",
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.workingDir == "" {
		e.workingDir, _ = os.Getwd()
	}
	return e
}

// WorkingDirectory returns the directory fragments execute in.
func (e *PythonEnvironment) WorkingDirectory() string {
	return e.workingDir
}

// start launches the interpreter. Caller holds the lock.
func (e *PythonEnvironment) start() error {
	cmd := exec.Command(e.pythonPath, "-u", "-c", pythonDriver)
	cmd.Dir = e.workingDir

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("python session: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("python session: %w", err)
	}
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("python session: failed to start %s: %w", e.pythonPath, err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	e.cmd = cmd
	e.stdin = stdin
	e.stdout = scanner
	return nil
}

// stop kills the interpreter. Caller holds the lock.
func (e *PythonEnvironment) stop() {
	if e.cmd == nil {
		return
	}
	if e.stdin != nil {
		e.stdin.Close()
	}
	if e.cmd.Process != nil {
		e.cmd.Process.Kill()
	}
	e.cmd.Wait()
	e.cmd = nil
	e.stdin = nil
	e.stdout = nil
}

// Run executes one code fragment against the persistent session. A fault
// in the fragment is reported on the result with Success=false; the
// session and its namespace survive. If ctx expires mid-fragment the
// interpreter is killed and the result carries TimedOut and SessionLost,
// since a killed interpreter cannot keep its namespace.
func (e *PythonEnvironment) Run(ctx context.Context, code string) (*ExecResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cmd == nil {
		if err := e.start(); err != nil {
			return nil, err
		}
	}

	req, err := json.Marshal(driverRequest{Code: code})
	if err != nil {
		return nil, fmt.Errorf("python session: %w", err)
	}

	start := time.Now()
	if _, err := e.stdin.Write(append(req, '\n')); err != nil {
		e.stop()
		return nil, fmt.Errorf("python session: write failed: %w", err)
	}

	type scanOutcome struct {
		line string
		err  error
	}
	done := make(chan scanOutcome, 1)
	go func() {
		if e.stdout.Scan() {
			done <- scanOutcome{line: e.stdout.Text()}
			return
		}
		err := e.stdout.Err()
		if err == nil {
			err = io.EOF
		}
		done <- scanOutcome{err: err}
	}()

	select {
	case <-ctx.Done():
		e.stop()
		return &ExecResult{
			Fault:       fmt.Sprintf("execution timed out: %v", ctx.Err()),
			Success:     false,
			TimedOut:    true,
			SessionLost: true,
			DurationMs:  time.Since(start).Milliseconds(),
		}, nil
	case outcome := <-done:
		if outcome.err != nil {
			e.stop()
			return nil, fmt.Errorf("python session: read failed: %w", outcome.err)
		}
		var resp driverResponse
		if err := json.Unmarshal([]byte(outcome.line), &resp); err != nil {
			e.stop()
			return nil, fmt.Errorf("python session: malformed reply: %w", err)
		}
		return &ExecResult{
			Stdout:     resp.Stdout,
			Stderr:     resp.Stderr,
			Fault:      resp.Fault,
			Success:    resp.OK,
			DurationMs: time.Since(start).Milliseconds(),
		}, nil
	}
}

// Reset discards the session. The next Run starts a fresh interpreter
// with an empty namespace.
func (e *PythonEnvironment) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stop()
	return nil
}

// Close terminates the interpreter.
func (e *PythonEnvironment) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stop()
	return nil
}
