package agentloop

import "context"

// ExecResult holds the result of executing one code fragment.
type ExecResult struct {
	Stdout      string `json:"stdout"`
	Stderr      string `json:"stderr"`
	Fault       string `json:"fault,omitempty"`
	Success     bool   `json:"success"`
	TimedOut    bool   `json:"timed_out,omitempty"`
	SessionLost bool   `json:"session_lost,omitempty"`
	DurationMs  int64  `json:"duration_ms"`
}

// Output returns the combined streams plus the fault text, formatted the
// way the model sees it.
func (r ExecResult) Output() string {
	out := r.Stdout
	if r.Stderr != "" {
		if out != "" {
			out += "\n"
		}
		out += r.Stderr
	}
	if r.Fault != "" {
		if out != "" {
			out += "\n"
		}
		out += r.Fault
	}
	return out
}

// ExecutionEnvironment abstracts where code fragments run. Implementations
// hold a persistent session: definitions from one Run are visible to the
// next, and a fault in one fragment never discards prior state. Only Reset
// discards the session, and only when the caller asks for it.
//
// A fragment that raises is a failed ExecResult, not a Go error. The error
// return is reserved for environment-level failures (the interpreter could
// not be started, the session transport broke).
type ExecutionEnvironment interface {
	// Run executes one code fragment against the persistent session.
	Run(ctx context.Context, code string) (*ExecResult, error)

	// Reset discards the session and starts fresh.
	Reset() error

	// Close terminates the environment and releases its resources.
	Close() error

	// WorkingDirectory returns the directory fragments execute in.
	WorkingDirectory() string
}
