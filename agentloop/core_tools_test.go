package agentloop

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// fakeEnv is a scripted ExecutionEnvironment for tool tests.
type fakeEnv struct {
	result     *ExecResult
	err        error
	lastCode   string
	resets     int
	workingDir string
}

func (f *fakeEnv) Run(ctx context.Context, code string) (*ExecResult, error) {
	f.lastCode = code
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeEnv) Reset() error             { f.resets++; return nil }
func (f *fakeEnv) Close() error             { return nil }
func (f *fakeEnv) WorkingDirectory() string { return f.workingDir }

func TestExecuteCodeTool(t *testing.T) {
	env := &fakeEnv{result: &ExecResult{Stdout: "6\n", Success: true}, workingDir: t.TempDir()}
	registry := NewToolRegistry()
	RegisterExecuteCode(registry, env)

	out, err := registry.Dispatch(context.Background(), "execute_code", json.RawMessage(`{"code":"x + 1"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != "6" {
		t.Errorf("expected 6, got %q", out)
	}
	if env.lastCode != "x + 1" {
		t.Errorf("code not passed through: %q", env.lastCode)
	}
}

func TestExecuteCodeToolFaultIsObservation(t *testing.T) {
	env := &fakeEnv{result: &ExecResult{Fault: "ZeroDivisionError: division by zero", Success: false}}
	registry := NewToolRegistry()
	RegisterExecuteCode(registry, env)

	out, err := registry.Dispatch(context.Background(), "execute_code", json.RawMessage(`{"code":"1/0"}`))
	if err != nil {
		t.Fatalf("a fragment fault is an observation, not a dispatch error: %v", err)
	}
	if !strings.Contains(out, "ZeroDivisionError") {
		t.Errorf("expected the traceback in the observation, got %q", out)
	}
}

func TestExecuteCodeToolSessionLostNotice(t *testing.T) {
	env := &fakeEnv{result: &ExecResult{Fault: "execution timed out", TimedOut: true, SessionLost: true}}
	registry := NewToolRegistry()
	RegisterExecuteCode(registry, env)

	out, err := registry.Dispatch(context.Background(), "execute_code", json.RawMessage(`{"code":"slow()"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "session was lost") {
		t.Errorf("expected session loss surfaced to the model, got %q", out)
	}
}

func TestExecuteCodeToolMissingCode(t *testing.T) {
	env := &fakeEnv{result: &ExecResult{Success: true}}
	registry := NewToolRegistry()
	RegisterExecuteCode(registry, env)

	_, err := registry.Dispatch(context.Background(), "execute_code", json.RawMessage(`{}`))
	var argErr *InvalidArgumentsError
	if !errors.As(err, &argErr) {
		t.Errorf("expected InvalidArgumentsError, got %T", err)
	}
}

func TestReadFileTool(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("alpha\nbeta\ngamma\n"), 0644); err != nil {
		t.Fatal(err)
	}

	registry := NewToolRegistry()
	RegisterReadFile(registry, dir)

	out, err := registry.Dispatch(context.Background(), "read_file", json.RawMessage(`{"path":"notes.txt"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "1 | alpha") || !strings.Contains(out, "3 | gamma") {
		t.Errorf("expected line-numbered content, got %q", out)
	}
}

func TestReadFileToolOffsetLimit(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("a\nb\nc\nd\n"), 0644); err != nil {
		t.Fatal(err)
	}

	registry := NewToolRegistry()
	RegisterReadFile(registry, dir)

	out, err := registry.Dispatch(context.Background(), "read_file", json.RawMessage(`{"path":"notes.txt","offset":2,"limit":2}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(out, "1 | a") || !strings.Contains(out, "2 | b") || !strings.Contains(out, "3 | c") || strings.Contains(out, "4 | d") {
		t.Errorf("offset/limit not honored: %q", out)
	}
}

func TestRegisterCoreToolsOptionalCollaborators(t *testing.T) {
	env := &fakeEnv{result: &ExecResult{Success: true}, workingDir: t.TempDir()}

	registry := NewToolRegistry()
	RegisterCoreTools(registry, env, nil, nil)

	if registry.Get("execute_code") == nil || registry.Get("read_file") == nil {
		t.Error("core tools must always register")
	}
	if registry.Get("query_database") != nil {
		t.Error("query_database requires a catalog")
	}
	if registry.Get("search_literature") != nil {
		t.Error("search_literature requires a searcher")
	}
}
