package command

import (
	"context"
	"io"
	"strings"
	"sync"
)

// Call is one recorded invocation of a FakeRunner.
type Call struct {
	Name  string
	Args  []string
	Stdin []byte
}

// FakeRunner answers commands from a handler and records every call. It is used by
// tests of packages that shell out.
type FakeRunner struct {
	Handler func(name string, args []string, stdin []byte) (stdout, stderr []byte, err error)

	mu    sync.Mutex
	calls []Call
}

func (f *FakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	return f.RunWithStdin(ctx, nil, name, args...)
}

func (f *FakeRunner) RunWithStdin(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, []byte, error) {
	var in []byte
	if stdin != nil {
		in, _ = io.ReadAll(stdin)
	}
	f.mu.Lock()
	f.calls = append(f.calls, Call{Name: name, Args: append([]string(nil), args...), Stdin: in})
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if f.Handler == nil {
		return nil, nil, nil
	}
	return f.Handler(name, args, in)
}

// Calls returns a copy of the recorded invocations.
func (f *FakeRunner) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CommandLine renders a call the way a shell would show it.
func (c Call) CommandLine() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}
