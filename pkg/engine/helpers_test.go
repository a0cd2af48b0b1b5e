package engine

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/openfroyo/vtyctl/pkg/schema"
)

var quagga = schema.Quagga()

func lookup(kind schema.Kind) *schema.ResourceSchema {
	s, ok := quagga.Lookup(kind)
	if !ok {
		panic("unknown kind " + string(kind))
	}
	return s
}

// want builds a sparse desired instance.
func want(kind schema.Kind, key string, props map[string]schema.Value) *schema.Instance {
	if props == nil {
		props = map[string]schema.Value{}
	}
	return &schema.Instance{Kind: kind, Key: key, Exists: true, Properties: props}
}

// gone builds a desired instance asking for deletion.
func gone(kind schema.Kind, key string) *schema.Instance {
	return &schema.Instance{Kind: kind, Key: key}
}

// have builds an observed instance: defaults overlaid with props.
func have(kind schema.Kind, key string, props map[string]schema.Value) *schema.Instance {
	in := lookup(kind).NewInstance(key)
	for name, v := range props {
		in.Set(name, v)
	}
	return in
}

// expectCommands fails the test when got differs from want.
func expectCommands(t *testing.T, got []string, want ...string) {
	t.Helper()
	if !slices.Equal(got, want) {
		t.Errorf("commands = %q, want %q", got, want)
	}
}

// expectCode fails the test unless err carries code.
func expectCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected an error with code %s", code)
	}
	if !HasCode(err, code) {
		t.Errorf("error %q does not carry code %s", err, code)
	}
}

func render(t *testing.T, observed, desired *schema.Instance) []string {
	t.Helper()
	kind := desired.Kind
	s := lookup(kind)
	cmds, err := NewEmitter(quagga).Render(Diff(s, observed, desired))
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	return cmds
}

// fakeDaemon is an in-memory Executor. Submitted batches are recorded;
// failAt makes the n-th Submit call fail.
type fakeDaemon struct {
	mu        sync.Mutex
	running   string
	fetchErr  error
	failAt    int
	failErr   error
	submitted [][]string
	calls     int
}

func (d *fakeDaemon) RunningConfig(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fetchErr != nil {
		return "", d.fetchErr
	}
	return d.running, nil
}

func (d *fakeDaemon) Submit(ctx context.Context, batch []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.failAt > 0 && d.calls == d.failAt {
		if d.failErr != nil {
			return d.failErr
		}
		return errors.New("vtysh exited with status 1")
	}
	d.submitted = append(d.submitted, append([]string(nil), batch...))
	return nil
}

func (d *fakeDaemon) batches() [][]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.submitted
}

type staticSource string

func (s staticSource) ReadConfig(ctx context.Context) (string, error) {
	return string(s), nil
}

// denyGuard denies every plan of the listed operations.
type denyGuard struct {
	ops []OperationType
}

func (g denyGuard) Check(ctx context.Context, target string, rp ResourcePlan) ([]string, error) {
	for _, op := range g.ops {
		if rp.Operation == op {
			return []string{string(op) + " is not allowed on " + target}, nil
		}
	}
	return nil, nil
}

type memJournal struct {
	mu       sync.Mutex
	started  []string
	changes  []ApplyResult
	finished []RunStatus
	configs  []string
}

func (j *memJournal) StartRun(ctx context.Context, run *RunResult, runningConfig string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.started = append(j.started, run.RunID)
	j.configs = append(j.configs, runningConfig)
	return nil
}

func (j *memJournal) RecordChange(ctx context.Context, runID string, rp ResourcePlan, result ApplyResult) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.changes = append(j.changes, result)
	return nil
}

func (j *memJournal) FinishRun(ctx context.Context, run *RunResult) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.finished = append(j.finished, run.Status)
	return nil
}
