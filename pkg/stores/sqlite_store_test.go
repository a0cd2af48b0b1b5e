package stores

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/openfroyo/vtyctl/pkg/engine"
	"github.com/openfroyo/vtyctl/pkg/schema"
)

// setupTestStore creates a file backed store in a temporary directory.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "state", "journal.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testRun(id, target string, started time.Time) *engine.RunResult {
	return &engine.RunResult{
		RunID:     id,
		Target:    target,
		Status:    engine.RunStatusRunning,
		StartedAt: started,
		Plan: &engine.Plan{
			ID:      "plan-" + id,
			Target:  target,
			Summary: engine.PlanSummary{Create: 1, Update: 2, Commands: 5},
		},
	}
}

// TestStoreLifecycle tests database initialization and closure
func TestStoreLifecycle(t *testing.T) {
	store, err := NewSQLiteStore(Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err == nil {
		t.Error("expected migrate to fail before init")
	}
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}
	// Migrating twice is a no-op.
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}
	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}

	if _, err := NewSQLiteStore(Config{}); err == nil {
		t.Error("expected error without a path")
	}
}

func TestJournalRun(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	run := testRun("run-1", "edge1", time.Now())
	if err := store.StartRun(ctx, run, "router bgp 65000\n"); err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}

	applied := engine.ResourcePlan{ID: "bgp_router[65000]", Kind: schema.KindBGPRouter, Operation: engine.OperationUpdate}
	if err := store.RecordChange(ctx, run.RunID, applied, engine.ApplyResult{
		Resource:  applied.ID,
		Operation: engine.OperationUpdate,
		Status:    engine.ChangeStatusApplied,
		Commands:  []string{"router bgp 65000", "bgp router-id 10.0.0.2"},
		Duration:  40 * time.Millisecond,
	}); err != nil {
		t.Fatalf("RecordChange() error = %v", err)
	}

	denied := engine.ResourcePlan{ID: "static_route[0.0.0.0/0]", Kind: schema.KindStaticRoute, Operation: engine.OperationDelete}
	if err := store.RecordChange(ctx, run.RunID, denied, engine.ApplyResult{
		Resource:  denied.ID,
		Operation: engine.OperationDelete,
		Status:    engine.ChangeStatusDenied,
		Error:     "denied by policy",
	}); err != nil {
		t.Fatalf("RecordChange() error = %v", err)
	}

	run.Status = engine.RunStatusPartial
	run.Error = "denied by policy"
	run.CompletedAt = time.Now()
	if err := store.FinishRun(ctx, run); err != nil {
		t.Fatalf("FinishRun() error = %v", err)
	}

	got, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got.Target != "edge1" || got.Status != engine.RunStatusPartial || got.PlanID != "plan-run-1" {
		t.Errorf("unexpected run %+v", got)
	}
	if got.Summary.Update != 2 || got.Summary.Commands != 5 {
		t.Errorf("unexpected summary %+v", got.Summary)
	}
	if got.ConfigDigest != engine.Digest("router bgp 65000\n") {
		t.Errorf("unexpected digest %s", got.ConfigDigest)
	}
	if got.CompletedAt == nil || got.Error == nil || *got.Error != "denied by policy" {
		t.Errorf("expected completion and error, got %+v", got)
	}

	changes, err := store.ListChanges(ctx, "run-1")
	if err != nil {
		t.Fatalf("ListChanges() error = %v", err)
	}
	if len(changes) != 2 {
		t.Fatalf("expected 2 changes, got %d", len(changes))
	}
	if changes[0].Resource != applied.ID || changes[0].Status != engine.ChangeStatusApplied || len(changes[0].Commands) != 2 {
		t.Errorf("unexpected first change %+v", changes[0])
	}
	if changes[0].Duration != 40*time.Millisecond || changes[0].Error != nil {
		t.Errorf("unexpected first change timing %+v", changes[0])
	}
	if changes[1].Status != engine.ChangeStatusDenied || changes[1].Error == nil || len(changes[1].Commands) != 0 {
		t.Errorf("unexpected second change %+v", changes[1])
	}
}

func TestGetRunNotFound(t *testing.T) {
	store := setupTestStore(t)

	if _, err := store.GetRun(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	err := store.FinishRun(context.Background(), &engine.RunResult{RunID: "missing", Status: engine.RunStatusFailed})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRecordChangeRequiresRun(t *testing.T) {
	store := setupTestStore(t)

	err := store.RecordChange(context.Background(), "missing",
		engine.ResourcePlan{ID: "bgp_as_path[foo]", Kind: schema.KindBGPASPath},
		engine.ApplyResult{Operation: engine.OperationCreate, Status: engine.ChangeStatusApplied})
	if err == nil {
		t.Error("expected foreign key violation")
	}
}

func TestListRuns(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i, tc := range []struct {
		id, target string
		status     engine.RunStatus
	}{
		{"a", "edge1", engine.RunStatusSucceeded},
		{"b", "edge2", engine.RunStatusFailed},
		{"c", "edge1", engine.RunStatusPlanned},
	} {
		run := testRun(tc.id, tc.target, base.Add(time.Duration(i)*time.Minute))
		if err := store.StartRun(ctx, run, "hostname "+tc.target+"\n"); err != nil {
			t.Fatalf("StartRun(%s) error = %v", tc.id, err)
		}
		run.Status = tc.status
		if err := store.FinishRun(ctx, run); err != nil {
			t.Fatalf("FinishRun(%s) error = %v", tc.id, err)
		}
	}

	tests := []struct {
		name   string
		filter RunFilter
		want   []string
	}{
		{name: "all newest first", filter: RunFilter{}, want: []string{"c", "b", "a"}},
		{name: "by target", filter: RunFilter{Target: "edge1"}, want: []string{"c", "a"}},
		{name: "by status", filter: RunFilter{Status: engine.RunStatusFailed}, want: []string{"b"}},
		{name: "limit", filter: RunFilter{Limit: 1}, want: []string{"c"}},
		{name: "offset", filter: RunFilter{Limit: 1, Offset: 1}, want: []string{"b"}},
		{name: "no match", filter: RunFilter{Target: "core1"}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, err := store.ListRuns(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListRuns() error = %v", err)
			}
			if len(runs) != len(tt.want) {
				t.Fatalf("expected %d runs, got %d", len(tt.want), len(runs))
			}
			for i, id := range tt.want {
				if runs[i].ID != id {
					t.Errorf("run %d: expected %s, got %s", i, id, runs[i].ID)
				}
			}
		})
	}
}

func TestSnapshots(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	config := "interface eth0\n ip igmp\n"

	if digest, err := store.LastDigest(ctx, "edge1"); err != nil || digest != "" {
		t.Fatalf("expected no digest, got %q, %v", digest, err)
	}

	for i, id := range []string{"r1", "r2"} {
		if err := store.StartRun(ctx, testRun(id, "edge1", time.Now().Add(time.Duration(i)*time.Second)), config); err != nil {
			t.Fatalf("StartRun(%s) error = %v", id, err)
		}
	}

	digest, err := store.LastDigest(ctx, "edge1")
	if err != nil {
		t.Fatalf("LastDigest() error = %v", err)
	}
	if digest != engine.Digest(config) {
		t.Errorf("expected digest of the config, got %s", digest)
	}

	snap, err := store.GetSnapshot(ctx, "edge1", digest)
	if err != nil {
		t.Fatalf("GetSnapshot() error = %v", err)
	}
	if snap.Config != config {
		t.Errorf("unexpected snapshot config %q", snap.Config)
	}
	if snap.LastSeen.Before(snap.FirstSeen) {
		t.Errorf("last seen %v before first seen %v", snap.LastSeen, snap.FirstSeen)
	}

	if _, err := store.GetSnapshot(ctx, "edge2", digest); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for another target, got %v", err)
	}
}

func TestPruneRuns(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	now := time.Now()

	old := testRun("old", "edge1", now.Add(-48*time.Hour))
	if err := store.StartRun(ctx, old, "old config\n"); err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}
	if err := store.RecordChange(ctx, "old", engine.ResourcePlan{ID: "x", Kind: schema.KindBGPASPath},
		engine.ApplyResult{Operation: engine.OperationCreate, Status: engine.ChangeStatusApplied}); err != nil {
		t.Fatalf("RecordChange() error = %v", err)
	}
	if err := store.StartRun(ctx, testRun("new", "edge1", now), "new config\n"); err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}

	pruned, err := store.PruneRuns(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PruneRuns() error = %v", err)
	}
	if pruned != 1 {
		t.Errorf("expected 1 pruned run, got %d", pruned)
	}

	if _, err := store.GetRun(ctx, "old"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected old run to be gone, got %v", err)
	}
	if changes, _ := store.ListChanges(ctx, "old"); len(changes) != 0 {
		t.Errorf("expected changes to cascade, got %d", len(changes))
	}
	if _, err := store.GetSnapshot(ctx, "edge1", engine.Digest("old config\n")); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected orphaned snapshot to be pruned, got %v", err)
	}
	if _, err := store.GetSnapshot(ctx, "edge1", engine.Digest("new config\n")); err != nil {
		t.Errorf("expected live snapshot to remain, got %v", err)
	}
}
