package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"ghcollector/internal/modkit/repokit"
	perr "ghcollector/internal/platform/errors"
	"ghcollector/internal/services/enrich/domain"
)

type fakeTx struct{}

func (fakeTx) Exec(context.Context, string, ...any) (repokit.CommandTag, error) { return nil, nil }
func (fakeTx) Query(context.Context, string, ...any) (repokit.Rows, error)      { return nil, nil }
func (fakeTx) QueryRow(context.Context, string, ...any) repokit.Row             { return nil }
func (f fakeTx) Tx(_ context.Context, fn func(repokit.Queryer) error) error     { return fn(f) }

// fakeStore serves targets and records applied deltas
type fakeStore struct {
	mu      sync.Mutex
	targets []domain.Target
	applied []domain.Delta
	byIDs   [][]int64 // SelectByIDs invocations
}

func (f *fakeStore) SelectForEnrichment(_ context.Context, force bool) ([]domain.Target, error) {
	return f.targets, nil
}

func (f *fakeStore) SelectByIDs(_ context.Context, ids []int64) ([]domain.Target, error) {
	f.mu.Lock()
	f.byIDs = append(f.byIDs, ids)
	f.mu.Unlock()
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []domain.Target
	for _, t := range f.targets {
		if want[t.ID] {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) ApplyDelta(_ context.Context, d domain.Delta) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied = append(f.applied, d)
	return nil
}

// fakeBatcher scripts per-call results; failCalls fail with Unavailable
type fakeBatcher struct {
	mu        sync.Mutex
	calls     int
	failCalls map[int]bool // 0-based call number -> fail
	remaining int
}

func (f *fakeBatcher) FetchBatch(_ context.Context, keys []domain.RepoKey) (*domain.BatchResult, error) {
	f.mu.Lock()
	call := f.calls
	f.calls++
	f.mu.Unlock()
	if f.failCalls[call] {
		return nil, perr.New(perr.ErrorCodeUnavailable, "graphql server error 502")
	}
	res := &domain.BatchResult{Stats: make(map[int]domain.RepoStats, len(keys))}
	for i, k := range keys {
		res.Stats[i] = domain.RepoStats{
			NodeID:       "R_" + k.Name,
			DatabaseID:   idFromName(k.Name),
			PullRequests: 3,
			Commits:      40,
		}
	}
	res.Rate.Remaining = f.remaining
	if f.remaining == 0 {
		res.Rate.Remaining = 4000
	}
	return res, nil
}

type fakeContributors struct{ fail bool }

func (f fakeContributors) ContributorsCount(context.Context, string, string) (int, error) {
	if f.fail {
		return 0, perr.New(perr.ErrorCodeUnavailable, "head failed")
	}
	return 9, nil
}

func idFromName(name string) int64 {
	var id int64
	fmt.Sscanf(name, "repo-%d", &id)
	return id
}

func mkTargets(n int) []domain.Target {
	out := make([]domain.Target, n)
	for i := range out {
		out[i] = domain.Target{ID: int64(i + 1), OwnerLogin: "owner", Name: fmt.Sprintf("repo-%d", i+1)}
	}
	return out
}

func newTestService(t *testing.T, store *fakeStore, b domain.BatcherPort, c domain.ContributorsPort, batchSize int) *Service {
	t.Helper()
	dir := t.TempDir()
	s := New(fakeTx{},
		repokit.BindFunc[domain.StorageRepo](func(repokit.Queryer) domain.StorageRepo { return store }),
		b, c,
		Config{
			BatchSize:      batchSize,
			RetryBase:      time.Nanosecond,
			CheckpointPath: filepath.Join(dir, "enrich_checkpoint.txt"),
			FailedDir:      dir,
		},
	)
	s.sleep = func(context.Context, time.Duration) error { return nil }
	return s
}

func TestRunHappyPath(t *testing.T) {
	store := &fakeStore{targets: mkTargets(120)}
	batcher := &fakeBatcher{}
	s := newTestService(t, store, batcher, fakeContributors{}, 50)

	sum, err := s.Run(context.Background(), domain.RunRequest{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Batches != 3 || sum.Enriched != 120 || sum.Failed != 0 {
		t.Fatalf("summary = %+v", sum)
	}
	if batcher.calls != 3 {
		t.Fatalf("batch calls = %d, want 3", batcher.calls)
	}
	if len(store.applied) != 120 {
		t.Fatalf("applied = %d, want 120", len(store.applied))
	}
	for _, d := range store.applied {
		if d.Commits != 40 || d.PullRequests != 3 || d.Contributors == nil || *d.Contributors != 9 {
			t.Fatalf("delta = %+v", d)
		}
	}
	if _, err := os.Stat(s.cfg.CheckpointPath); !os.IsNotExist(err) {
		t.Fatal("checkpoint must be removed after a clean run")
	}
}

func TestRunPartialFailureRecordsAndContinues(t *testing.T) {
	store := &fakeStore{targets: mkTargets(150)}
	// batch 2 (calls 1..3 after retries) fails terminally
	batcher := &fakeBatcher{failCalls: map[int]bool{1: true, 2: true, 3: true}}
	s := newTestService(t, store, batcher, nil, 50)

	sum, err := s.Run(context.Background(), domain.RunRequest{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Enriched != 100 || sum.Failed != 50 {
		t.Fatalf("summary = %+v, want 100 enriched 50 failed", sum)
	}

	failedPath := filepath.Join(s.cfg.FailedDir,
		fmt.Sprintf("failed_repo_ids_%s.txt", time.Now().UTC().Format("20060102")))
	ids, err := loadFailedIDs(failedPath)
	if err != nil {
		t.Fatalf("loadFailedIDs: %v", err)
	}
	if len(ids) != 50 || ids[0] != 51 || ids[49] != 100 {
		t.Fatalf("failed ids = %d (%d..%d), want 51..100", len(ids), ids[0], ids[len(ids)-1])
	}
	if _, err := os.Stat(s.cfg.CheckpointPath); !os.IsNotExist(err) {
		t.Fatal("checkpoint must be removed after the run completes")
	}

	// targeted retry touches only the failed ids
	store2 := &fakeStore{targets: store.targets}
	s2 := newTestService(t, store2, &fakeBatcher{}, nil, 50)
	sum2, err := s2.Run(context.Background(), domain.RunRequest{RetryFailedPath: failedPath})
	if err != nil {
		t.Fatalf("retry Run: %v", err)
	}
	if sum2.Targets != 50 || sum2.Enriched != 50 {
		t.Fatalf("retry summary = %+v", sum2)
	}
	if len(store2.byIDs) != 1 || len(store2.byIDs[0]) != 50 {
		t.Fatalf("retry selected %v", store2.byIDs)
	}
}

func TestRunResumesFromCheckpoint(t *testing.T) {
	store := &fakeStore{targets: mkTargets(100)}
	batcher := &fakeBatcher{}
	s := newTestService(t, store, batcher, nil, 50)
	if err := saveCheckpoint(s.cfg.CheckpointPath, 1); err != nil {
		t.Fatalf("seed checkpoint: %v", err)
	}

	sum, err := s.Run(context.Background(), domain.RunRequest{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if batcher.calls != 1 {
		t.Fatalf("batch calls = %d, want only the second batch", batcher.calls)
	}
	if sum.Enriched != 50 {
		t.Fatalf("enriched = %d, want 50", sum.Enriched)
	}
	// the resumed batch carries ids 51..100
	if store.applied[0].RepoID != 51 {
		t.Fatalf("first applied id = %d, want 51", store.applied[0].RepoID)
	}
}

func TestRunDryRunWritesNothing(t *testing.T) {
	store := &fakeStore{targets: mkTargets(10)}
	s := newTestService(t, store, &fakeBatcher{}, nil, 50)

	sum, err := s.Run(context.Background(), domain.RunRequest{DryRun: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Enriched != 10 {
		t.Fatalf("summary = %+v", sum)
	}
	if len(store.applied) != 0 {
		t.Fatalf("applied = %d, dry run must not write", len(store.applied))
	}
}

func TestRunBatchSizeOne(t *testing.T) {
	store := &fakeStore{targets: mkTargets(3)}
	batcher := &fakeBatcher{}
	s := newTestService(t, store, batcher, nil, 1)

	sum, err := s.Run(context.Background(), domain.RunRequest{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Batches != 3 || sum.Enriched != 3 || batcher.calls != 3 {
		t.Fatalf("summary = %+v calls = %d", sum, batcher.calls)
	}
}

func TestRunTransientFailureRetriesWithinBatch(t *testing.T) {
	store := &fakeStore{targets: mkTargets(2)}
	// first call fails, second (retry of batch 1) succeeds
	batcher := &fakeBatcher{failCalls: map[int]bool{0: true}}
	s := newTestService(t, store, batcher, nil, 50)

	sum, err := s.Run(context.Background(), domain.RunRequest{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Enriched != 2 || sum.Failed != 0 {
		t.Fatalf("summary = %+v", sum)
	}
	if batcher.calls != 2 {
		t.Fatalf("calls = %d, want 2", batcher.calls)
	}
}

func TestRunMissingRepositoryLeavesAggregatesNull(t *testing.T) {
	store := &fakeStore{targets: mkTargets(2)}
	batcher := &missingBatcher{}
	s := newTestService(t, store, batcher, nil, 50)

	sum, err := s.Run(context.Background(), domain.RunRequest{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Missing != 1 || sum.Enriched != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	if len(store.applied) != 1 || store.applied[0].RepoID != 2 {
		t.Fatalf("applied = %+v", store.applied)
	}
}

// missingBatcher resolves every key except the first
type missingBatcher struct{}

func (missingBatcher) FetchBatch(_ context.Context, keys []domain.RepoKey) (*domain.BatchResult, error) {
	res := &domain.BatchResult{Stats: map[int]domain.RepoStats{}, Missing: []int{0}}
	for i := 1; i < len(keys); i++ {
		res.Stats[i] = domain.RepoStats{DatabaseID: idFromName(keys[i].Name), PullRequests: 1, Commits: 2}
	}
	res.Rate.Remaining = 4000
	return res, nil
}

func TestRunPausesWhenQuotaLow(t *testing.T) {
	store := &fakeStore{targets: mkTargets(100)}
	batcher := &fakeBatcher{remaining: 2}
	s := newTestService(t, store, batcher, nil, 50)

	reset := time.Now().Add(30 * time.Second)
	var slept []time.Duration
	s.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	s.now = func() time.Time { return reset.Add(-30 * time.Second) }
	batcherWithReset := &resetBatcher{inner: batcher, resetAt: reset}
	s.batcher = batcherWithReset

	if _, err := s.Run(context.Background(), domain.RunRequest{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(slept) != 1 {
		t.Fatalf("sleeps = %v, want one inter-batch pause", slept)
	}
	if slept[0] != 32*time.Second {
		t.Fatalf("pause = %v, want reset+2s", slept[0])
	}
}

// resetBatcher stamps a fixed reset time onto the inner batcher's rate
type resetBatcher struct {
	inner   *fakeBatcher
	resetAt time.Time
}

func (r *resetBatcher) FetchBatch(ctx context.Context, keys []domain.RepoKey) (*domain.BatchResult, error) {
	res, err := r.inner.FetchBatch(ctx, keys)
	if err != nil {
		return nil, err
	}
	res.Rate.ResetAt = r.resetAt
	return res, nil
}

func TestRunContributorFailureKeepsColumnNull(t *testing.T) {
	store := &fakeStore{targets: mkTargets(1)}
	s := newTestService(t, store, &fakeBatcher{}, fakeContributors{fail: true}, 50)

	if _, err := s.Run(context.Background(), domain.RunRequest{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(store.applied) != 1 || store.applied[0].Contributors != nil {
		t.Fatalf("applied = %+v, contributors must stay nil", store.applied)
	}
}
