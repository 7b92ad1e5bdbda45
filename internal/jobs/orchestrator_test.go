package jobs

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danieldevos90/brutally-honest-ai/internal/model"
	"github.com/danieldevos90/brutally-honest-ai/internal/storage"
	"github.com/danieldevos90/brutally-honest-ai/internal/transcribe"
)

const owner = "device-owner-1"

// fakeAnalyzer optionally blocks on gate until it is closed
type fakeAnalyzer struct {
	gate chan struct{}
	err  error

	running    atomic.Int32
	maxRunning atomic.Int32

	mu    sync.Mutex
	texts []string
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, jobID, text string, progress func(done, total int)) (*model.CredibilityReport, error) {
	n := f.running.Add(1)
	defer f.running.Add(-1)
	for {
		m := f.maxRunning.Load()
		if n <= m || f.maxRunning.CompareAndSwap(m, n) {
			break
		}
	}
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()

	progress(1, 2)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	progress(2, 2)
	if f.err != nil {
		return nil, f.err
	}
	score := 0.8
	return &model.CredibilityReport{
		JobID:              jobID,
		OverallScore:       &score,
		Verdicts:           []model.ClaimVerdict{},
		QuestionableClaims: []model.ClaimVerdict{},
		Summary:            "ok",
	}, nil
}

func (f *fakeAnalyzer) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

type fakeTranscriber struct {
	text  string
	block bool
	calls atomic.Int32
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audio []byte, filename string) (transcribe.Transcript, error) {
	f.calls.Add(1)
	if f.block {
		<-ctx.Done()
		return transcribe.Transcript{}, ctx.Err()
	}
	return transcribe.Transcript{Text: f.text, Language: "english"}, nil
}

// historyStore records every committed version of each job
type historyStore struct {
	Store
	mu      sync.Mutex
	history map[string][]model.Job
}

func (h *historyStore) Update(ctx context.Context, id string, fn func(*model.Job) error) (*model.Job, error) {
	job, err := h.Store.Update(ctx, id, fn)
	if err == nil {
		h.mu.Lock()
		h.history[id] = append(h.history[id], *job)
		h.mu.Unlock()
	}
	return job, err
}

func (h *historyStore) versions(id string) []model.Job {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]model.Job(nil), h.history[id]...)
}

type testEnv struct {
	o     *Orchestrator
	store *historyStore
	blobs *storage.FileStore
}

func newTestEnv(t *testing.T, analyzer Analyzer, workers int, opts ...Option) *testEnv {
	t.Helper()
	store := &historyStore{Store: NewMemoryStore(), history: make(map[string][]model.Job)}
	blobs, err := storage.NewFileStore(afero.NewMemMapFs(), "/audio")
	require.NoError(t, err)

	opts = append([]Option{WithBlobStore(blobs)}, opts...)
	o := New(store, analyzer, Config{Workers: workers, TranscriptionTimeout: time.Second}, opts...)
	t.Cleanup(func() { _ = o.Shutdown(context.Background()) })
	return &testEnv{o: o, store: store, blobs: blobs}
}

func (e *testEnv) waitFor(t *testing.T, id string, cond func(*model.Job) bool) *model.Job {
	t.Helper()
	var job *model.Job
	require.Eventually(t, func() bool {
		j, err := e.o.Get(context.Background(), owner, id)
		if err != nil {
			return false
		}
		job = j
		return cond(j)
	}, 3*time.Second, 5*time.Millisecond)
	return job
}

func terminal(j *model.Job) bool { return j.Status.IsTerminal() }

func (e *testEnv) saveAudio(t *testing.T) string {
	t.Helper()
	ref, err := e.blobs.Save("memo.wav", strings.NewReader("fake audio"))
	require.NoError(t, err)
	return ref
}

func TestSubmit_Validation(t *testing.T) {
	env := newTestEnv(t, &fakeAnalyzer{}, 1)
	ctx := context.Background()

	_, err := env.o.Submit(ctx, SubmitRequest{OwnerID: owner, Text: "   "})
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = env.o.Submit(ctx, SubmitRequest{Text: "A fish can fly"})
	assert.ErrorIs(t, err, ErrMissingOwner)

	_, err = env.o.Submit(ctx, SubmitRequest{OwnerID: owner, Text: "A fish can fly", AudioRef: "x.wav"})
	assert.ErrorIs(t, err, ErrUnsupportedInput)

	// No transcriber configured
	_, err = env.o.Submit(ctx, SubmitRequest{OwnerID: owner, AudioRef: "x.wav"})
	assert.ErrorIs(t, err, ErrUnsupportedInput)

	list, err := env.o.List(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, list, "rejected input is never enqueued")
}

func TestTextJob_Completes(t *testing.T) {
	env := newTestEnv(t, &fakeAnalyzer{}, 1)

	job, err := env.o.Submit(context.Background(), SubmitRequest{OwnerID: owner, Text: "A fish can fly"})
	require.NoError(t, err)
	assert.Equal(t, model.JobKindText, job.Kind)

	done := env.waitFor(t, job.ID, terminal)
	assert.Equal(t, model.JobCompleted, done.Status)
	assert.Equal(t, 100, done.Progress)
	require.NotNil(t, done.Result)
	assert.Equal(t, job.ID, done.Result.JobID)
	assert.NotNil(t, done.StartedAt)
	assert.NotNil(t, done.CompletedAt)
	assert.Nil(t, done.Error)
}

func TestJobs_StatusAndProgressNeverGoBackwards(t *testing.T) {
	env := newTestEnv(t, &fakeAnalyzer{}, 1, WithTranscriber(&fakeTranscriber{text: "a giraffe has a long neck"}))

	job, err := env.o.Submit(context.Background(), SubmitRequest{OwnerID: owner, AudioRef: env.saveAudio(t), Filename: "memo.wav"})
	require.NoError(t, err)
	env.waitFor(t, job.ID, terminal)

	versions := env.store.versions(job.ID)
	require.NotEmpty(t, versions)
	var statuses []model.JobStatus
	for i := 1; i < len(versions); i++ {
		prev, cur := versions[i-1], versions[i]
		assert.GreaterOrEqual(t, cur.Status.Rank(), prev.Status.Rank(), "%s -> %s", prev.Status, cur.Status)
		assert.GreaterOrEqual(t, cur.Progress, prev.Progress)
	}
	for _, v := range versions {
		// The queue-position write may land before or after the worker picks the job up
		if v.Status == model.JobPending {
			continue
		}
		if len(statuses) == 0 || statuses[len(statuses)-1] != v.Status {
			statuses = append(statuses, v.Status)
		}
	}
	assert.Equal(t, []model.JobStatus{
		model.JobUploading, model.JobTranscribing, model.JobAnalyzing, model.JobCompleted,
	}, statuses)
}

// reorderedAnalyzer reports claim progress out of order
type reorderedAnalyzer struct{}

func (reorderedAnalyzer) Analyze(ctx context.Context, jobID, text string, progress func(done, total int)) (*model.CredibilityReport, error) {
	for _, done := range []int{3, 1, 2, 4} {
		progress(done, 4)
	}
	return &model.CredibilityReport{JobID: jobID, Verdicts: []model.ClaimVerdict{}, QuestionableClaims: []model.ClaimVerdict{}}, nil
}

func TestJobs_PhaseTextFollowsProgress(t *testing.T) {
	env := newTestEnv(t, reorderedAnalyzer{}, 1)

	job, err := env.o.Submit(context.Background(), SubmitRequest{OwnerID: owner, Text: "A giraffe has a long neck"})
	require.NoError(t, err)
	env.waitFor(t, job.ID, terminal)

	var phases []string
	for _, v := range env.store.versions(job.ID) {
		if strings.HasPrefix(v.Phase, "Validating claims") {
			phases = append(phases, v.Phase)
		}
	}
	assert.Equal(t, []string{"Validating claims (3/4)", "Validating claims (4/4)"}, phases)
}

func TestQueue_FiveJobsTwoWorkers(t *testing.T) {
	analyzer := &fakeAnalyzer{gate: make(chan struct{})}
	env := newTestEnv(t, analyzer, 2)
	ctx := context.Background()

	ids := make([]string, 5)
	for i := range ids {
		job, err := env.o.Submit(ctx, SubmitRequest{OwnerID: owner, Text: "claim number " + string(rune('A'+i))})
		require.NoError(t, err)
		ids[i] = job.ID
	}

	require.Eventually(t, func() bool { return analyzer.running.Load() == 2 }, 2*time.Second, 5*time.Millisecond)

	for i, id := range ids[2:] {
		job, err := env.o.Get(ctx, owner, id)
		require.NoError(t, err)
		assert.Equal(t, model.JobPending, job.Status)
		assert.Equal(t, i+1, job.QueuePosition)
		assert.Contains(t, job.Phase, "Queued (position")
	}

	assert.Equal(t, 3, env.o.QueueDepth())

	active, err := env.o.Active(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, active, 5)

	close(analyzer.gate)
	for _, id := range ids {
		job := env.waitFor(t, id, terminal)
		assert.Equal(t, model.JobCompleted, job.Status)
		assert.Zero(t, job.QueuePosition)
	}
	assert.LessOrEqual(t, analyzer.maxRunning.Load(), int32(2))
	assert.Zero(t, env.o.QueueDepth())

	// The first two submissions ran before anything queued behind them
	seen := analyzer.seen()
	require.Len(t, seen, 5)
	assert.ElementsMatch(t, []string{"claim number A", "claim number B"}, seen[:2])

	summary, err := env.o.Summary(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Total)
	assert.Equal(t, 5, summary.ByStatus[model.JobCompleted])
	assert.Zero(t, summary.Active)
}

func TestOwnerScoping(t *testing.T) {
	env := newTestEnv(t, &fakeAnalyzer{}, 1)
	ctx := context.Background()

	job, err := env.o.Submit(ctx, SubmitRequest{OwnerID: owner, Text: "A fish can fly"})
	require.NoError(t, err)

	_, err = env.o.Get(ctx, "someone-else", job.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.o.Cancel(ctx, "someone-else", job.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := env.o.List(ctx, "someone-else")
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = env.o.Get(ctx, "", job.ID)
	assert.ErrorIs(t, err, ErrMissingOwner)
}

func TestCancel_PendingJob(t *testing.T) {
	analyzer := &fakeAnalyzer{gate: make(chan struct{})}
	env := newTestEnv(t, analyzer, 1)
	ctx := context.Background()

	first, err := env.o.Submit(ctx, SubmitRequest{OwnerID: owner, Text: "first claim here"})
	require.NoError(t, err)
	second, err := env.o.Submit(ctx, SubmitRequest{OwnerID: owner, Text: "second claim here"})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return analyzer.running.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

	cancelled, err := env.o.Cancel(ctx, owner, second.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobFailed, cancelled.Status)
	require.NotNil(t, cancelled.Error)
	assert.True(t, strings.HasPrefix(*cancelled.Error, "cancelled: "))

	_, err = env.o.Cancel(ctx, owner, second.ID)
	assert.ErrorIs(t, err, model.ErrTerminal)

	close(analyzer.gate)
	env.waitFor(t, first.ID, terminal)
	assert.Equal(t, []string{"first claim here"}, analyzer.seen(), "cancelled job never runs")
}

func TestCancel_RunningJobDiscardsResult(t *testing.T) {
	analyzer := &fakeAnalyzer{gate: make(chan struct{})}
	env := newTestEnv(t, analyzer, 1)
	ctx := context.Background()

	job, err := env.o.Submit(ctx, SubmitRequest{OwnerID: owner, Text: "A fish can fly"})
	require.NoError(t, err)
	env.waitFor(t, job.ID, func(j *model.Job) bool { return j.Status == model.JobAnalyzing })

	cancelled, err := env.o.Cancel(ctx, owner, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobFailed, cancelled.Status)
	assert.Equal(t, "cancelled: stopped by user", *cancelled.Error)

	require.Eventually(t, func() bool { return analyzer.running.Load() == 0 }, 2*time.Second, 5*time.Millisecond)
	got, err := env.o.Get(ctx, owner, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobFailed, got.Status)
	assert.Nil(t, got.Result)
	assert.Equal(t, "cancelled: stopped by user", *got.Error)
}

func TestAudioJob_TranscriptStored(t *testing.T) {
	tr := &fakeTranscriber{text: "a giraffe has a long neck"}
	analyzer := &fakeAnalyzer{}
	env := newTestEnv(t, analyzer, 1, WithTranscriber(tr))

	job, err := env.o.Submit(context.Background(), SubmitRequest{OwnerID: owner, AudioRef: env.saveAudio(t), Filename: "memo.wav"})
	require.NoError(t, err)
	assert.Equal(t, model.JobKindAudio, job.Kind)

	done := env.waitFor(t, job.ID, terminal)
	assert.Equal(t, model.JobCompleted, done.Status)
	assert.Equal(t, "a giraffe has a long neck", done.Transcript)
	assert.Equal(t, "english", done.Language)
	require.NotNil(t, done.Result)
	assert.Equal(t, "a giraffe has a long neck", done.Result.Transcript)
	assert.Equal(t, []string{"a giraffe has a long neck"}, analyzer.seen())
}

func TestAudioJob_Silence(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	env := newTestEnv(t, analyzer, 1, WithTranscriber(&fakeTranscriber{text: ""}))

	job, err := env.o.Submit(context.Background(), SubmitRequest{OwnerID: owner, AudioRef: env.saveAudio(t)})
	require.NoError(t, err)

	done := env.waitFor(t, job.ID, terminal)
	assert.Equal(t, model.JobCompleted, done.Status)
	require.NotNil(t, done.Result)
	assert.Nil(t, done.Result.OverallScore)
	assert.Empty(t, done.Result.Verdicts)
	assert.Contains(t, done.Result.Warnings, noSpeechWarning)
	assert.Empty(t, analyzer.seen())
}

func TestAudioJob_TranscriptionTimeoutIsFatal(t *testing.T) {
	env := newTestEnv(t, &fakeAnalyzer{}, 1, WithTranscriber(&fakeTranscriber{block: true}))
	env.o.transcribeTimeout = 20 * time.Millisecond

	job, err := env.o.Submit(context.Background(), SubmitRequest{OwnerID: owner, AudioRef: env.saveAudio(t)})
	require.NoError(t, err)

	done := env.waitFor(t, job.ID, terminal)
	assert.Equal(t, model.JobFailed, done.Status)
	require.NotNil(t, done.Error)
	assert.Contains(t, *done.Error, "transcription timed out")
}

func TestAudioJob_MissingBlobFails(t *testing.T) {
	env := newTestEnv(t, &fakeAnalyzer{}, 1, WithTranscriber(&fakeTranscriber{text: "hello there world"}))

	job, err := env.o.Submit(context.Background(), SubmitRequest{OwnerID: owner, AudioRef: "missing.wav"})
	require.NoError(t, err)

	done := env.waitFor(t, job.ID, terminal)
	assert.Equal(t, model.JobFailed, done.Status)
	assert.Contains(t, *done.Error, "load audio")
}

func TestAudioJob_PartialTranscriptSurvivesFailure(t *testing.T) {
	analyzer := &fakeAnalyzer{err: errors.New("all evidence sources failed")}
	env := newTestEnv(t, analyzer, 1, WithTranscriber(&fakeTranscriber{text: "a fish can talk"}))

	job, err := env.o.Submit(context.Background(), SubmitRequest{OwnerID: owner, AudioRef: env.saveAudio(t)})
	require.NoError(t, err)

	done := env.waitFor(t, job.ID, terminal)
	assert.Equal(t, model.JobFailed, done.Status)
	assert.Equal(t, "a fish can talk", done.Transcript)
	assert.Contains(t, *done.Error, "analysis failed")
	assert.Nil(t, done.Result)
}

func TestReanalyze_ReusesTranscript(t *testing.T) {
	tr := &fakeTranscriber{text: "a giraffe has a long neck"}
	analyzer := &fakeAnalyzer{}
	env := newTestEnv(t, analyzer, 1, WithTranscriber(tr))
	ctx := context.Background()

	job, err := env.o.Submit(ctx, SubmitRequest{OwnerID: owner, AudioRef: env.saveAudio(t)})
	require.NoError(t, err)
	env.waitFor(t, job.ID, terminal)

	again, err := env.o.Reanalyze(ctx, owner, job.ID)
	require.NoError(t, err)
	assert.NotEqual(t, job.ID, again.ID)
	assert.Equal(t, job.ID, again.ReanalyzedFrom)

	done := env.waitFor(t, again.ID, terminal)
	assert.Equal(t, model.JobCompleted, done.Status)
	assert.EqualValues(t, 1, tr.calls.Load(), "transcript reused")
	assert.Len(t, analyzer.seen(), 2)
}

func TestReanalyze_RequiresTerminal(t *testing.T) {
	analyzer := &fakeAnalyzer{gate: make(chan struct{})}
	env := newTestEnv(t, analyzer, 1)
	ctx := context.Background()

	job, err := env.o.Submit(ctx, SubmitRequest{OwnerID: owner, Text: "A fish can fly"})
	require.NoError(t, err)

	_, err = env.o.Reanalyze(ctx, owner, job.ID)
	assert.ErrorIs(t, err, ErrNotTerminal)

	err = env.o.Delete(ctx, owner, job.ID)
	assert.ErrorIs(t, err, ErrNotTerminal)
	close(analyzer.gate)
}

func TestDelete_RemovesJobAndAudio(t *testing.T) {
	env := newTestEnv(t, &fakeAnalyzer{}, 1, WithTranscriber(&fakeTranscriber{text: "a giraffe has a long neck"}))
	ctx := context.Background()

	ref := env.saveAudio(t)
	job, err := env.o.Submit(ctx, SubmitRequest{OwnerID: owner, AudioRef: ref})
	require.NoError(t, err)
	env.waitFor(t, job.ID, terminal)

	require.NoError(t, env.o.Delete(ctx, owner, job.ID))
	_, err = env.o.Get(ctx, owner, job.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = env.blobs.Read(ref)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCleanup_RemovesOldFinishedJobs(t *testing.T) {
	var mu sync.Mutex
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	analyzer := &fakeAnalyzer{gate: make(chan struct{})}
	env := newTestEnv(t, analyzer, 1, WithClock(clock))
	ctx := context.Background()

	old, err := env.o.Submit(ctx, SubmitRequest{OwnerID: owner, Text: "old claim to check"})
	require.NoError(t, err)
	close(analyzer.gate)
	env.waitFor(t, old.ID, terminal)

	mu.Lock()
	now = now.Add(25 * time.Hour)
	mu.Unlock()

	fresh, err := env.o.Submit(ctx, SubmitRequest{OwnerID: owner, Text: "fresh claim to check"})
	require.NoError(t, err)
	env.waitFor(t, fresh.ID, terminal)

	removed, err := env.o.Cleanup(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	list, err := env.o.List(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, fresh.ID, list[0].ID)
}

func TestShutdown_FailsQueuedJobs(t *testing.T) {
	analyzer := &fakeAnalyzer{gate: make(chan struct{})}
	env := newTestEnv(t, analyzer, 1)
	ctx := context.Background()

	running, err := env.o.Submit(ctx, SubmitRequest{OwnerID: owner, Text: "first claim here"})
	require.NoError(t, err)
	queued, err := env.o.Submit(ctx, SubmitRequest{OwnerID: owner, Text: "second claim here"})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return analyzer.running.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, env.o.Shutdown(ctx))

	for _, id := range []string{running.ID, queued.ID} {
		job, err := env.o.Get(ctx, owner, id)
		require.NoError(t, err)
		assert.Equal(t, model.JobFailed, job.Status)
		assert.True(t, strings.HasPrefix(*job.Error, "cancelled: "), *job.Error)
	}

	_, err = env.o.Submit(ctx, SubmitRequest{OwnerID: owner, Text: "too late now"})
	assert.Error(t, err)
}
