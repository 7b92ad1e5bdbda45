package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobTransition_ForwardOnly(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	job := &Job{ID: "j1", Status: JobPending, QueuePosition: 2}

	require.NoError(t, job.Transition(JobUploading, now))
	require.NotNil(t, job.StartedAt)
	assert.Equal(t, now, *job.StartedAt)

	// Skipping ahead is allowed (text jobs never transcribe)
	require.NoError(t, job.Transition(JobAnalyzing, now.Add(time.Second)))

	err := job.Transition(JobTranscribing, now)
	assert.ErrorIs(t, err, ErrBackwardTransition)
	assert.Equal(t, JobAnalyzing, job.Status)

	require.NoError(t, job.Transition(JobCompleted, now.Add(2*time.Second)))
	require.NotNil(t, job.CompletedAt)
	assert.Zero(t, job.QueuePosition)

	assert.ErrorIs(t, job.Transition(JobFailed, now), ErrTerminal)
	assert.Equal(t, JobCompleted, job.Status)
}

func TestJobTransition_UnknownStatus(t *testing.T) {
	job := &Job{Status: JobPending}
	assert.Error(t, job.Transition(JobStatus("paused"), time.Now()))
}

func TestJobFail_FromPendingHasNoStart(t *testing.T) {
	job := &Job{Status: JobPending, Transcript: "partial"}
	require.NoError(t, job.Fail("cancelled: by owner", time.Now()))

	assert.Equal(t, JobFailed, job.Status)
	assert.Nil(t, job.StartedAt)
	require.NotNil(t, job.Error)
	assert.Equal(t, "cancelled: by owner", *job.Error)
	assert.Equal(t, "partial", job.Transcript, "partial results survive failure")
}

func TestJobAdvance_Monotonic(t *testing.T) {
	job := &Job{}
	job.Advance(40, "Transcribed")
	job.Advance(20, "")
	assert.Equal(t, 40, job.Progress)
	assert.Equal(t, "Transcribed", job.Phase)

	job.Advance(250, "Done")
	assert.Equal(t, 100, job.Progress)
}

func TestJobComplete(t *testing.T) {
	job := &Job{Status: JobAnalyzing, Progress: 80}
	score := 0.7
	require.NoError(t, job.Complete(&CredibilityReport{OverallScore: &score}, time.Now()))

	assert.Equal(t, 100, job.Progress)
	assert.Equal(t, JobCompleted, job.Status)
	assert.Equal(t, 0.7, *job.Result.OverallScore)
}

func TestJobClone_IsDeep(t *testing.T) {
	score := 0.5
	msg := "boom"
	now := time.Now()
	job := &Job{
		ID:        "j1",
		StartedAt: &now,
		Error:     &msg,
		Result: &CredibilityReport{
			OverallScore: &score,
			Verdicts: []ClaimVerdict{{
				ClaimID:  "claim-1",
				Evidence: []EvidenceItem{{SourceID: "doc#0"}},
			}},
			Warnings: []string{"w"},
		},
	}

	c := job.Clone()
	*c.Result.OverallScore = 0.9
	c.Result.Verdicts[0].Evidence[0].SourceID = "changed"
	c.Result.Warnings[0] = "changed"
	*c.Error = "changed"

	assert.Equal(t, 0.5, *job.Result.OverallScore)
	assert.Equal(t, "doc#0", job.Result.Verdicts[0].Evidence[0].SourceID)
	assert.Equal(t, "w", job.Result.Warnings[0])
	assert.Equal(t, "boom", *job.Error)

	var nilJob *Job
	assert.Nil(t, nilJob.Clone())
}

func TestJobStatusPredicates(t *testing.T) {
	assert.True(t, JobCompleted.IsTerminal())
	assert.True(t, JobFailed.IsTerminal())
	assert.False(t, JobAnalyzing.IsTerminal())
	assert.True(t, JobTranscribing.IsRunning())
	assert.False(t, JobPending.IsRunning())
}

func TestParseVerdictStatus(t *testing.T) {
	s, ok := ParseVerdictStatus("NUANCED")
	assert.True(t, ok)
	assert.Equal(t, StatusNuanced, s)

	_, ok = ParseVerdictStatus("NO_DATA")
	assert.False(t, ok, "NO_DATA is reserved for empty evidence")

	_, ok = ParseVerdictStatus("verified")
	assert.False(t, ok)
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 0.0, ClampScore(-0.1))
	assert.Equal(t, 1.0, ClampScore(1.5))
	assert.Equal(t, 0.4, ClampScore(0.4))
	nan := 0.0
	assert.Equal(t, 0.0, ClampScore(nan/nan))
}

func TestSourcePrecedence(t *testing.T) {
	assert.Less(t, SourceProfileFact.Precedence(), SourceDocument.Precedence())
}
