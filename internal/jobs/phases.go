package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/danieldevos90/brutally-honest-ai/internal/model"
	"github.com/danieldevos90/brutally-honest-ai/internal/transcribe"
)

const (
	progressUploading    = 10
	progressTranscribing = 20
	progressTranscribed  = 40
	progressAnalyzed     = 95
)

// errStaleProgress drops progress reports that arrive after a later one
var errStaleProgress = errors.New("stale progress")

// noSpeechWarning is attached to reports of silent recordings
const noSpeechWarning = "No speech was detected in the recording"

// run drives one job through its phases. Every store write goes through
// Update, so a job cancelled or finished elsewhere stops the run with ErrTerminal.
func (o *Orchestrator) run(ctx context.Context, id string) error {
	// Store writes must land even after the job context is cancelled
	storeCtx := context.WithoutCancel(ctx)

	job, err := o.store.Get(storeCtx, id)
	if err != nil {
		return err
	}
	log := o.log.With("job_id", id, "kind", job.Kind)

	text := job.InputText
	if job.Kind == model.JobKindAudio {
		if job.Transcript != "" {
			text = job.Transcript
		} else {
			transcript, err := o.transcribeAudio(ctx, storeCtx, job)
			if err != nil {
				return o.fail(storeCtx, ctx, id, err)
			}
			if transcript.Empty() {
				log.Info("no speech detected")
				return o.finish(storeCtx, ctx, id, o.silentReport(id))
			}
			text = transcript.Text
		}
	}

	if err := o.transition(storeCtx, id, model.JobAnalyzing, progressTranscribed, "Extracting claims"); err != nil {
		return err
	}

	report, err := o.analyzer.Analyze(ctx, id, text, func(done, total int) {
		progress := progressTranscribed + (progressAnalyzed-progressTranscribed)*done/max(total, 1)
		_, _ = o.store.Update(storeCtx, id, func(j *model.Job) error {
			if j.Status.IsTerminal() {
				return model.ErrTerminal
			}
			// Claims finish concurrently; the phase text only moves with progress
			if progress <= j.Progress {
				return errStaleProgress
			}
			j.Advance(progress, fmt.Sprintf("Validating claims (%d/%d)", done, total))
			return nil
		})
	})
	if err != nil {
		return o.fail(storeCtx, ctx, id, fmt.Errorf("analysis failed: %w", err))
	}
	log.Info("analysis complete", "claims", len(report.Verdicts))
	return o.finish(storeCtx, ctx, id, report)
}

// transcribeAudio loads and transcribes the job's audio, storing the
// transcript on the job as soon as it is known
func (o *Orchestrator) transcribeAudio(ctx, storeCtx context.Context, job *model.Job) (transcribe.Transcript, error) {
	if err := o.transition(storeCtx, job.ID, model.JobUploading, progressUploading, "Loading audio"); err != nil {
		return transcribe.Transcript{}, err
	}
	if o.blobs == nil || o.transcriber == nil {
		return transcribe.Transcript{}, fmt.Errorf("%w: audio transcription is not configured", ErrUnsupportedInput)
	}
	audio, err := o.blobs.Read(job.AudioRef)
	if err != nil {
		return transcribe.Transcript{}, fmt.Errorf("load audio: %w", err)
	}

	if err := o.transition(storeCtx, job.ID, model.JobTranscribing, progressTranscribing, "Transcribing audio"); err != nil {
		return transcribe.Transcript{}, err
	}
	tctx, cancel := context.WithTimeout(ctx, o.transcribeTimeout)
	defer cancel()
	t, err := o.transcriber.Transcribe(tctx, audio, job.Filename)
	if err != nil {
		if errors.Is(tctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return transcribe.Transcript{}, fmt.Errorf("transcription timed out after %s", o.transcribeTimeout)
		}
		return transcribe.Transcript{}, fmt.Errorf("transcription failed: %w", err)
	}

	_, err = o.store.Update(storeCtx, job.ID, func(j *model.Job) error {
		if j.Status.IsTerminal() {
			return model.ErrTerminal
		}
		j.Transcript = t.Text
		j.Language = t.Language
		j.Advance(progressTranscribed, "Transcribed")
		return nil
	})
	if err != nil {
		return transcribe.Transcript{}, err
	}
	return t, nil
}

func (o *Orchestrator) silentReport(id string) *model.CredibilityReport {
	return &model.CredibilityReport{
		JobID:              id,
		Verdicts:           []model.ClaimVerdict{},
		QuestionableClaims: []model.ClaimVerdict{},
		Summary:            "No speech was detected, so there were no claims to check.",
		Warnings:           []string{noSpeechWarning},
		GeneratedAt:        o.now().UTC(),
	}
}

// transition moves the job forward; it fails if the job was finished elsewhere
func (o *Orchestrator) transition(ctx context.Context, id string, next model.JobStatus, progress int, phase string) error {
	var from model.JobStatus
	_, err := o.store.Update(ctx, id, func(j *model.Job) error {
		from = j.Status
		if err := j.Transition(next, o.now().UTC()); err != nil {
			return err
		}
		j.QueuePosition = 0
		j.Advance(progress, phase)
		return nil
	})
	if err == nil && from != next {
		o.metrics.EnterPhase(string(from), string(next))
	}
	return err
}

// finish completes the job unless it was cancelled meanwhile
func (o *Orchestrator) finish(storeCtx, ctx context.Context, id string, report *model.CredibilityReport) error {
	if ctx.Err() != nil {
		return o.fail(storeCtx, ctx, id, ctx.Err())
	}
	var from model.JobStatus
	job, err := o.store.Update(storeCtx, id, func(j *model.Job) error {
		from = j.Status
		if j.Status.IsTerminal() {
			return model.ErrTerminal
		}
		report.Transcript = j.Transcript
		return j.Complete(report, o.now().UTC())
	})
	if err != nil {
		return err
	}
	o.metrics.EnterPhase(string(from), string(job.Status))
	o.metrics.RecordJobFinished(string(job.Kind), string(job.Status), o.elapsed(job))
	return nil
}

// fail marks the job failed, keeping the transcript and any other partial result
func (o *Orchestrator) fail(storeCtx, ctx context.Context, id string, cause error) error {
	if errors.Is(cause, model.ErrTerminal) {
		return cause
	}
	msg := cause.Error()
	if ctx.Err() != nil {
		msg = "cancelled: job interrupted"
	}

	var from model.JobStatus
	job, err := o.store.Update(storeCtx, id, func(j *model.Job) error {
		from = j.Status
		return j.Fail(msg, o.now().UTC())
	})
	if err != nil {
		return err
	}
	o.metrics.EnterPhase(string(from), string(model.JobFailed))
	o.metrics.RecordJobFinished(string(job.Kind), string(model.JobFailed), o.elapsed(job))
	o.log.Warn("job failed", "job_id", id, "error", msg)
	return cause
}
