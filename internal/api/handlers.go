package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/danieldevos90/brutally-honest-ai/internal/extract"
	"github.com/danieldevos90/brutally-honest-ai/internal/jobs"
	"github.com/danieldevos90/brutally-honest-ai/internal/model"
)

// SubmitJobRequest is the JSON body of POST /api/v1/jobs
type SubmitJobRequest struct {
	Text     string `json:"text"`
	AudioRef string `json:"audio_ref"`
	Filename string `json:"filename"`
}

// JobAccepted is returned for queued jobs
type JobAccepted struct {
	JobID         string          `json:"job_id"`
	Status        model.JobStatus `json:"status"`
	QueuePosition int             `json:"queue_position"`
}

// JobList is the body of GET /api/v1/jobs
type JobList struct {
	Jobs    []*model.Job     `json:"jobs"`
	Summary model.JobSummary `json:"summary"`
}

// ValidateRequest is the JSON body of POST /api/v1/validate
type ValidateRequest struct {
	Text string `json:"text"`
}

// IngestURLRequest is the JSON body of POST /api/v1/documents
type IngestURLRequest struct {
	URL string `json:"url"`
}

var audioExtensions = map[string]bool{
	".wav": true, ".mp3": true, ".m4a": true, ".mp4": true, ".ogg": true,
	".webm": true, ".flac": true, ".mpeg": true, ".mpga": true,
}

func (s *Server) health(c *gin.Context) {
	body := gin.H{"status": "ok"}
	if q, ok := s.deps.Jobs.(interface{ QueueDepth() int }); ok {
		body["queue_depth"] = q.QueueDepth()
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) submitJob(c *gin.Context) {
	var req SubmitJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, newError(http.StatusBadRequest, "invalid_body", fmt.Errorf("invalid request body: %w", err)))
		return
	}
	s.accept(c, jobs.SubmitRequest{
		OwnerID:  ownerID(c),
		DeviceID: c.GetHeader(DeviceHeader),
		Text:     req.Text,
		AudioRef: req.AudioRef,
		Filename: req.Filename,
	})
}

// uploadJob stores audio for transcription; documents are reduced to text
func (s *Server) uploadJob(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUploadBytes())

	header, err := c.FormFile("file")
	if err != nil {
		respondError(c, uploadError(err))
		return
	}

	req := jobs.SubmitRequest{
		OwnerID:  ownerID(c),
		DeviceID: c.GetHeader(DeviceHeader),
		Filename: header.Filename,
	}
	mimeType := header.Header.Get("Content-Type")

	if isAudioUpload(header.Filename, mimeType) {
		if s.deps.Audio == nil {
			respondError(c, fmt.Errorf("%w: audio uploads are not configured", jobs.ErrUnsupportedInput))
			return
		}
		f, err := header.Open()
		if err != nil {
			respondError(c, fmt.Errorf("open upload: %w", err))
			return
		}
		defer func() { _ = f.Close() }()

		ref, err := s.deps.Audio.Save(header.Filename, f)
		if err != nil {
			respondError(c, fmt.Errorf("store audio: %w", err))
			return
		}
		req.AudioRef = ref
		s.accept(c, req)
		return
	}

	data, err := readUpload(header)
	if err != nil {
		respondError(c, err)
		return
	}
	if mimeType == "application/octet-stream" {
		mimeType = ""
	}
	text, err := extract.NewTextExtractor().ExtractText(data, mimeType)
	if err != nil {
		respondError(c, err)
		return
	}
	req.Text = text
	s.accept(c, req)
}

func (s *Server) accept(c *gin.Context, req jobs.SubmitRequest) {
	job, err := s.deps.Jobs.Submit(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, JobAccepted{
		JobID:         job.ID,
		Status:        job.Status,
		QueuePosition: job.QueuePosition,
	})
}

func (s *Server) getJob(c *gin.Context) {
	job, err := s.deps.Jobs.Get(c.Request.Context(), ownerID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) listJobs(c *gin.Context) {
	ctx := c.Request.Context()
	list, err := s.deps.Jobs.List(ctx, ownerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	summary, err := s.deps.Jobs.Summary(ctx, ownerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if list == nil {
		list = []*model.Job{}
	}
	c.JSON(http.StatusOK, JobList{Jobs: list, Summary: summary})
}

func (s *Server) activeJobs(c *gin.Context) {
	list, err := s.deps.Jobs.Active(c.Request.Context(), ownerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if list == nil {
		list = []*model.Job{}
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) cancelJob(c *gin.Context) {
	job, err := s.deps.Jobs.Cancel(c.Request.Context(), ownerID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) reanalyzeJob(c *gin.Context) {
	job, err := s.deps.Jobs.Reanalyze(c.Request.Context(), ownerID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, JobAccepted{
		JobID:         job.ID,
		Status:        job.Status,
		QueuePosition: job.QueuePosition,
	})
}

func (s *Server) deleteJob(c *gin.Context) {
	if err := s.deps.Jobs.Delete(c.Request.Context(), ownerID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// validateText checks short text synchronously
func (s *Server) validateText(c *gin.Context) {
	var req ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, newError(http.StatusBadRequest, "invalid_body", fmt.Errorf("invalid request body: %w", err)))
		return
	}
	if limit := s.cfg.MaxSyncChars; limit > 0 && utf8.RuneCountInString(req.Text) > limit {
		respondError(c, newError(http.StatusRequestEntityTooLarge, "text_too_long",
			fmt.Errorf("text exceeds %d characters; submit it as a job instead", limit)))
		return
	}

	ctx := c.Request.Context()
	if s.cfg.SyncTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.SyncTimeout)
		defer cancel()
	}
	report, err := s.deps.Checker.Check(ctx, req.Text)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			respondError(c, newError(http.StatusGatewayTimeout, "timeout", errors.New("validation timed out")))
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// ingestDocument accepts a multipart document or a JSON {"url": ...}
func (s *Server) ingestDocument(c *gin.Context) {
	ctx := c.Request.Context()

	if strings.HasPrefix(c.ContentType(), "application/json") {
		var req IngestURLRequest
		if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.URL) == "" {
			respondError(c, newError(http.StatusBadRequest, "invalid_body", errors.New("expected {\"url\": ...}")))
			return
		}
		result, err := s.deps.Ingester.IngestURL(ctx, req.URL)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, result)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUploadBytes())
	header, err := c.FormFile("file")
	if err != nil {
		respondError(c, uploadError(err))
		return
	}
	data, err := readUpload(header)
	if err != nil {
		respondError(c, err)
		return
	}
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "application/octet-stream" {
		mimeType = ""
	}
	result, err := s.deps.Ingester.IngestDocument(ctx, header.Filename, data, mimeType)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (s *Server) maxUploadBytes() int64 {
	if s.cfg.MaxUploadBytes > 0 {
		return s.cfg.MaxUploadBytes
	}
	return 50 << 20
}

func isAudioUpload(filename, mimeType string) bool {
	if extract.IsAudio(mimeType) {
		return true
	}
	return audioExtensions[strings.ToLower(filepath.Ext(filename))]
}

func readUpload(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer func() { _ = f.Close() }()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return data, nil
}

func uploadError(err error) error {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return newError(http.StatusRequestEntityTooLarge, "too_large", err)
	}
	return newError(http.StatusBadRequest, "missing_file", fmt.Errorf("expected multipart field \"file\": %w", err))
}
