package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"faceswap/internal/domain"
	"faceswap/internal/i18n"
	"faceswap/internal/middleware"
	"faceswap/internal/pipeline"
	"faceswap/internal/providers/image"
	"faceswap/internal/service"
)

// CreateJob starts a single-provider edit: POST /v1/jobs/{provider}.
func (a *App) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req jobRequest
	if err := decodeBody(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	sources, err := req.sources()
	if err != nil {
		a.fail(w, r, err)
		return
	}
	reference, err := decodeOptional("referenceImage", req.ReferenceImage)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	id, err := a.Generator.SubmitImage(r.Context(), service.ImageInput{
		UserID:   a.currentUserID(r),
		Provider: chi.URLParam(r, "provider"),
		Request: image.GenerateRequest{
			SourceImages: sources,
			Reference:    reference,
			Prompt:       req.Prompt,
			RequestID:    middleware.RequestIDFromContext(r.Context()),
			Locale:       middleware.LocaleFromContext(r.Context()),
		},
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, startedResponse{TaskID: id, Status: "started"})
}

// CreatePipeline starts the face-swap pipeline: POST /v1/pipelines/faceswap.
func (a *App) CreatePipeline(w http.ResponseWriter, r *http.Request) {
	var req pipelineRequest
	if err := decodeBody(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	source, err := decodeSource("sourceImage", req.SourceImage)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	reference, err := decodeOptional("referenceImage", req.ReferenceImage)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	id, err := a.Generator.SubmitPipeline(r.Context(), service.PipelineInput{
		UserID: a.currentUserID(r),
		Request: pipeline.Request{
			Source:         source,
			Reference:      reference,
			Prompt:         req.Prompt,
			ClothingPrompt: req.ClothingPrompt,
			Provider:       req.Provider,
			RequestID:      middleware.RequestIDFromContext(r.Context()),
			Locale:         middleware.LocaleFromContext(r.Context()),
		},
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, startedResponse{TaskID: id, Status: "started"})
}

// JobStatus reports a job: GET /v1/jobs/{task_id}.
func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	a.writeStatus(w, r, false)
}

type statusResponse struct {
	TaskID      string           `json:"taskId"`
	Status      string           `json:"status"`
	Result      *domain.Artifact `json:"result,omitempty"`
	Method      string           `json:"method,omitempty"`
	Error       string           `json:"error,omitempty"`
	Code        string           `json:"code,omitempty"`
	Detail      string           `json:"detail,omitempty"`
	Reasons     []string         `json:"reasons,omitempty"`
	Expired     bool             `json:"expired,omitempty"`
	RAIFiltered bool             `json:"raiFiltered,omitempty"`
	RAIReasons  []string         `json:"raiReasons,omitempty"`
}

// writeStatus renders a job for its owner. Unknown, expired and foreign jobs
// all read as not_found. In video mode content rejections are reported as
// filtered.
func (a *App) writeStatus(w http.ResponseWriter, r *http.Request, videoMode bool) {
	id := chi.URLParam(r, "task_id")
	job, err := a.Jobs.Status(r.Context(), id)
	if err == nil && job.UserID != "" && job.UserID != a.currentUserID(r) {
		err = domain.ErrNotFound
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.json(w, http.StatusOK, statusResponse{
			TaskID:  id,
			Status:  domain.CodeNotFound,
			Expired: errors.Is(err, domain.ErrJobExpired),
		})
		return
	case err != nil:
		a.fail(w, r, err)
		return
	}

	resp := statusResponse{TaskID: job.ID, Status: string(job.Status)}
	switch job.Status {
	case domain.JobStatusCompleted:
		resp.Result = job.Result
		resp.Method = job.Method
	case domain.JobStatusFailed:
		locale := middleware.LocaleFromContext(r.Context())
		resp.Error = i18n.UserMessage(locale, job.ErrorCode, job.Rejection)
		resp.Code = job.ErrorCode
		resp.Detail = job.Error
		resp.Reasons = job.Reasons
		if videoMode && job.ErrorCode == domain.CodeContentRejected {
			resp.Status = "filtered"
			resp.RAIFiltered = true
			resp.RAIReasons = job.Reasons
		}
	}
	a.json(w, http.StatusOK, resp)
}
