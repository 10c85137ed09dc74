package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"faceswap/internal/domain"
	"faceswap/internal/middleware"
	"faceswap/internal/providers/video"
	"faceswap/internal/service"
)

// CreateVideo starts an image-to-video job: POST /v1/videos.
func (a *App) CreateVideo(w http.ResponseWriter, r *http.Request) {
	var req videoRequest
	if err := decodeBody(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	source, err := decodeSource("sourceImage", req.SourceImage)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	id, err := a.Generator.SubmitVideo(r.Context(), service.VideoInput{
		UserID: a.currentUserID(r),
		Request: video.GenerateRequest{
			Prompt:      req.Prompt,
			Image:       &video.Image{Data: source.Data, MIME: source.MIME},
			AspectRatio: req.AspectRatio,
			RequestID:   middleware.RequestIDFromContext(r.Context()),
		},
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, startedResponse{TaskID: id, Status: "started"})
}

// VideoStatus reports a video job: GET /v1/videos/{task_id}.
func (a *App) VideoStatus(w http.ResponseWriter, r *http.Request) {
	a.writeStatus(w, r, true)
}

// VideoOperation reads a vendor operation once:
// GET /v1/videos/operations/*.
func (a *App) VideoOperation(w http.ResponseWriter, r *http.Request) {
	if a.Videos == nil {
		a.error(w, r, http.StatusNotFound, domain.CodeNotFound, "video generation is not configured")
		return
	}
	name := strings.Trim(chi.URLParam(r, "*"), "/")
	if name == "" {
		a.fail(w, r, domain.NewValidationError("operation", "operation name is required"))
		return
	}
	if !strings.HasPrefix(name, "operations/") && !strings.HasPrefix(name, "models/") {
		name = "operations/" + name
	}
	st, err := a.Videos.Check(r.Context(), name)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, st)
}
