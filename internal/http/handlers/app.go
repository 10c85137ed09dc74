package handlers

import (
	"context"
	"errors"
	"net/http"

	"faceswap/internal/domain"
	"faceswap/internal/i18n"
	"faceswap/internal/infra"
	"faceswap/internal/middleware"
	"faceswap/internal/providers/video"
	"faceswap/internal/service"
)

// Generator submits generation jobs.
type Generator interface {
	SubmitImage(ctx context.Context, in service.ImageInput) (string, error)
	SubmitPipeline(ctx context.Context, in service.PipelineInput) (string, error)
	SubmitVideo(ctx context.Context, in service.VideoInput) (string, error)
}

// JobReader reads job records.
type JobReader interface {
	Status(ctx context.Context, id string) (*domain.Job, error)
}

// VideoOperations reads vendor operations directly.
type VideoOperations interface {
	Check(ctx context.Context, name string) (*video.OperationStatus, error)
}

// LedgerReader proxies the ledger for the authenticated user.
type LedgerReader interface {
	Balance(ctx context.Context, userID string) (*domain.UserCredits, error)
	GetGenerationHistory(ctx context.Context, userID string, limit int) ([]domain.GenerationRecord, error)
	CleanupExpired(ctx context.Context, userID string) (int64, error)
}

// App serves the generation API.
type App struct {
	Generator Generator
	Jobs      JobReader
	Videos    VideoOperations
	Ledger    LedgerReader
	Logger    *infra.Logger
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	middleware.WriteJSON(w, code, v)
}

func (a *App) error(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	middleware.WriteError(w, r, status, code, msg)
}

// fail maps err onto a status and a localized message.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		a.logger().Error().Err(err).Str("request_id", middleware.RequestIDFromContext(r.Context())).Msg("api: request failed")
	}
	locale := middleware.LocaleFromContext(r.Context())
	msg := i18n.ErrorMessage(locale, err)
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		msg = verr.Error()
	}
	a.error(w, r, status, domain.ErrorCode(err), msg)
}

func statusFor(err error) int {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientCredits):
		return http.StatusPaymentRequired
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case domain.IsTransient(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrProviderFailure):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

func (a *App) logger() *infra.Logger {
	if a.Logger == nil {
		return infra.NopLogger()
	}
	return a.Logger
}
