package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/userstats/userstats/internal/metrics"
	"github.com/userstats/userstats/internal/model"
	"github.com/userstats/userstats/internal/service"
	"github.com/userstats/userstats/internal/validation"
)

// Response messages.
const (
	msgCreated      = "User Successfully Created"
	msgListed       = "Users Successfully fetched"
	msgFetched      = "User Successfully fetched"
	msgUpdated      = "User Successfully updated"
	msgDeleted      = "User Successfully deleted"
	msgStats        = "User statistics fetched successfully"
	msgNotFound     = "User not found"
	msgServerError  = "server error"
	msgInvalidBody  = "invalid request body"
	msgBodyTooLarge = "request body too large"
)

// errInvalidBody reports a request body that is not a JSON object.
var errInvalidBody = errors.New(msgInvalidBody)

// UserHandler handles HTTP requests for user operations.
type UserHandler struct {
	svc     *service.UserService
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(svc *service.UserService, logger *slog.Logger, recorder metrics.Recorder) *UserHandler {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &UserHandler{
		svc:     svc,
		logger:  logger,
		metrics: recorder,
	}
}

// Create handles POST /.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeFields(r)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	user, err := h.svc.CreateUser(r.Context(), fields)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.logger.Info("user_created", "user_id", user.ID)

	writeSuccess(w, http.StatusCreated, msgCreated, user)
}

// List handles GET /.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	query, err := validation.ParseList(r.URL.Query())
	if err != nil {
		h.metrics.IncValidationFailure("list")
		h.handleError(w, r, err)
		return
	}

	out, err := h.svc.ListUsers(r.Context(), query)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, Envelope{
		Status:  true,
		Message: msgListed,
		Data:    out.Users,
		Meta:    &out.Meta,
	})
}

// Stats handles GET /stats.
func (h *UserHandler) Stats(w http.ResponseWriter, r *http.Request) {
	query, err := validation.ParseStats(r.URL.Query())
	if err != nil {
		h.metrics.IncValidationFailure("stats")
		h.handleError(w, r, err)
		return
	}

	stats, err := h.svc.UserStats(r.Context(), query)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, msgStats, stats)
}

// Get handles GET /{userId}. A missing user is a successful response with
// null data.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "userId")

	user, err := h.svc.GetUser(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			writeSuccess(w, http.StatusOK, msgFetched, nullData)
			return
		}
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, msgFetched, user)
}

// Update handles PATCH /{userId}.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "userId")

	fields, err := decodeFields(r)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	user, err := h.svc.UpdateUser(r.Context(), id, fields)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.logger.Info("user_updated", "user_id", user.ID)

	writeSuccess(w, http.StatusOK, msgUpdated, user)
}

// Delete handles DELETE /{userId}.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "userId")

	if err := h.svc.DeleteUser(r.Context(), id); err != nil {
		h.handleError(w, r, err)
		return
	}

	h.logger.Info("user_deleted", "user_id", id)

	writeSuccess(w, http.StatusOK, msgDeleted, nil)
}

// handleError maps service and validation errors to HTTP responses.
// Validation failures keep the 500 status existing clients rely on.
func (h *UserHandler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr   *validation.Error
		maxErr *http.MaxBytesError
	)

	switch {
	case errors.As(err, &verr):
		h.logger.Warn("invalid_query", "field", verr.Field, "error", verr.Message, "path", r.URL.Path)
		writeFailure(w, http.StatusInternalServerError, verr.Message)
	case errors.Is(err, service.ErrUserNotFound):
		writeFailure(w, http.StatusNotFound, msgNotFound)
	case errors.As(err, &maxErr):
		writeFailure(w, http.StatusRequestEntityTooLarge, msgBodyTooLarge)
	default:
		h.logger.Error("internal_error", "error", err, "path", r.URL.Path)
		msg := err.Error()
		if msg == "" {
			msg = msgServerError
		}
		writeFailure(w, http.StatusInternalServerError, msg)
	}
}

// decodeFields reads the request body as a JSON object. An empty body is an
// empty object.
func decodeFields(r *http.Request) (model.Fields, error) {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()

	var fields model.Fields
	if err := dec.Decode(&fields); err != nil {
		if errors.Is(err, io.EOF) {
			return model.Fields{}, nil
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, err
		}
		return nil, errInvalidBody
	}

	if fields == nil {
		// literal null
		return model.Fields{}, nil
	}

	return fields, nil
}
