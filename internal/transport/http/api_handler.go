package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"caretoplay/internal/domain"
	"caretoplay/internal/flow"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// APIHandler exposes the quiz set backend as a JSON API.
type APIHandler struct {
	backend flow.Backend
	log     zerolog.Logger
}

func NewAPIHandler(backend flow.Backend, logger zerolog.Logger) *APIHandler {
	return &APIHandler{backend: backend, log: logger}
}

type successResponse struct {
	Success bool `json:"success"`
}

type createRequest struct {
	Ref string `json:"ref"`
}

type createResponse struct {
	QuizSetKey string `json:"quizSetKey"`
}

type saveRequest struct {
	QuizSetKey  string         `json:"quizSetKey"`
	QuizSetData domain.QuizSet `json:"quizSetData"`
}

type subscribeRequest struct {
	QuizSetKey   string              `json:"quizSetKey"`
	Name         string              `json:"name"`
	Email        string              `json:"email"`
	PersonalInfo domain.PersonalInfo `json:"personalInfo"`
}

type snapRequest struct {
	QuizSetKey string          `json:"quizSetKey"`
	Type       domain.SnapType `json:"type"`
}

type keyRequest struct {
	QuizSetKey string `json:"quizSetKey"`
}

// CreateQuizSet handles POST /api/createQuizSet.
func (h *APIHandler) CreateQuizSet(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}
	key, err := h.backend.CreateQuizSet(r.Context(), req.Ref)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, createResponse{QuizSetKey: key})
}

// FetchQuizSet handles GET /api/fetchQuizSet/{quizSetKey}.
func (h *APIHandler) FetchQuizSet(w http.ResponseWriter, r *http.Request) {
	quizSet, err := h.backend.FetchQuizSet(r.Context(), mux.Vars(r)["quizSetKey"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quizSet)
}

// SaveQuizSetData handles POST /api/saveQuizSetData.
func (h *APIHandler) SaveQuizSetData(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	quizSet := req.QuizSetData
	if req.QuizSetKey != "" {
		quizSet.QuizSetKey = req.QuizSetKey
	}
	if err := h.backend.SaveQuizSetData(r.Context(), quizSet); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// Subscribe handles POST /api/subscribe.
func (h *APIHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	info := domain.PersonalInfo{}
	for k, v := range req.PersonalInfo {
		info[k] = v
	}
	if req.Email != "" {
		info["email"] = req.Email
	}
	if err := h.backend.Subscribe(r.Context(), req.QuizSetKey, req.Name, info); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// Snap handles POST /api/snap.
func (h *APIHandler) Snap(w http.ResponseWriter, r *http.Request) {
	var req snapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.backend.Snap(r.Context(), req.Type, req.QuizSetKey); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// BuildPage handles POST /api/buildPage.
func (h *APIHandler) BuildPage(w http.ResponseWriter, r *http.Request) {
	var req keyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.backend.BuildPage(r.Context(), req.QuizSetKey); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (h *APIHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidQuizSetKey),
		errors.Is(err, domain.ErrInvalidEmail),
		errors.Is(err, domain.ErrUnknownSnapType),
		errors.Is(err, domain.ErrQuizMisaligned):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrQuizSetNotFound), errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrStatusRegression), errors.Is(err, domain.ErrQuizSetFinished):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

type errorPayload struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Success bool         `json:"success"`
	Error   errorPayload `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: errorPayload{Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
