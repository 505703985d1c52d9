/*
handlers.go - HTTP API handlers for the leave engine

PURPOSE:
  Exposes the leave engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Auth:
    POST   /login                     Login (sets HTTP-only session cookie)
    POST   /register                  Register a new account
    GET    /auth/me                   Verify session
    POST   /auth/logout               Logout (clears cookie)

  Categories:
    GET    /categorie                 List categories
    POST   /categorie                 Create category (manager)
    PUT    /categorie/{id}            Update category description (manager)
    DELETE /categorie/{id}            Delete category (manager)

  Requests:
    GET    /permessi                  List requests (employee: own only)
    POST   /permessi                  Create request
    PUT    /permessi/{id}             Edit own pending request
    PUT    /permessi/{id}/valuta      Approve/reject (manager)
    DELETE /permessi/{id}             Delete request

  Statistics:
    GET    /permessi/statistiche          Aggregate rows (manager)
    GET    /permessi/statistiche/export   XLSX download (manager)

ERROR HANDLING:
  Domain errors map to HTTP statuses:
  - 400: validation (bad dates, missing fields, oversized description)
  - 401: no valid session
  - 403: role lacks capability, or resource belongs to someone else
  - 404: unknown id
  - 409: duplicate category id, invalid state transition, category in use
  - 500: everything else

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/warp/leave-engine/auth"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/report"
)

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *leave.Service
	Auth    *auth.Service
}

// NewHandler creates a new handler.
func NewHandler(service *leave.Service, gateway *auth.Service) *Handler {
	return &Handler{Service: service, Auth: gateway}
}

// =============================================================================
// AUTH HANDLERS
// =============================================================================

// Login authenticates credentials and sets the session cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body LoginBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, token, err := h.Auth.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		if errors.Is(err, leave.ErrUnauthenticated) {
			writeError(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		writeDomainError(w, err)
		return
	}

	setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Login effettuato",
		"user":    toUserDTO(user),
	})
}

// Register creates a new account.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var body RegisterBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.Auth.Register(r.Context(), auth.RegisterInput{
		Nome:     body.Nome,
		Cognome:  body.Cognome,
		Email:    body.Email,
		Password: body.Password,
		Role:     leave.Role(body.Ruolo),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"user": toUserDTO(user)})
}

// Me reports the session status. Never fails: an absent or invalid
// session yields {"authenticated": false}.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u := principal(r)
	if u == nil {
		writeJSON(w, http.StatusOK, AuthStatusResponse{Authenticated: false})
		return
	}
	dto := toUserDTO(*u)
	writeJSON(w, http.StatusOK, AuthStatusResponse{Authenticated: true, User: &dto})
}

// Logout clears the session cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	clearSessionCookie(w)
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Logout effettuato"})
}

// =============================================================================
// CATEGORY HANDLERS
// =============================================================================

// ListCategories returns all categories.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.Service.ListCategories(r.Context(), principal(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse{Data: toCategoryDTOs(categories)})
}

// CreateCategory registers a new category.
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var body CreateCategoryBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	c, err := h.Service.CreateCategory(r.Context(), principal(r), body.CategoriaID, body.Descrizione)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCategoryDTO(c))
}

// UpdateCategory replaces a category description.
func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body UpdateCategoryBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	c, err := h.Service.UpdateCategory(r.Context(), principal(r), id, body.Descrizione)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCategoryDTO(c))
}

// DeleteCategory removes a category.
func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.Service.DeleteCategory(r.Context(), principal(r), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Categoria eliminata"})
}

// =============================================================================
// REQUEST HANDLERS
// =============================================================================

// ListRequests returns requests visible to the caller, filter-scoped.
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	var f leave.RequestFilter
	if v := r.URL.Query().Get("utenteId"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid utenteId")
			return
		}
		f.UserID = &id
	}
	if v := r.URL.Query().Get("stato"); v != "" {
		status := leave.Status(v)
		if !status.Valid() {
			writeError(w, http.StatusBadRequest, "Invalid stato")
			return
		}
		f.Status = &status
	}
	if v := r.URL.Query().Get("categoriaId"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid categoriaId")
			return
		}
		f.CategoryID = &id
	}

	details, err := h.Service.ListRequests(r.Context(), principal(r), f)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse{Data: toRequestDTOs(details)})
}

// CreateRequest submits a new leave request.
func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var body CreateRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	start, err := parseDate(body.DataInizio)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid dataInizio format (use YYYY-MM-DD)")
		return
	}
	end, err := parseDate(body.DataFine)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid dataFine format (use YYYY-MM-DD)")
		return
	}

	caller := principal(r)
	userID := body.UtenteID
	if userID == 0 && caller != nil {
		userID = caller.ID
	}

	req, err := h.Service.CreateRequest(r.Context(), caller, leave.CreateRequestInput{
		UserID:     userID,
		CategoryID: body.CategoriaID,
		StartDate:  start,
		EndDate:    end,
		Motivation: body.Motivazione,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	detail, err := h.Service.GetRequest(r.Context(), caller, req.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestDTO(*detail))
}

// UpdateRequest edits a pending request owned by the caller.
func (h *Handler) UpdateRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body UpdateRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var patch leave.UpdateRequestInput
	if body.DataInizio != nil {
		start, err := parseDate(*body.DataInizio)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid dataInizio format (use YYYY-MM-DD)")
			return
		}
		patch.StartDate = &start
	}
	if body.DataFine != nil {
		end, err := parseDate(*body.DataFine)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid dataFine format (use YYYY-MM-DD)")
			return
		}
		patch.EndDate = &end
	}
	patch.CategoryID = body.CategoriaID
	patch.Motivation = body.Motivazione

	detail, err := h.Service.Update(r.Context(), principal(r), id, patch)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(*detail))
}

// EvaluateRequest approves or rejects a pending request.
func (h *Handler) EvaluateRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body EvaluateBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	caller := principal(r)
	// The evaluator is the session principal; a mismatched body id is a
	// client bug, not an impersonation channel.
	if caller != nil && body.UtenteValutazioneID != 0 && body.UtenteValutazioneID != caller.ID {
		writeError(w, http.StatusBadRequest, "utenteValutazioneId does not match the session user")
		return
	}

	detail, err := h.Service.Evaluate(r.Context(), caller, id, leave.Status(body.Stato))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(*detail))
}

// DeleteRequest removes a request.
func (h *Handler) DeleteRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.Service.Delete(r.Context(), principal(r), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Richiesta eliminata"})
}

// =============================================================================
// STATISTICS HANDLERS
// =============================================================================

func statsFilterFromQuery(w http.ResponseWriter, r *http.Request) (leave.StatsFilter, bool) {
	var f leave.StatsFilter
	if v := r.URL.Query().Get("utenteId"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid utenteId")
			return f, false
		}
		f.UserID = &id
	}
	if v := r.URL.Query().Get("mese"); v != "" {
		month, err := strconv.Atoi(v)
		if err != nil || month < 1 || month > 12 {
			writeError(w, http.StatusBadRequest, "Invalid mese")
			return f, false
		}
		f.Month = &month
	}
	if v := r.URL.Query().Get("anno"); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid anno")
			return f, false
		}
		f.Year = &year
	}
	return f, true
}

// Statistics returns aggregate rows over approved requests.
func (h *Handler) Statistics(w http.ResponseWriter, r *http.Request) {
	f, ok := statsFilterFromQuery(w, r)
	if !ok {
		return
	}
	rows, err := h.Service.Statistics(r.Context(), principal(r), f)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse{Data: toStatRowDTOs(rows)})
}

// ExportStatistics streams the statistics view as an XLSX workbook.
func (h *Handler) ExportStatistics(w http.ResponseWriter, r *http.Request) {
	f, ok := statsFilterFromQuery(w, r)
	if !ok {
		return
	}
	rows, err := h.Service.Statistics(r.Context(), principal(r), f)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+report.StatsFilename(time.Now())+`"`)
	if err := report.WriteStatsXLSX(w, rows); err != nil {
		// Headers are already written; nothing sensible left to send.
		return
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid id")
		return 0, false
	}
	return id, true
}

func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeDomainError maps domain errors to HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, leave.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, leave.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "Not authenticated")
	case errors.Is(err, leave.ErrForbidden):
		writeError(w, http.StatusForbidden, "Operation not permitted")
	case errors.Is(err, leave.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, leave.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
