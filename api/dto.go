/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  The wire vocabulary is the one the existing clients speak: request
  bodies use lower-camel Italian field names (dataInizio, categoriaId),
  response entities use the PascalCase Italian names the tables and forms
  bind to (RichiestaID, DataInizio, GiorniTotaliApprovati). List
  responses are wrapped in {"data": [...]}; errors are {"error": "..."}.

VALIDATION:
  Validation is done in the domain layer, not in DTOs. DTOs are pure
  data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - leave/types.go: Domain model these map from
*/
package api

import (
	"time"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// REQUEST BODIES
// =============================================================================

// LoginBody is the credentials payload for POST /login.
type LoginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterBody is the payload for POST /register.
type RegisterBody struct {
	Nome     string `json:"nome"`
	Cognome  string `json:"cognome"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Ruolo    string `json:"ruolo,omitempty"`
}

// CreateCategoryBody is the payload for POST /categorie.
type CreateCategoryBody struct {
	CategoriaID int    `json:"categoriaId"`
	Descrizione string `json:"descrizione"`
}

// UpdateCategoryBody is the payload for PUT /categorie/{id}.
type UpdateCategoryBody struct {
	Descrizione string `json:"descrizione"`
}

// CreateRequestBody is the payload for POST /permessi.
type CreateRequestBody struct {
	DataInizio  string `json:"dataInizio"`
	DataFine    string `json:"dataFine"`
	CategoriaID int    `json:"categoriaId"`
	Motivazione string `json:"motivazione,omitempty"`
	UtenteID    int    `json:"utenteId"`
}

// UpdateRequestBody is the patch payload for PUT /permessi/{id}.
// Absent fields keep their current value.
type UpdateRequestBody struct {
	DataInizio  *string `json:"dataInizio,omitempty"`
	DataFine    *string `json:"dataFine,omitempty"`
	CategoriaID *int    `json:"categoriaId,omitempty"`
	Motivazione *string `json:"motivazione,omitempty"`
}

// EvaluateBody is the payload for PUT /permessi/{id}/valuta.
type EvaluateBody struct {
	Stato               string `json:"stato"`
	UtenteValutazioneID int    `json:"utenteValutazioneId"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// UserDTO represents the authenticated principal in responses.
type UserDTO struct {
	ID      int    `json:"id"`
	Nome    string `json:"nome"`
	Cognome string `json:"cognome"`
	Email   string `json:"email"`
	Ruolo   string `json:"ruolo"`
}

// CategoryDTO represents a category in responses.
type CategoryDTO struct {
	CategoriaID int    `json:"CategoriaID"`
	Descrizione string `json:"Descrizione"`
}

// RequestDTO represents a leave request in responses.
type RequestDTO struct {
	RichiestaID          int    `json:"RichiestaID"`
	UtenteID             int    `json:"UtenteID"`
	RichiedenteNome      string `json:"RichiedenteNome,omitempty"`
	RichiedenteCognome   string `json:"RichiedenteCognome,omitempty"`
	CategoriaID          int    `json:"CategoriaID"`
	CategoriaDescrizione string `json:"CategoriaDescrizione,omitempty"`
	DataInizio           string `json:"DataInizio"`
	DataFine             string `json:"DataFine"`
	Motivazione          string `json:"Motivazione,omitempty"`
	Stato                string `json:"Stato"`
	DataRichiesta        string `json:"DataRichiesta"`
	UtenteValutazioneID  *int   `json:"UtenteValutazioneID,omitempty"`
	ValutatoreNome       string `json:"ValutatoreNome,omitempty"`
	ValutatoreCognome    string `json:"ValutatoreCognome,omitempty"`
	DataValutazione      string `json:"DataValutazione,omitempty"`
}

// StatRowDTO is one aggregate statistics row.
type StatRowDTO struct {
	UtenteID              int    `json:"UtenteID"`
	Nome                  string `json:"Nome"`
	Cognome               string `json:"Cognome"`
	Email                 string `json:"Email"`
	Mese                  int    `json:"Mese"`
	Anno                  int    `json:"Anno"`
	NumeroRichieste       int    `json:"NumeroRichieste"`
	GiorniTotaliRichiesti int    `json:"GiorniTotaliRichiesti"`
	GiorniTotaliApprovati int    `json:"GiorniTotaliApprovati"`
}

// ListResponse wraps list payloads.
type ListResponse struct {
	Data any `json:"data"`
}

// AuthStatusResponse is the shape of GET /auth/me.
type AuthStatusResponse struct {
	Authenticated bool     `json:"authenticated"`
	User          *UserDTO `json:"user"`
}

// MessageResponse carries a human-readable confirmation.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toUserDTO(u leave.User) UserDTO {
	return UserDTO{
		ID:      u.ID,
		Nome:    u.Nome,
		Cognome: u.Cognome,
		Email:   u.Email,
		Ruolo:   string(u.Role),
	}
}

func toCategoryDTO(c leave.Category) CategoryDTO {
	return CategoryDTO{CategoriaID: c.ID, Descrizione: c.Description}
}

func toCategoryDTOs(categories []leave.Category) []CategoryDTO {
	dtos := make([]CategoryDTO, len(categories))
	for i, c := range categories {
		dtos[i] = toCategoryDTO(c)
	}
	return dtos
}

func toRequestDTO(d leave.RequestDetail) RequestDTO {
	dto := RequestDTO{
		RichiestaID:          d.ID,
		UtenteID:             d.UserID,
		RichiedenteNome:      d.RequesterNome,
		RichiedenteCognome:   d.RequesterCognome,
		CategoriaID:          d.CategoryID,
		CategoriaDescrizione: d.CategoryDescription,
		DataInizio:           d.StartDate.Format("2006-01-02"),
		DataFine:             d.EndDate.Format("2006-01-02"),
		Motivazione:          d.Motivation,
		Stato:                string(d.Status),
		DataRichiesta:        d.CreatedAt.Format(time.RFC3339),
		UtenteValutazioneID:  d.EvaluatorID,
		ValutatoreNome:       d.EvaluatorNome,
		ValutatoreCognome:    d.EvaluatorCognome,
	}
	if d.EvaluatedAt != nil {
		dto.DataValutazione = d.EvaluatedAt.Format(time.RFC3339)
	}
	return dto
}

func toRequestDTOs(details []leave.RequestDetail) []RequestDTO {
	dtos := make([]RequestDTO, len(details))
	for i, d := range details {
		dtos[i] = toRequestDTO(d)
	}
	return dtos
}

func toStatRowDTOs(rows []leave.StatRow) []StatRowDTO {
	dtos := make([]StatRowDTO, len(rows))
	for i, r := range rows {
		dtos[i] = StatRowDTO{
			UtenteID:              r.UserID,
			Nome:                  r.Nome,
			Cognome:               r.Cognome,
			Email:                 r.Email,
			Mese:                  r.Month,
			Anno:                  r.Year,
			NumeroRichieste:       r.RequestCount,
			GiorniTotaliRichiesti: r.DaysRequested,
			GiorniTotaliApprovati: r.DaysApproved,
		}
	}
	return dtos
}
