/*
Package leave provides the core leave-request management engine.

PURPOSE:
  This package contains the domain model and business rules for
  permission/leave requests: who may create, view, transition and delete a
  request, and how aggregate statistics are derived from approved requests.

KEY CONCEPTS IN THIS FILE (types.go):
  - User: An authenticated principal with a role (employee or manager)
  - Category: A classification for leave requests (vacation, sick leave, ...)
  - Request: A single leave request with a lifecycle
  - Status: In attesa -> Approvato | Rifiutato (terminal)

DESIGN PRINCIPLES:
  1. Explicit identity: every operation takes the calling principal; the
     engine never infers identity from ambient state.
  2. Centralized authorization: a single capability table (authz.go) is
     consulted by every operation, never re-derived ad hoc.
  3. At-most-one transition: a request leaves "In attesa" exactly once.

SEE ALSO:
  - authz.go: Role capability table
  - service.go: Request lifecycle and category registry operations
  - stats.go: Statistics aggregation over approved requests
*/
package leave

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ROLES
// =============================================================================

// Role is the principal's role. Values match the wire vocabulary used by
// the API clients ("Dipendente" = employee, "Responsabile" = manager).
type Role string

const (
	RoleEmployee Role = "Dipendente"
	RoleManager  Role = "Responsabile"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleEmployee || r == RoleManager
}

// =============================================================================
// USER - Authenticated principal
// =============================================================================

// User is an authenticated principal. The role is immutable after creation;
// there is no role-change operation.
type User struct {
	ID        int
	Nome      string
	Cognome   string
	Email     string
	Role      Role
	// PasswordHash is the bcrypt hash of the user's password.
	// Never serialized to clients.
	PasswordHash string
	CreatedAt    time.Time
}

// IsManager reports whether the user holds the manager role.
func (u *User) IsManager() bool {
	return u != nil && u.Role == RoleManager
}

// =============================================================================
// CATEGORY
// =============================================================================

// MaxCategoryDescription is the maximum length of a category description.
const MaxCategoryDescription = 200

// Category classifies leave requests. The identifier is caller-supplied
// and immutable; only the description may be updated.
type Category struct {
	ID          int
	Description string
	CreatedAt   time.Time
}

// =============================================================================
// REQUEST - Leave request with lifecycle
// =============================================================================

// Status is the lifecycle state of a request. Values match the wire
// vocabulary ("In attesa", "Approvato", "Rifiutato").
type Status string

const (
	StatusPending  Status = "In attesa"
	StatusApproved Status = "Approvato"
	StatusRejected Status = "Rifiutato"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

// Terminal reports whether s is a terminal state.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Request is a single leave request. Dates are date-granular (UTC midnight);
// EndDate >= StartDate always. EvaluatorID and EvaluatedAt are set if and
// only if Status != StatusPending.
type Request struct {
	ID          int
	UserID      int
	CategoryID  int
	StartDate   time.Time
	EndDate     time.Time
	Motivation  string
	Status      Status
	CreatedAt   time.Time
	EvaluatorID *int
	EvaluatedAt *time.Time
}

// Days returns the inclusive span of the request in days.
func (r *Request) Days() decimal.Decimal {
	return SpanDays(r.StartDate, r.EndDate)
}

// SpanDays returns the inclusive number of days between two dates
// (end - start + 1). Both dates are truncated to date granularity first.
func SpanDays(start, end time.Time) decimal.Decimal {
	s := DateOnly(start)
	e := DateOnly(end)
	days := int64(e.Sub(s).Hours()/24) + 1
	return decimal.NewFromInt(days)
}

// DateOnly truncates t to UTC midnight.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// DETAIL VIEW - Request decorated with requester/category/evaluator fields
// =============================================================================

// RequestDetail is a Request joined with the identity fields API clients
// render: requester name, category description, evaluator name.
type RequestDetail struct {
	Request
	RequesterNome       string
	RequesterCognome    string
	CategoryDescription string
	EvaluatorNome       string
	EvaluatorCognome    string
}

// =============================================================================
// FILTERS
// =============================================================================

// RequestFilter narrows a request listing. Nil fields are ignored.
type RequestFilter struct {
	UserID     *int
	Status     *Status
	CategoryID *int
}

// StatsFilter narrows a statistics query. Month/Year match the evaluation
// timestamp of approved requests, not the creation date.
type StatsFilter struct {
	UserID *int
	Month  *int
	Year   *int
}

// StatRow is one aggregate row: per requester, per evaluation period.
type StatRow struct {
	UserID        int
	Nome          string
	Cognome       string
	Email         string
	Month         int
	Year          int
	RequestCount  int
	DaysRequested int
	DaysApproved  int
}
