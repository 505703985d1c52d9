/*
service.go - Request lifecycle engine and category registry

PURPOSE:
  Implements the operations of the leave engine on top of the Store
  interfaces: request create/list/evaluate/update/delete and the
  manager-only category registry.

STATE MACHINE:
  In attesa --(approve)--> Approvato
  In attesa --(reject)-->  Rifiutato
  In attesa --(withdraw)-> deleted

  Approvato/Rifiutato are terminal for the requester. A manager may
  force-delete a request in any state.

AUTHORIZATION:
  Every operation takes the calling principal explicitly and consults the
  capability table (authz.go) first. Ownership and status gates come on
  top of the role check. The engine never infers identity from ambient
  state.

ATOMICITY:
  Transitions and pending-only mutations are compare-and-set in the
  store; no operation partially applies.

SEE ALSO:
  - store.go: Persistence contracts
  - stats.go: Statistics over approved requests
*/
package leave

import (
	"context"
	"strings"
	"time"
)

// Service is the leave-request lifecycle engine.
type Service struct {
	store Store

	// Now is the clock used for creation and evaluation timestamps.
	// Overridable in tests.
	Now func() time.Time
}

// NewService creates a Service backed by the given store.
func NewService(store Store) *Service {
	return &Service{store: store, Now: time.Now}
}

// =============================================================================
// REQUEST LIFECYCLE
// =============================================================================

// CreateRequestInput carries the fields of a new request.
type CreateRequestInput struct {
	UserID     int
	CategoryID int
	StartDate  time.Time
	EndDate    time.Time
	Motivation string
}

// CreateRequest validates and persists a new pending request.
// A non-manager caller may only create requests for themselves.
func (s *Service) CreateRequest(ctx context.Context, caller *User, in CreateRequestInput) (Request, error) {
	if err := Authorize(caller, ActionCreateRequest); err != nil {
		return Request{}, err
	}
	if in.UserID != caller.ID && !caller.IsManager() {
		return Request{}, &ForbiddenError{Action: ActionCreateRequest, UserID: caller.ID}
	}

	if err := validateSpan(in.StartDate, in.EndDate); err != nil {
		return Request{}, err
	}
	cat, err := s.store.GetCategory(ctx, in.CategoryID)
	if err != nil {
		return Request{}, err
	}
	if cat == nil {
		return Request{}, &ValidationError{Field: "categoriaId", Reason: "category does not exist"}
	}

	req := Request{
		UserID:     in.UserID,
		CategoryID: in.CategoryID,
		StartDate:  DateOnly(in.StartDate),
		EndDate:    DateOnly(in.EndDate),
		Motivation: strings.TrimSpace(in.Motivation),
		Status:     StatusPending,
		CreatedAt:  s.Now().UTC(),
	}

	// The store re-checks category existence inside its insert transaction,
	// closing the race with a concurrent category deletion.
	return s.store.SaveRequest(ctx, req)
}

// ListRequests returns requests visible to the caller, decorated with
// requester, category and evaluator display fields.
// An employee is implicitly constrained to their own requests regardless
// of the filter. Results are in insertion order.
func (s *Service) ListRequests(ctx context.Context, caller *User, f RequestFilter) ([]RequestDetail, error) {
	if err := Authorize(caller, ActionViewOwnRequests); err != nil {
		return nil, err
	}
	if !Can(caller, ActionViewAllRequests) {
		own := caller.ID
		f.UserID = &own
	}

	requests, err := s.store.ListRequests(ctx, f)
	if err != nil {
		return nil, err
	}
	return s.decorate(ctx, requests)
}

// GetRequest returns a single request visible to the caller.
func (s *Service) GetRequest(ctx context.Context, caller *User, id int) (*RequestDetail, error) {
	if err := Authorize(caller, ActionViewOwnRequests); err != nil {
		return nil, err
	}
	req, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, &NotFoundError{Kind: "request", ID: id}
	}
	if req.UserID != caller.ID && !Can(caller, ActionViewAllRequests) {
		return nil, &ForbiddenError{Action: ActionViewOwnRequests, UserID: caller.ID}
	}
	details, err := s.decorate(ctx, []Request{*req})
	if err != nil {
		return nil, err
	}
	return &details[0], nil
}

// Evaluate transitions a pending request to Approvato or Rifiutato.
// Manager-only; a manager may not evaluate their own request.
func (s *Service) Evaluate(ctx context.Context, caller *User, requestID int, decision Status) (*RequestDetail, error) {
	if err := Authorize(caller, ActionEvaluateRequest); err != nil {
		return nil, err
	}
	if !decision.Terminal() {
		return nil, &ValidationError{Field: "stato", Reason: "decision must be Approvato or Rifiutato"}
	}

	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, &NotFoundError{Kind: "request", ID: requestID}
	}
	if req.UserID == caller.ID {
		// Deny self-approval.
		return nil, &ForbiddenError{Action: ActionEvaluateRequest, UserID: caller.ID}
	}

	if err := s.store.TransitionRequest(ctx, requestID, decision, caller.ID, s.Now().UTC()); err != nil {
		return nil, err
	}
	return s.GetRequest(ctx, caller, requestID)
}

// Delete removes a request. An employee may delete only their own pending
// request; a manager may delete any request regardless of status.
func (s *Service) Delete(ctx context.Context, caller *User, requestID int) error {
	if err := Authorize(caller, ActionViewOwnRequests); err != nil {
		return err
	}

	if Can(caller, ActionDeleteAnyRequest) {
		return s.store.DeleteRequest(ctx, requestID, false)
	}

	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if req == nil {
		return &NotFoundError{Kind: "request", ID: requestID}
	}
	if req.UserID != caller.ID {
		return &ForbiddenError{Action: ActionEditOwnPending, UserID: caller.ID}
	}
	if req.Status != StatusPending {
		return &ForbiddenError{Action: ActionEditOwnPending, UserID: caller.ID}
	}
	// Compare-and-set: a concurrent evaluation between the check above and
	// this delete still fails with ErrInvalidTransition.
	return s.store.DeleteRequest(ctx, requestID, true)
}

// UpdateRequestInput is a patch over a pending request. Nil fields keep
// their current value.
type UpdateRequestInput struct {
	CategoryID *int
	StartDate  *time.Time
	EndDate    *time.Time
	Motivation *string
}

// Update edits a pending request owned by the caller (same gate as Delete)
// and re-validates date and category invariants on the patched result.
func (s *Service) Update(ctx context.Context, caller *User, requestID int, patch UpdateRequestInput) (*RequestDetail, error) {
	if err := Authorize(caller, ActionEditOwnPending); err != nil {
		return nil, err
	}

	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, &NotFoundError{Kind: "request", ID: requestID}
	}
	if req.UserID != caller.ID {
		return nil, &ForbiddenError{Action: ActionEditOwnPending, UserID: caller.ID}
	}
	if req.Status != StatusPending {
		return nil, &ForbiddenError{Action: ActionEditOwnPending, UserID: caller.ID}
	}

	categoryID := req.CategoryID
	if patch.CategoryID != nil {
		categoryID = *patch.CategoryID
	}
	start := req.StartDate
	if patch.StartDate != nil {
		start = DateOnly(*patch.StartDate)
	}
	end := req.EndDate
	if patch.EndDate != nil {
		end = DateOnly(*patch.EndDate)
	}
	motivation := req.Motivation
	if patch.Motivation != nil {
		motivation = strings.TrimSpace(*patch.Motivation)
	}

	if err := validateSpan(start, end); err != nil {
		return nil, err
	}
	cat, err := s.store.GetCategory(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if cat == nil {
		return nil, &ValidationError{Field: "categoriaId", Reason: "category does not exist"}
	}

	if err := s.store.UpdateRequest(ctx, requestID, categoryID, start, end, motivation); err != nil {
		return nil, err
	}
	return s.GetRequest(ctx, caller, requestID)
}

// =============================================================================
// CATEGORY REGISTRY
// =============================================================================

// CreateCategory registers a new category. Manager-only.
func (s *Service) CreateCategory(ctx context.Context, caller *User, id int, description string) (Category, error) {
	if err := Authorize(caller, ActionManageCategories); err != nil {
		return Category{}, err
	}
	if err := validateDescription(description); err != nil {
		return Category{}, err
	}
	if id <= 0 {
		return Category{}, &ValidationError{Field: "categoriaId", Reason: "must be a positive integer"}
	}

	c := Category{ID: id, Description: strings.TrimSpace(description), CreatedAt: s.Now().UTC()}
	if err := s.store.SaveCategory(ctx, c); err != nil {
		return Category{}, err
	}
	return c, nil
}

// UpdateCategory replaces a category description. Manager-only; the
// identifier itself is immutable.
func (s *Service) UpdateCategory(ctx context.Context, caller *User, id int, description string) (Category, error) {
	if err := Authorize(caller, ActionManageCategories); err != nil {
		return Category{}, err
	}
	if err := validateDescription(description); err != nil {
		return Category{}, err
	}
	if err := s.store.UpdateCategory(ctx, id, strings.TrimSpace(description)); err != nil {
		return Category{}, err
	}
	c, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return Category{}, err
	}
	return *c, nil
}

// DeleteCategory removes a category. Manager-only. Deleting a category
// still referenced by requests fails with ErrCategoryInUse.
func (s *Service) DeleteCategory(ctx context.Context, caller *User, id int) error {
	if err := Authorize(caller, ActionManageCategories); err != nil {
		return err
	}
	return s.store.DeleteCategory(ctx, id)
}

// ListCategories returns all categories. Available to any authenticated
// user; the request form needs them.
func (s *Service) ListCategories(ctx context.Context, caller *User) ([]Category, error) {
	if caller == nil {
		return nil, ErrUnauthenticated
	}
	return s.store.ListCategories(ctx)
}

// =============================================================================
// HELPERS
// =============================================================================

func validateSpan(start, end time.Time) error {
	if start.IsZero() {
		return &ValidationError{Field: "dataInizio", Reason: "required"}
	}
	if end.IsZero() {
		return &ValidationError{Field: "dataFine", Reason: "required"}
	}
	if DateOnly(end).Before(DateOnly(start)) {
		return &ValidationError{Field: "dataFine", Reason: "must not precede dataInizio"}
	}
	return nil
}

func validateDescription(description string) error {
	d := strings.TrimSpace(description)
	if d == "" {
		return &ValidationError{Field: "descrizione", Reason: "required"}
	}
	if len([]rune(d)) > MaxCategoryDescription {
		return &ValidationError{Field: "descrizione", Reason: "longer than 200 characters"}
	}
	return nil
}

// decorate joins requests with requester, category and evaluator fields.
func (s *Service) decorate(ctx context.Context, requests []Request) ([]RequestDetail, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}

	byUser := make(map[int]User, len(users))
	for _, u := range users {
		byUser[u.ID] = u
	}
	byCategory := make(map[int]Category, len(categories))
	for _, c := range categories {
		byCategory[c.ID] = c
	}

	details := make([]RequestDetail, len(requests))
	for i, r := range requests {
		d := RequestDetail{Request: r}
		if u, ok := byUser[r.UserID]; ok {
			d.RequesterNome = u.Nome
			d.RequesterCognome = u.Cognome
		}
		if c, ok := byCategory[r.CategoryID]; ok {
			d.CategoryDescription = c.Description
		}
		if r.EvaluatorID != nil {
			if u, ok := byUser[*r.EvaluatorID]; ok {
				d.EvaluatorNome = u.Nome
				d.EvaluatorCognome = u.Cognome
			}
		}
		details[i] = d
	}
	return details, nil
}
