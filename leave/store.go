/*
store.go - Persistence interfaces for users, categories and requests

PURPOSE:
  Defines the interface between the domain logic and the database.
  Different implementations can use SQLite or in-memory storage.

KEY INTERFACES:
  UserStore:     Principal records (registration, lookup by email)
  CategoryStore: Category registry with transactional in-use checks
  RequestStore:  Request lifecycle with compare-and-set transitions

TRANSITION CONTRACT:
  TransitionRequest and the pending-only variants of Update/Delete are
  compare-and-set on status: the store must guarantee at-most-one
  successful transition away from StatusPending per request, even under
  concurrent callers. A second transition fails with ErrInvalidTransition
  and leaves state unchanged.

CATEGORY DELETION:
  DeleteCategory must perform the referenced-by-requests check inside the
  same transaction (or critical section) as the delete, so a concurrent
  request creation cannot slip between check and delete.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - leave/store/memory.go:  In-memory for testing

SEE ALSO:
  - service.go: Uses these interfaces
*/
package leave

import (
	"context"
	"time"
)

// =============================================================================
// USER STORE
// =============================================================================

// UserStore persists principals.
type UserStore interface {
	// SaveUser persists a new user and returns it with the assigned ID.
	// Fails with ErrDuplicateEmail when the email is taken.
	SaveUser(ctx context.Context, u User) (User, error)

	// GetUser returns the user by id, or nil when absent.
	GetUser(ctx context.Context, id int) (*User, error)

	// GetUserByEmail returns the user by email, or nil when absent.
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// ListUsers returns all users.
	ListUsers(ctx context.Context) ([]User, error)
}

// =============================================================================
// CATEGORY STORE
// =============================================================================

// CategoryStore persists the category registry.
type CategoryStore interface {
	// SaveCategory persists a new category.
	// Fails with ErrDuplicateCategory when the id already exists.
	SaveCategory(ctx context.Context, c Category) error

	// UpdateCategory replaces the description. The id is immutable.
	// Fails with ErrNotFound when the id is absent.
	UpdateCategory(ctx context.Context, id int, description string) error

	// DeleteCategory removes the category. Fails with ErrNotFound when
	// absent and ErrCategoryInUse when referenced by existing requests.
	DeleteCategory(ctx context.Context, id int) error

	// GetCategory returns the category by id, or nil when absent.
	GetCategory(ctx context.Context, id int) (*Category, error)

	// ListCategories returns all categories ordered by id.
	ListCategories(ctx context.Context) ([]Category, error)
}

// =============================================================================
// REQUEST STORE
// =============================================================================

// RequestStore persists leave requests.
type RequestStore interface {
	// SaveRequest persists a new request and returns it with the assigned
	// ID. The category existence check runs in the same transaction as
	// the insert. Fails with ErrNotFound when the category is absent.
	SaveRequest(ctx context.Context, r Request) (Request, error)

	// GetRequest returns the request by id, or nil when absent.
	GetRequest(ctx context.Context, id int) (*Request, error)

	// ListRequests returns requests matching the filter, ordered by
	// insertion order (id ascending) for deterministic results.
	ListRequests(ctx context.Context, f RequestFilter) ([]Request, error)

	// TransitionRequest atomically moves a pending request to the given
	// terminal status, recording evaluator and evaluation time.
	// Fails with ErrNotFound when absent, ErrInvalidTransition when the
	// request is no longer pending.
	TransitionRequest(ctx context.Context, id int, to Status, evaluatorID int, at time.Time) error

	// UpdateRequest replaces dates, category and motivation of a pending
	// request (compare-and-set on status). Fails with ErrNotFound when
	// absent, ErrInvalidTransition when not pending, ErrNotFound when the
	// new category is absent.
	UpdateRequest(ctx context.Context, id int, categoryID int, start, end time.Time, motivation string) error

	// DeleteRequest removes a request. With onlyPending set, the delete
	// only succeeds while the request is still pending (compare-and-set);
	// otherwise it fails with ErrInvalidTransition.
	// Fails with ErrNotFound when absent.
	DeleteRequest(ctx context.Context, id int, onlyPending bool) error
}

// Store bundles all persistence interfaces.
type Store interface {
	UserStore
	CategoryStore
	RequestStore
}
