/*
authz.go - Role capability table

PURPOSE:
  Single source of truth for what each role may do. Every mutating
  operation in service.go consults this table instead of comparing role
  strings inline.

CAPABILITY TABLE:
  | Action                        | Employee | Manager |
  |-------------------------------|----------|---------|
  | Create request (as self)      | yes      | yes     |
  | View own requests             | yes      | yes     |
  | View all requests             | no       | yes     |
  | Edit/delete own pending       | yes      | n/a     |
  | Delete any request            | no       | yes     |
  | Evaluate pending request      | no       | yes     |
  | Manage categories             | no       | yes     |
  | View aggregate statistics     | no       | yes     |

  Can() is a pure predicate with no side effects. Ownership and status
  gates (e.g. "own pending request only") are enforced by the service on
  top of the role check.

SELF-APPROVAL:
  A manager may not evaluate a request they submitted themselves. This is
  a deny-by-default rule enforced in Service.Evaluate.
*/
package leave

// Action is a capability consulted against the role table.
type Action string

const (
	ActionCreateRequest    Action = "create_request"
	ActionViewOwnRequests  Action = "view_own_requests"
	ActionViewAllRequests  Action = "view_all_requests"
	ActionEditOwnPending   Action = "edit_own_pending"
	ActionDeleteAnyRequest Action = "delete_any_request"
	ActionEvaluateRequest  Action = "evaluate_request"
	ActionManageCategories Action = "manage_categories"
	ActionViewStatistics   Action = "view_statistics"
)

var capabilities = map[Role]map[Action]bool{
	RoleEmployee: {
		ActionCreateRequest:   true,
		ActionViewOwnRequests: true,
		ActionEditOwnPending:  true,
	},
	RoleManager: {
		ActionCreateRequest:    true,
		ActionViewOwnRequests:  true,
		ActionViewAllRequests:  true,
		ActionDeleteAnyRequest: true,
		ActionEvaluateRequest:  true,
		ActionManageCategories: true,
		ActionViewStatistics:   true,
	},
}

// Can reports whether the user's role grants the action.
// A nil user is never authorized.
func Can(u *User, a Action) bool {
	if u == nil {
		return false
	}
	return capabilities[u.Role][a]
}

// Authorize returns nil when the role grants the action, ErrUnauthenticated
// for a nil caller, and a ForbiddenError otherwise.
func Authorize(u *User, a Action) error {
	if u == nil {
		return ErrUnauthenticated
	}
	if !Can(u, a) {
		return &ForbiddenError{Action: a, UserID: u.ID}
	}
	return nil
}
