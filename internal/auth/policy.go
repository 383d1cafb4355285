package auth

import (
	"github.com/jcob-sikorski/mech-mashup/internal/apierror"
)

// Action names an operation on the users resource.
type Action string

const (
	ActionList         Action = "list"
	ActionRetrieve     Action = "retrieve"
	ActionUpdate       Action = "update"
	ActionSelfRetrieve Action = "self_retrieve"
	ActionSelfUpdate   Action = "self_update"
)

// Target identifies the account an action is aimed at. Valid is false when
// the request did not name a well-formed account id.
type Target struct {
	AccountID int64
	Valid     bool
}

// TargetID is a Target for a known account id.
func TargetID(id int64) Target { return Target{AccountID: id, Valid: true} }

// NoTarget is used for actions that do not address a single account.
var NoTarget = Target{}

// publicActions may be performed without credentials. Nothing on the users
// resource is public.
var publicActions = map[Action]bool{}

// Allow decides whether identity may perform action on target.
func Allow(identity Identity, action Action, target Target) bool {
	switch action {
	case ActionSelfRetrieve, ActionSelfUpdate:
		return identity.IsAuthenticated()
	}

	if !identity.IsAuthenticated() {
		return publicActions[action]
	}

	owner := target.Valid && target.AccountID == identity.AccountID
	switch action {
	case ActionList:
		return identity.IsStaff
	case ActionRetrieve:
		return identity.IsStaff || owner
	case ActionUpdate:
		return owner
	default:
		return false
	}
}

// Check is Allow reporting a denial as an error: unauthenticated callers get a
// 401 and authenticated ones a 403.
func Check(identity Identity, action Action, target Target) error {
	if Allow(identity, action, target) {
		return nil
	}
	if !identity.IsAuthenticated() {
		return apierror.NotAuthenticated()
	}
	return apierror.Forbidden()
}
