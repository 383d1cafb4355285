package auth

import (
	"testing"

	"github.com/jcob-sikorski/mech-mashup/internal/apierror"
	"github.com/stretchr/testify/assert"
)

func TestAllow(t *testing.T) {
	member := Identity{AccountID: 7, Username: "alice"}
	staff := Identity{AccountID: 1, Username: "admin", IsStaff: true}

	tests := []struct {
		name     string
		identity Identity
		action   Action
		target   Target
		want     bool
	}{
		{"anonymous list", Anonymous, ActionList, NoTarget, false},
		{"anonymous retrieve", Anonymous, ActionRetrieve, TargetID(7), false},
		{"anonymous update", Anonymous, ActionUpdate, TargetID(7), false},
		{"anonymous self", Anonymous, ActionSelfRetrieve, NoTarget, false},
		{"anonymous self update", Anonymous, ActionSelfUpdate, NoTarget, false},

		{"member list", member, ActionList, NoTarget, false},
		{"member retrieve own", member, ActionRetrieve, TargetID(7), true},
		{"member retrieve other", member, ActionRetrieve, TargetID(8), false},
		{"member retrieve malformed id", member, ActionRetrieve, NoTarget, false},
		{"member update own", member, ActionUpdate, TargetID(7), true},
		{"member update other", member, ActionUpdate, TargetID(8), false},
		{"member self", member, ActionSelfRetrieve, NoTarget, true},
		{"member self update ignores target", member, ActionSelfUpdate, TargetID(99), true},

		{"staff list", staff, ActionList, NoTarget, true},
		{"staff retrieve other", staff, ActionRetrieve, TargetID(7), true},
		{"staff retrieve malformed id", staff, ActionRetrieve, NoTarget, true},
		{"staff update own", staff, ActionUpdate, TargetID(1), true},
		{"staff update other", staff, ActionUpdate, TargetID(7), false},

		{"unknown action", staff, Action("delete"), TargetID(1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Allow(tt.identity, tt.action, tt.target))
		})
	}
}

func TestCheck(t *testing.T) {
	assert.NoError(t, Check(Identity{AccountID: 3}, ActionSelfRetrieve, NoTarget))

	err := Check(Anonymous, ActionList, NoTarget)
	assert.True(t, apierror.IsKind(err, apierror.KindAuthentication))
	assert.Equal(t, apierror.CodeNotAuthenticated, apierror.From(err).Code)

	err = Check(Identity{AccountID: 3}, ActionList, NoTarget)
	assert.True(t, apierror.IsKind(err, apierror.KindAuthorization))
	assert.Equal(t, 403, apierror.From(err).Status())
}
