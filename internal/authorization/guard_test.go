package authorization

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGuard(t *testing.T) *Guard {
	t.Helper()
	g, err := NewDefaultGuard()
	require.NoError(t, err)
	return g
}

func TestAuthorizeAdminAllowsEverything(t *testing.T) {
	g := newGuard(t)
	admin := Actor{UserID: 1, Role: RoleAdmin}

	for _, action := range []Action{ActionRead, ActionWrite, ActionDelete, ActionSetRole, ActionAdmin} {
		d := g.Authorize(admin, action, Resource{Object: ObjectInvoice, OwnerID: 99})
		assert.True(t, d.Allowed, "action %s", action)
		assert.Equal(t, ReasonNone, d.Reason)
	}
}

func TestAuthorizeOwnerAllowed(t *testing.T) {
	g := newGuard(t)
	user := Actor{UserID: 7, Role: RoleUser}

	for _, object := range []Object{ObjectInvoice, ObjectCompany} {
		for _, action := range []Action{ActionRead, ActionWrite, ActionDelete} {
			d := g.Authorize(user, action, Resource{Object: object, OwnerID: 7})
			assert.True(t, d.Allowed, "%s %s", action, object)
		}
	}
}

func TestAuthorizeNonOwnerDenied(t *testing.T) {
	g := newGuard(t)
	user := Actor{UserID: 7, Role: RoleUser}

	d := g.Authorize(user, ActionRead, Resource{Object: ObjectInvoice, OwnerID: 8})
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonNotOwner, d.Reason)

	d = g.Authorize(user, ActionDelete, Resource{Object: ObjectCompany, OwnerID: 8})
	assert.Equal(t, ReasonNotOwner, d.Reason)
}

func TestAuthorizeSetRoleRequiresAdmin(t *testing.T) {
	g := newGuard(t)
	user := Actor{UserID: 7, Role: RoleUser}

	// even on their own profile
	d := g.Authorize(user, ActionSetRole, Resource{Object: ObjectUser, OwnerID: 7})
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonInsufficientPrivilege, d.Reason)

	d = g.Authorize(user, ActionAdmin, Resource{Object: ObjectSystem})
	assert.Equal(t, ReasonInsufficientPrivilege, d.Reason)
}

func TestAuthorizeFailsClosed(t *testing.T) {
	g := newGuard(t)

	d := g.Authorize(Actor{}, ActionRead, Resource{Object: ObjectInvoice, OwnerID: 1})
	assert.Equal(t, ReasonInvalidActor, d.Reason)

	d = g.Authorize(Actor{UserID: 3, Role: "auditor"}, ActionRead, Resource{Object: ObjectInvoice, OwnerID: 3})
	assert.False(t, d.Allowed)

	// a zero owner never matches the actor
	d = g.Authorize(Actor{UserID: 3, Role: RoleUser}, ActionRead, Resource{Object: ObjectInvoice})
	assert.False(t, d.Allowed)
}

func TestCheckReturnsDeniedError(t *testing.T) {
	g := newGuard(t)

	err := g.Check(Actor{UserID: 1, Role: RoleUser}, ActionWrite, Resource{Object: ObjectInvoice, OwnerID: 2})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDenied))

	var denied *DeniedError
	require.True(t, errors.As(err, &denied))
	assert.Equal(t, ReasonNotOwner, denied.Reason)

	assert.NoError(t, g.Check(Actor{UserID: 2, Role: RoleUser}, ActionWrite, Resource{Object: ObjectInvoice, OwnerID: 2}))
}

func TestAuthorizeIsDeterministic(t *testing.T) {
	g := newGuard(t)
	actor := Actor{UserID: 5, Role: RoleUser}
	res := Resource{Object: ObjectInvoice, OwnerID: 6}
	first := g.Authorize(actor, ActionRead, res)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, g.Authorize(actor, ActionRead, res))
	}
}
