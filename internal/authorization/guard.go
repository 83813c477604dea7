package authorization

import (
	_ "embed"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type Object string

const (
	ObjectInvoice  Object = "invoice"
	ObjectCompany  Object = "company"
	ObjectUser     Object = "user"
	ObjectActivity Object = "activity"
	ObjectSystem   Object = "system"
)

type Action string

const (
	ActionRead    Action = "read"
	ActionWrite   Action = "write"
	ActionDelete  Action = "delete"
	ActionSetRole Action = "set_role"
	ActionAdmin   Action = "admin"
)

type DenyReason string

const (
	ReasonNone                  DenyReason = ""
	ReasonNotOwner              DenyReason = "not_owner"
	ReasonInsufficientPrivilege DenyReason = "insufficient_privilege"
	ReasonInvalidActor          DenyReason = "invalid_actor"
)

// Actor is the authenticated principal resolved from a session.
type Actor struct {
	UserID snowflake.ID
	Role   string
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// Resource identifies what is acted upon. OwnerID is zero for resources without an owner.
type Resource struct {
	Object  Object
	OwnerID snowflake.ID
}

type Decision struct {
	Allowed bool
	Reason  DenyReason
}

func Allow() Decision { return Decision{Allowed: true} }

func Deny(reason DenyReason) Decision { return Decision{Reason: reason} }

// Err converts a deny decision into a *DeniedError, or nil when allowed.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &DeniedError{Reason: d.Reason}
}

// Guard evaluates access rules held in memory. Authorize never touches the database.
type Guard struct {
	enforcer *casbin.SyncedEnforcer
	log      *zap.Logger
}

// NewEnforcer builds an enforcer whose policy is persisted in casbin_rule through GORM.
func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	return enforcer, nil
}

// NewInMemoryEnforcer builds an enforcer with the built-in policy and no storage.
func NewInMemoryEnforcer() (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewGuard(enforcer *casbin.SyncedEnforcer, log *zap.Logger) *Guard {
	return &Guard{enforcer: enforcer, log: log.Named("authorization.guard")}
}

// NewDefaultGuard is a convenience for tests and tools that need the built-in rules.
func NewDefaultGuard() (*Guard, error) {
	enforcer, err := NewInMemoryEnforcer()
	if err != nil {
		return nil, err
	}
	return NewGuard(enforcer, zap.NewNop()), nil
}

// Authorize decides whether actor may perform action on resource.
//
//	admin            -> Allow
//	set_role, admin  -> admin only, else Deny(insufficient_privilege)
//	standard user    -> Allow when actor owns the resource, else Deny(not_owner)
//
// Any evaluation error denies.
func (g *Guard) Authorize(actor Actor, action Action, resource Resource) Decision {
	if actor.UserID == 0 || actor.Role == "" {
		return Deny(ReasonInvalidActor)
	}

	subject := roleSubject(actor.Role)
	owned := ownedFlag(actor, resource)

	allowed, err := g.enforcer.Enforce(subject, string(resource.Object), string(action), owned)
	if err != nil {
		g.log.Error("policy evaluation failed", zap.Error(err))
		return Deny(ReasonInsufficientPrivilege)
	}
	if allowed {
		return Allow()
	}

	// Would the same role be allowed on its own resource? Then ownership is what failed.
	if owned == "false" {
		if ok, err := g.enforcer.Enforce(subject, string(resource.Object), string(action), "true"); err == nil && ok {
			return Deny(ReasonNotOwner)
		}
	}
	return Deny(ReasonInsufficientPrivilege)
}

// Check is Authorize returning an error for use in service code.
func (g *Guard) Check(actor Actor, action Action, resource Resource) error {
	return g.Authorize(actor, action, resource).Err()
}

func roleSubject(role string) string {
	return fmt.Sprintf("role:%s", role)
}

func ownedFlag(actor Actor, resource Resource) string {
	if resource.OwnerID != 0 && resource.OwnerID == actor.UserID {
		return "true"
	}
	return "false"
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Administrators act on every object regardless of owner.
		{roleSubject(RoleAdmin), "*", "*", "any"},

		// Standard users act only on what they own.
		{roleSubject(RoleUser), string(ObjectInvoice), string(ActionRead), "own"},
		{roleSubject(RoleUser), string(ObjectInvoice), string(ActionWrite), "own"},
		{roleSubject(RoleUser), string(ObjectInvoice), string(ActionDelete), "own"},
		{roleSubject(RoleUser), string(ObjectCompany), string(ActionRead), "own"},
		{roleSubject(RoleUser), string(ObjectCompany), string(ActionWrite), "own"},
		{roleSubject(RoleUser), string(ObjectCompany), string(ActionDelete), "own"},
		{roleSubject(RoleUser), string(ObjectUser), string(ActionRead), "own"},
		{roleSubject(RoleUser), string(ObjectUser), string(ActionWrite), "own"},
	}
	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
