// Package authz identifies the caller of a request and decides whether that
// caller may author chatbox content. Authentication itself (registration,
// passwords) lives outside the portal; this package only consumes the role a
// caller presents, either from a signed bearer token or from the request body.
package authz

import (
	"context"
	"strings"

	"github.com/tidwall/gjson"
)

// Policy decides which callers hold the admin capability.
type Policy struct {
	adminRole string
}

// NewPolicy returns a policy granting admin capability to adminRole.
func NewPolicy(adminRole string) Policy {
	return Policy{adminRole: strings.TrimSpace(adminRole)}
}

// IsAdmin reports whether role equals the configured admin role.
func (p Policy) IsAdmin(role string) bool {
	r := strings.TrimSpace(role)
	return r != "" && r == p.adminRole
}

// AdminRole returns the configured admin role.
func (p Policy) AdminRole() string { return p.adminRole }

// Caller is the identity attached to an authoring request.
type Caller struct {
	UserID   string
	Username string
	RoleID   string
	// Verified is true when the identity came from a valid signed token.
	Verified bool
}

type callerKey struct{}

// WithCaller returns a context carrying c.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFromContext returns the caller stored by the token middleware.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok
}

// ResolveCaller returns the verified caller from ctx when present. Otherwise
// it falls back to the role_id and user_id fields of a JSON body, which may
// be numbers or strings.
func ResolveCaller(ctx context.Context, body []byte) Caller {
	if c, ok := CallerFromContext(ctx); ok {
		return c
	}
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return Caller{}
	}
	res := gjson.GetManyBytes(body, "role_id", "user_id")
	return Caller{
		RoleID: strings.TrimSpace(res[0].String()),
		UserID: strings.TrimSpace(res[1].String()),
	}
}
