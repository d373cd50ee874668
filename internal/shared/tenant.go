package shared

import "context"

// Org identifies the tenant every record belongs to.
type Org struct {
	ID   int64  `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

type orgContextKey struct{}

// ContextWithOrg stores the resolved organization in context. Only the HTTP
// boundary uses it; services receive the org ID as an explicit argument.
func ContextWithOrg(ctx context.Context, org Org) context.Context {
	return context.WithValue(ctx, orgContextKey{}, org)
}

// OrgFromContext extracts the organization resolved by the org middleware.
func OrgFromContext(ctx context.Context) (Org, bool) {
	org, ok := ctx.Value(orgContextKey{}).(Org)
	return org, ok && org.ID > 0
}
