package models

// actor roles supplied by the identity context
const (
	RoleCustomer = "customer"
	RoleVendor   = "vendor"
	RoleAdmin    = "admin"
)

// TokenPayload is the authenticated actor extracted from an auth token. The
// core trusts it and never re-derives identity.
type TokenPayload struct {
	UserID int64
	Role   string
}
