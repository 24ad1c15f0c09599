package tenants

import "github.com/jrsteele09/hmo-portal-session/users"

// Tenant is an HMO or a provider organisation. Kind decides which half of
// the portal its users may enter.
type Tenant struct {
	ID   string           `json:"id"`
	Name string           `json:"name"`
	Kind users.TenantKind `json:"kind"`
}
