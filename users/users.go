package users

import (
	"golang.org/x/crypto/bcrypt"
)

// RoleType is the single role a portal user holds.
type RoleType string

const (
	RoleSuperAdmin    RoleType = "SUPERADMIN"    // Platform operator, every screen in every partition
	RoleHMOAdmin      RoleType = "HMOADMIN"      // Manages an HMO's enrollees, plans and staff
	RoleHMOAgent      RoleType = "HMOAGENT"      // Front-desk HMO staff, enrollees and authorizations
	RoleProviderAdmin RoleType = "PROVIDERADMIN" // Manages a provider facility and its staff
	RoleProviderUser  RoleType = "PROVIDERUSER"  // Clinical/billing staff at a provider
)

// TenantKind is the partition of the user base a user belongs to.
type TenantKind string

const (
	TenantHMO      TenantKind = "hmo"
	TenantProvider TenantKind = "provider"
)

func (k TenantKind) Valid() bool {
	return k == TenantHMO || k == TenantProvider
}

// User is the profile returned by the login endpoint and held in the session.
type User struct {
	ID           string     `json:"id"`
	DisplayName  string     `json:"displayName"`
	Email        string     `json:"email"`
	Role         RoleType   `json:"role"`
	TenantID     string     `json:"tenantId,omitempty"`
	TenantKind   TenantKind `json:"tenantKind"`
	PasswordHash string     `json:"-"` // never serialize
	Blocked      bool       `json:"-"`
}

// Public returns a copy safe to hand to clients.
func (u User) Public() User {
	u.PasswordHash = ""
	u.Blocked = false
	return u
}

func (u *User) IsSuperAdmin() bool {
	return u.Role == RoleSuperAdmin
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
