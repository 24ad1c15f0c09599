package server

import (
	"fmt"

	"github.com/jrsteele09/hmo-portal-session/tenants"
	"github.com/jrsteele09/hmo-portal-session/users"
	"github.com/rs/zerolog/log"
)

// Seeded demo tenants.
const (
	PlatformTenantID = "platform"
	HMOTenantID      = "sunrise-hmo"
	ProviderTenantID = "city-clinic"
)

// Seeded demo accounts, one per role.
const (
	SuperAdminEmail    = "admin@platform.test"
	HMOAdminEmail      = "admin@sunrise-hmo.test"
	HMOAgentEmail      = "agent@sunrise-hmo.test"
	ProviderAdminEmail = "admin@city-clinic.test"
	ProviderUserEmail  = "nurse@city-clinic.test"
)

type seedUser struct {
	email  string
	name   string
	role   users.RoleType
	tenant string
	kind   users.TenantKind
}

var seedUsers = []seedUser{
	{SuperAdminEmail, "Platform Admin", users.RoleSuperAdmin, PlatformTenantID, users.TenantHMO},
	{HMOAdminEmail, "Bola Adeyemi", users.RoleHMOAdmin, HMOTenantID, users.TenantHMO},
	{HMOAgentEmail, "Kemi Ibrahim", users.RoleHMOAgent, HMOTenantID, users.TenantHMO},
	{ProviderAdminEmail, "Dr. Emeka Nwosu", users.RoleProviderAdmin, ProviderTenantID, users.TenantProvider},
	{ProviderUserEmail, "Grace Obi", users.RoleProviderUser, ProviderTenantID, users.TenantProvider},
}

// SeedDemoData creates the demo tenants and one user per role, all sharing
// password. Existing users are left untouched.
func (s *Server) SeedDemoData(password string) error {
	for _, t := range []*tenants.Tenant{
		{ID: PlatformTenantID, Name: "Platform", Kind: users.TenantHMO},
		{ID: HMOTenantID, Name: "Sunrise HMO", Kind: users.TenantHMO},
		{ID: ProviderTenantID, Name: "City Clinic", Kind: users.TenantProvider},
	} {
		if existing, err := s.repos.Tenants.Get(t.ID); err == nil && existing != nil {
			continue
		}
		if err := s.repos.Tenants.Upsert(t); err != nil {
			return fmt.Errorf("failed to seed tenant %s: %w", t.ID, err)
		}
	}

	hash, err := users.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash seed password: %w", err)
	}
	for _, su := range seedUsers {
		if existing, err := s.repos.Users.GetByEmail(su.email); err == nil && existing != nil {
			continue
		}
		if err := s.repos.Users.Upsert(&users.User{
			DisplayName:  su.name,
			Email:        su.email,
			Role:         su.role,
			TenantID:     su.tenant,
			TenantKind:   su.kind,
			PasswordHash: hash,
		}); err != nil {
			return fmt.Errorf("failed to seed user %s: %w", su.email, err)
		}
	}

	log.Info().Int("tenants", 3).Int("users", len(seedUsers)).Msg("demo data seeded")
	return nil
}
