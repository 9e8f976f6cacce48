package types

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/kitstock-backend/pkg/enums"
)

// Actor is the authenticated caller behind a mutation. ProviderID is set only
// for provider accounts.
type Actor struct {
	ID         uuid.UUID
	Role       enums.ActorRole
	ProviderID *uuid.UUID
}

// OwnsProvider reports whether the actor acts for providerID.
func (a Actor) OwnsProvider(providerID *uuid.UUID) bool {
	if a.Role != enums.ActorRoleProvider || a.ProviderID == nil || providerID == nil {
		return false
	}
	return *a.ProviderID == *providerID
}
