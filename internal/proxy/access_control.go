package proxy

import (
	"context"

	"cell-broadcast/internal/domain/broadcast"
	broadcast_errors "cell-broadcast/pkg/errors"

	"github.com/google/uuid"
)

// IdentityProvider answers membership and admin questions for an actor.
// Backed by the external identity/permission system.
type IdentityProvider interface {
	MemberOfService(ctx context.Context, actor broadcast.Actor, serviceID uuid.UUID) (bool, error)
	PlatformAdmin(ctx context.Context, actor broadcast.Actor) (bool, error)
}

type AccessControl struct {
	identity IdentityProvider
}

func NewAccessControl(identity IdentityProvider) *AccessControl {
	return &AccessControl{identity: identity}
}

// CanApprove requires service membership; platform admin status alone is not
// enough to put a message on air.
func (a *AccessControl) CanApprove(ctx context.Context, actor broadcast.Actor, serviceID uuid.UUID) error {
	if a.identity == nil {
		return broadcast_errors.ErrPermissionDenied
	}
	ok, err := a.identity.MemberOfService(ctx, actor, serviceID)
	if err != nil {
		return err
	}
	if !ok {
		return broadcast_errors.ErrPermissionDenied
	}
	return nil
}

// CanCancel admits service members and platform administrators.
func (a *AccessControl) CanCancel(ctx context.Context, actor broadcast.Actor, serviceID uuid.UUID) error {
	if a.identity == nil {
		return broadcast_errors.ErrPermissionDenied
	}
	ok, err := a.identity.MemberOfService(ctx, actor, serviceID)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	admin, err := a.identity.PlatformAdmin(ctx, actor)
	if err != nil {
		return err
	}
	if !admin {
		return broadcast_errors.ErrPermissionDenied
	}
	return nil
}

// StaticIdentityProvider is an in-memory identity source for tests and
// local development.
type StaticIdentityProvider struct {
	Members map[uuid.UUID][]uuid.UUID // service id -> actor ids
	Admins  map[uuid.UUID]bool
}

func (s *StaticIdentityProvider) MemberOfService(ctx context.Context, actor broadcast.Actor, serviceID uuid.UUID) (bool, error) {
	for _, id := range s.Members[serviceID] {
		if id == actor.ID {
			return true, nil
		}
	}
	return false, nil
}

func (s *StaticIdentityProvider) PlatformAdmin(ctx context.Context, actor broadcast.Actor) (bool, error) {
	return s.Admins[actor.ID], nil
}
