package policy

import (
	"context"
	"errors"
	"fmt"
)

// LockReason names which governance rule froze the entity.
type LockReason string

const (
	LockReasonPublished LockReason = "published"
	LockReasonCycle     LockReason = "cycle_locked"
)

// LockInfo describes the edit-lock state of an objective for a given user.
type LockInfo struct {
	IsLocked bool       `json:"is_locked"`
	Reason   LockReason `json:"reason,omitempty"`
	Message  string     `json:"message,omitempty"`
}

// LockResolver computes publish/cycle governance locks.
type LockResolver struct {
	store Store
	roles *Resolver
}

func NewLockResolver(store Store, roles *Resolver) *LockResolver {
	return &LockResolver{store: store, roles: roles}
}

// LockInfoFor returns the lock state as seen by user. Users holding a
// tenant-owner/admin equivalent role for the objective's tenant override
// locks: the result is forced unlocked regardless of underlying state.
func (l *LockResolver) LockInfoFor(ctx context.Context, user *User, obj *Objective) (LockInfo, error) {
	if obj == nil {
		return LockInfo{}, fmt.Errorf("%w: objective is required", ErrInvalidInput)
	}
	canOverride, err := l.roles.IsTenantAdmin(ctx, user, obj.OrganizationID)
	if err != nil {
		return LockInfo{}, err
	}
	if canOverride {
		return LockInfo{}, nil
	}
	return l.baseLock(ctx, obj)
}

// baseLock checks the publish lock before the cycle lock: when both apply
// the reported reason is always "published".
func (l *LockResolver) baseLock(ctx context.Context, obj *Objective) (LockInfo, error) {
	if obj.IsPublished {
		return LockInfo{
			IsLocked: true,
			Reason:   LockReasonPublished,
			Message:  "objective is published and can no longer be edited",
		}, nil
	}
	if obj.CycleID != "" {
		cycle, err := l.store.Cycle(ctx, obj.CycleID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return LockInfo{}, err
		}
		if cycle != nil && (cycle.Status == CycleLocked || cycle.Status == CycleArchived) {
			return LockInfo{
				IsLocked: true,
				Reason:   LockReasonCycle,
				Message:  fmt.Sprintf("cycle %s is %s", cycle.Name, cycle.Status),
			}, nil
		}
	}
	return LockInfo{}, nil
}

// KeyResultLockInfo inherits the parent objective's lock state, exactly as
// visibility does. A missing parent locks by default rather than guessing.
func (l *LockResolver) KeyResultLockInfo(ctx context.Context, user *User, kr *KeyResult) (LockInfo, error) {
	if kr == nil || kr.ObjectiveID == "" {
		return LockInfo{IsLocked: true, Message: "key result has no parent objective"}, nil
	}
	obj, err := l.store.Objective(ctx, kr.ObjectiveID)
	if errors.Is(err, ErrNotFound) {
		return LockInfo{IsLocked: true, Message: "key result has no parent objective"}, nil
	}
	if err != nil {
		return LockInfo{}, err
	}
	return l.LockInfoFor(ctx, user, obj)
}
