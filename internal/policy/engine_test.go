package policy

import (
	"context"
	"errors"
	"testing"
	"time"
)

func decide(t *testing.T, e *Engine, req DecisionRequest) Decision {
	t.Helper()
	d, err := e.Decide(context.Background(), req)
	if err != nil {
		t.Fatalf("Decide(%+v): %v", req, err)
	}
	return d
}

func TestDecideReasonTable(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name   string
		req    DecisionRequest
		allow  bool
		reason ReasonCode
	}{
		{
			// Tenant admin, PUBLIC objective, unpublished: editable.
			name: "tenant admin edits unpublished public objective",
			req: DecisionRequest{
				RequestUserID: "user-bob", Action: ActionEditOKR,
				Resource: ResourceContext{ObjectiveID: "obj-public"},
			},
			allow: true, reason: ReasonAllow,
		},
		{
			// Regular member, PRIVATE objective, not whitelisted.
			name: "member denied private objective",
			req: DecisionRequest{
				RequestUserID: "user-carol", Action: ActionViewOKR,
				Resource: ResourceContext{ObjectiveID: "obj-private"},
			},
			allow: false, reason: ReasonPrivateVisibility,
		},
		{
			// Published objective, caller is owner but not tenant admin.
			name: "owner blocked by publish lock",
			req: DecisionRequest{
				RequestUserID: "user-alice", Action: ActionEditOKR,
				Resource: ResourceContext{ObjectiveID: "obj-published"},
			},
			allow: false, reason: ReasonPublishLock,
		},
		{
			// Archived cycle, caller is team lead of the owning team.
			name: "team lead blocked by cycle lock",
			req: DecisionRequest{
				RequestUserID: "user-frank", Action: ActionEditOKR,
				Resource: ResourceContext{ObjectiveID: "obj-archived-cycle"},
			},
			allow: false, reason: ReasonPublishLock,
		},
		{
			// Superuser mutation on a tenant they are not a member of.
			name: "superuser write restricted to home tenant",
			req: DecisionRequest{
				RequestUserID: "user-root", Action: ActionManageBilling,
				Resource: ResourceContext{TenantID: "org-acme"},
			},
			allow: false, reason: ReasonSuperuserReadOnly,
		},
		{
			name: "superuser write allowed in home tenant",
			req: DecisionRequest{
				RequestUserID: "user-root", Action: ActionManageBilling,
				Resource: ResourceContext{TenantID: "org-globex"},
			},
			allow: true, reason: ReasonAllow,
		},
		{
			name: "superuser reads everywhere",
			req: DecisionRequest{
				RequestUserID: "user-root", Action: ActionViewOKR,
				Resource: ResourceContext{ObjectiveID: "obj-private"},
			},
			allow: true, reason: ReasonAllow,
		},
		{
			name: "cross-tenant access is a boundary violation",
			req: DecisionRequest{
				RequestUserID: "user-dave", Action: ActionViewOKR,
				Resource: ResourceContext{ObjectiveID: "obj-public"},
			},
			allow: false, reason: ReasonTenantBoundary,
		},
		{
			name: "member without role denied edit",
			req: DecisionRequest{
				RequestUserID: "user-carol", Action: ActionEditOKR,
				Resource: ResourceContext{ObjectiveID: "obj-public"},
			},
			allow: false, reason: ReasonRoleDeny,
		},
		{
			name: "team lead edits unlocked objective",
			req: DecisionRequest{
				RequestUserID: "user-frank", Action: ActionEditOKR,
				Resource: ResourceContext{ObjectiveID: "obj-public"},
			},
			allow: true, reason: ReasonAllow,
		},
		{
			name: "tenant member views public objective without any role",
			req: DecisionRequest{
				RequestUserID: "user-carol", Action: ActionViewOKR,
				Resource: ResourceContext{ObjectiveID: "obj-public"},
			},
			allow: true, reason: ReasonAllow,
		},
		{
			name: "workspace lead publishes",
			req: DecisionRequest{
				RequestUserID: "user-grace", Action: ActionPublishOKR,
				Resource: ResourceContext{ObjectiveID: "obj-public"},
			},
			allow: true, reason: ReasonAllow,
		},
		{
			name: "team lead cannot manage billing",
			req: DecisionRequest{
				RequestUserID: "user-frank", Action: ActionManageBilling,
				Resource: ResourceContext{TenantID: "org-acme"},
			},
			allow: false, reason: ReasonRoleDeny,
		},
		{
			name: "tenant admin cannot manage billing (owner only)",
			req: DecisionRequest{
				RequestUserID: "user-bob", Action: ActionManageBilling,
			},
			allow: false, reason: ReasonRoleDeny,
		},
		{
			name: "tenant admin manages users",
			req: DecisionRequest{
				RequestUserID: "user-bob", Action: ActionManageUsers,
			},
			allow: true, reason: ReasonAllow,
		},
		{
			name: "impersonation is superuser only",
			req: DecisionRequest{
				RequestUserID: "user-bob", Action: ActionImpersonateUser,
			},
			allow: false, reason: ReasonRoleDeny,
		},
		{
			name: "superuser impersonates",
			req: DecisionRequest{
				RequestUserID: "user-root", Action: ActionImpersonateUser,
			},
			allow: true, reason: ReasonAllow,
		},
		{
			name: "key result resolves through parent objective",
			req: DecisionRequest{
				RequestUserID: "user-carol", Action: ActionViewOKR,
				Resource: ResourceContext{KeyResultID: "kr-private"},
			},
			allow: false, reason: ReasonPrivateVisibility,
		},
	}

	for _, tc := range cases {
		d := decide(t, f.engine, tc.req)
		if d.Allow != tc.allow || d.Reason != tc.reason {
			t.Fatalf("%s: got allow=%v reason=%s, want allow=%v reason=%s",
				tc.name, d.Allow, d.Reason, tc.allow, tc.reason)
		}
	}
}

func TestDecideOwnerEditBypassesRoleButNotLock(t *testing.T) {
	f := newFixture(t)

	// Owner without any role assignment edits their unlocked objective.
	d := decide(t, f.engine, DecisionRequest{
		RequestUserID: "user-alice", Action: ActionEditOKR,
		Resource: ResourceContext{ObjectiveID: "obj-public"},
	})
	if !d.Allow {
		t.Fatalf("owner must edit own unlocked objective: %+v", d)
	}

	// Same owner, published objective: the lock check is independent.
	d = decide(t, f.engine, DecisionRequest{
		RequestUserID: "user-alice", Action: ActionDeleteOKR,
		Resource: ResourceContext{ObjectiveID: "obj-published"},
	})
	if d.Allow || d.Reason != ReasonPublishLock {
		t.Fatalf("publish lock must hold against the owner: %+v", d)
	}
	if d.Details.Lock == nil || d.Details.Lock.Reason != LockReasonPublished {
		t.Fatalf("expected lock detail with published reason: %+v", d.Details.Lock)
	}
}

func TestDecideLockDetailReportsCycle(t *testing.T) {
	f := newFixture(t)

	d := decide(t, f.engine, DecisionRequest{
		RequestUserID: "user-frank", Action: ActionEditOKR,
		Resource: ResourceContext{ObjectiveID: "obj-archived-cycle"},
	})
	if d.Allow || d.Reason != ReasonPublishLock {
		t.Fatalf("expected lock deny: %+v", d)
	}
	if d.Details.Lock == nil || d.Details.Lock.Reason != LockReasonCycle {
		t.Fatalf("expected cycle_locked detail, got %+v", d.Details.Lock)
	}
}

func TestDecideEvaluatingAnotherUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Superusers may evaluate anyone.
	d, err := f.engine.Decide(ctx, DecisionRequest{
		RequestUserID:   "user-root",
		EvaluatedUserID: "user-carol",
		Action:          ActionViewOKR,
		Resource:        ResourceContext{ObjectiveID: "obj-private"},
	})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.Allow || d.Reason != ReasonPrivateVisibility {
		t.Fatalf("expected carol's deny, got %+v", d)
	}
	if d.Meta.RequestUserID != "user-root" || d.Meta.EvaluatedUserID != "user-carol" {
		t.Fatalf("meta must record both parties: %+v", d.Meta)
	}

	// Everyone else may not.
	_, err = f.engine.Decide(ctx, DecisionRequest{
		RequestUserID:   "user-bob",
		EvaluatedUserID: "user-carol",
		Action:          ActionViewOKR,
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestDecideUnknownActionIsStructuralError(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Decide(context.Background(), DecisionRequest{
		RequestUserID: "user-bob", Action: "launch_rockets",
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestDecideAuditHookReceivesEveryDecision(t *testing.T) {
	f := newFixture(t)
	var captured []Decision
	fixed := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	e := NewEngine(f.store,
		WithAudit(func(_ context.Context, d Decision) { captured = append(captured, d) }),
		WithClock(func() time.Time { return fixed }),
	)

	decide(t, e, DecisionRequest{
		RequestUserID: "user-carol", Action: ActionViewOKR,
		Resource: ResourceContext{ObjectiveID: "obj-private"},
	})
	decide(t, e, DecisionRequest{RequestUserID: "user-bob", Action: ActionManageUsers})

	if len(captured) != 2 {
		t.Fatalf("expected 2 audited decisions, got %d", len(captured))
	}
	if !captured[0].Meta.Timestamp.Equal(fixed) {
		t.Fatalf("expected fixed timestamp, got %v", captured[0].Meta.Timestamp)
	}
}

func TestDecideDetailsEchoResolvedResource(t *testing.T) {
	f := newFixture(t)

	d := decide(t, f.engine, DecisionRequest{
		RequestUserID: "user-frank", Action: ActionViewOKR,
		Resource: ResourceContext{ObjectiveID: "obj-public"},
		Context:  map[string]any{"origin": "drawer"},
	})
	res := d.Details.Resource
	if res.TenantID != "org-acme" || res.WorkspaceID != "ws-product" || res.TeamID != "team-platform" {
		t.Fatalf("resource not backfilled from objective: %+v", res)
	}
	if len(d.Details.Scopes) != 3 {
		t.Fatalf("expected three scopes, got %v", d.Details.Scopes)
	}
	if d.Details.Context["origin"] != "drawer" {
		t.Fatalf("context not echoed: %v", d.Details.Context)
	}
	if len(d.Details.UserRoles) != 1 || d.Details.UserRoles[0].Role != RoleTeamLead {
		t.Fatalf("expected frank's assignment in details: %+v", d.Details.UserRoles)
	}
}
