package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"alignd.io/internal/auth"
	"alignd.io/internal/ids"
	"alignd.io/internal/obs"
	"alignd.io/internal/policy"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// requestIDFromContext extracts the audit request id from context if present.
func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// LogEvent writes an audit log entry enriched with request and caller context.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	entry := map[string]any{
		"id":    ids.New(),
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"type":  "audit",
		"event": event,
	}
	if rid := requestIDFromContext(ctx); rid != "" {
		entry["request_id"] = rid
	}
	if p, ok := auth.PrincipalFromContext(ctx); ok {
		entry["user_id"] = p.UserID
	}
	if len(fields) > 0 {
		copyFields := make(map[string]any, len(fields))
		for k, v := range fields {
			copyFields[k] = v
		}
		entry["fields"] = copyFields
	} else {
		entry["fields"] = map[string]any{}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	obs.Logger().Println(string(data))
	return nil
}

// RecordDecision logs one policy decision and bumps the decision counter. It
// never fails the caller: audit is best-effort by contract.
func RecordDecision(ctx context.Context, d policy.Decision) {
	obs.ObserveDecision(string(d.Meta.Action), string(d.Reason))
	_ = LogEvent(ctx, "policy.decide", map[string]any{
		"request_user_id":   d.Meta.RequestUserID,
		"evaluated_user_id": d.Meta.EvaluatedUserID,
		"action":            d.Meta.Action,
		"allow":             d.Allow,
		"reason":            d.Reason,
		"tenant_id":         d.Details.Resource.TenantID,
		"objective_id":      d.Details.Resource.ObjectiveID,
	})
}
