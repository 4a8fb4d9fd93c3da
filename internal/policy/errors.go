package policy

import "errors"

var (
	ErrNotFound       = errors.New("policy: not found")
	ErrConflict       = errors.New("policy: already exists")
	ErrInvalidInput   = errors.New("policy: invalid input")
	ErrForbidden      = errors.New("policy: forbidden")
	ErrTenantBoundary = errors.New("policy: tenant boundary violation")
	ErrEscalation     = errors.New("policy: role exceeds granter level")
	ErrCycle          = errors.New("policy: workspace hierarchy cycle")
)
