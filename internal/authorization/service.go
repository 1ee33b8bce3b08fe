package authorization

import (
	"context"
	"errors"

	obscontext "github.com/smallbiznis/paramstore/internal/observability/context"
)

var (
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidRole   = errors.New("invalid_role")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
	ErrForbidden     = errors.New("forbidden")
)

type Service interface {
	// Authorize returns nil when actor may perform action on object.
	Authorize(ctx context.Context, actor obscontext.Actor, object string, action string) error
}
