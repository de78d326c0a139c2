package authcore

import (
	"context"
	"log/slog"

	"github.com/MrEthical07/authcore/audit"
	"github.com/MrEthical07/authcore/permission"
)

// Authorize checks whether claims allow action on resource. It performs no
// I/O on the allow path; a denial is counted and audited as
// PERMISSION_DENIED and returns ErrPermissionDenied.
func (e *Engine) Authorize(ctx context.Context, claims *Claims, resource, action string) error {
	if claims == nil {
		return ErrUnauthenticated
	}

	d := permission.Evaluate(claims.Permissions, claims.Scope, resource, action)
	if d.Allowed {
		return nil
	}

	e.metricInc(MetricPermissionDenied)
	e.logger.LogAttrs(ctx, slog.LevelDebug, "permission denied",
		slog.String("subject", claims.Subject),
		slog.String("application", claims.Application),
		slog.String("required", d.Required.String()),
	)
	e.emitAudit(ctx, audit.Event{
		ActorID:       claims.Subject,
		ApplicationID: claims.Application,
		Action:        audit.ActionPermissionDenied,
		Resource:      resource,
		Detail:        map[string]any{"action": action, "required": d.Required.String()},
	})
	return ErrPermissionDenied
}
