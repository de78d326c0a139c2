package authcore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/MrEthical07/authcore/audit"
)

// emitAudit fills request metadata from ctx and queues event. It never
// blocks on persistence and never fails the caller.
func (e *Engine) emitAudit(ctx context.Context, event audit.Event) {
	if e == nil || e.audit == nil {
		return
	}
	if event.IP == "" {
		event.IP = clientIPFromContext(ctx)
	}
	if event.UserAgent == "" {
		event.UserAgent = userAgentFromContext(ctx)
	}
	if claims, ok := ClaimsFromContext(ctx); ok {
		if event.ActorID == "" {
			event.ActorID = claims.Subject
		}
		if event.ApplicationID == "" {
			event.ApplicationID = claims.Application
		}
	}
	e.audit.Record(ctx, event)
}

// RecordAudit queues an application-defined event such as CREATE or
// ASSIGN_ROLE. Events with an unknown action are discarded.
func (e *Engine) RecordAudit(ctx context.Context, event audit.Event) {
	if !event.Action.Valid() {
		if e != nil {
			e.logger.Warn("audit event with unknown action discarded", "action", string(event.Action))
		}
		return
	}
	e.emitAudit(ctx, event)
}

// QueryAudit returns one page of audit events matching f.
func (e *Engine) QueryAudit(ctx context.Context, f audit.Filter, page audit.Page, sort audit.Sort) (audit.Result, error) {
	if e == nil || e.audit == nil {
		return audit.Result{}, ErrAuditUnavailable
	}
	res, err := e.audit.Query(ctx, f, page, sort)
	return res, auditError(err)
}

// AuditStats summarizes the trailing windowDays days, optionally scoped to
// one application.
func (e *Engine) AuditStats(ctx context.Context, windowDays int, applicationID string) (audit.Stats, error) {
	if e == nil || e.audit == nil {
		return audit.Stats{}, ErrAuditUnavailable
	}
	stats, err := e.audit.Aggregate(ctx, windowDays, applicationID)
	return stats, auditError(err)
}

// ExportAudit renders the events matching f as CSV and records an EXPORT
// event attributed to the caller in ctx.
func (e *Engine) ExportAudit(ctx context.Context, f audit.Filter) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := e.WriteAuditCSV(ctx, &buf, f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteAuditCSV streams the export to w and returns the number of data rows.
func (e *Engine) WriteAuditCSV(ctx context.Context, w io.Writer, f audit.Filter) (int, error) {
	if e == nil || e.audit == nil {
		return 0, ErrAuditUnavailable
	}
	n, err := e.audit.WriteCSV(ctx, w, f)
	if err != nil {
		return n, auditError(err)
	}
	e.recordExport(ctx, f, n)
	return n, nil
}

func (e *Engine) recordExport(ctx context.Context, f audit.Filter, rows int) {
	detail := map[string]any{"rows": rows}
	if f.ActorID != "" {
		detail["actor_id"] = f.ActorID
	}
	if f.ApplicationID != "" {
		detail["application_id"] = f.ApplicationID
	}
	if !f.From.IsZero() {
		detail["from"] = f.From.UTC().Format(time.RFC3339)
	}
	if !f.To.IsZero() {
		detail["to"] = f.To.UTC().Format(time.RFC3339)
	}
	e.emitAudit(ctx, audit.Event{
		Action:   audit.ActionExport,
		Resource: "audit_logs",
		Detail:   detail,
	})
}

func auditError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, audit.ErrInvalidFilter) {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return err
}
