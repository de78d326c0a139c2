package authcore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrEthical07/authcore/audit"
	"github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/permission"
)

// Login authenticates identifier at applicationID and issues the first token
// pair of a new session. Unknown identifiers and wrong secrets both return
// ErrInvalidCredentials. Attempts are rate limited per application and
// identifier when the limiter is enabled.
func (e *Engine) Login(ctx context.Context, applicationID, identifier, secret string) (*TokenPair, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if e.credentials == nil || e.applications == nil {
		return nil, fmt.Errorf("%w: login requires a credential store and an application store", ErrEngineNotReady)
	}

	res := e.flows.Login(ctx, flows.LoginRequest{
		ApplicationID: applicationID,
		Identifier:    identifier,
		Secret:        secret,
	})
	if res.Failure == flows.LoginFailureNone {
		e.metricInc(MetricLoginSuccess)
		e.metricInc(MetricIssue)
		e.emitAudit(ctx, audit.Event{
			ActorID:       res.PrincipalID,
			ApplicationID: applicationID,
			Action:        audit.ActionLogin,
			Resource:      "sessions",
			ResourceID:    res.Pair.SessionID,
		})
		return pairFrom(res.Pair), nil
	}

	err := loginError(res)
	e.metricInc(MetricLoginFailure)
	e.logger.LogAttrs(ctx, slog.LevelInfo, "login failed",
		slog.String("application", applicationID),
		slog.String("reason", reasonOf(err)),
		slog.String("cause", errString(res.Err)),
	)
	if res.Failure != flows.LoginFailureInput {
		e.emitAudit(ctx, audit.Event{
			ActorID:       res.PrincipalID,
			ApplicationID: applicationID,
			Action:        audit.ActionLoginFailed,
			Resource:      "sessions",
			Detail:        map[string]any{"identifier": identifier, "reason": reasonOf(err)},
		})
	}
	return nil, err
}

func loginError(res flows.LoginResult) error {
	switch res.Failure {
	case flows.LoginFailureInput:
		return fmt.Errorf("%w: %w", ErrInvalidInput, res.Err)
	case flows.LoginFailureRateLimited:
		return ErrQuotaExceeded
	case flows.LoginFailureApplication:
		if errors.Is(res.Err, ErrNotFound) {
			return ErrApplicationNotFound
		}
		return fmt.Errorf("load application: %w", res.Err)
	case flows.LoginFailureApplicationInactive:
		return ErrApplicationInactive
	case flows.LoginFailureInvalidCredentials:
		return ErrInvalidCredentials
	case flows.LoginFailurePrincipalInactive:
		return ErrPrincipalInactive
	case flows.LoginFailurePermissions:
		return fmt.Errorf("resolve permissions: %w", res.Err)
	case flows.LoginFailureIssue:
		return fmt.Errorf("issue token pair: %w", res.Err)
	default:
		return fmt.Errorf("credential store: %w", res.Err)
	}
}

func (e *Engine) loginDeps(issue flows.IssueDeps) flows.LoginDeps {
	return flows.LoginDeps{
		CheckRate: func(ctx context.Context, identity string) bool {
			res, err := e.Allow(ctx, identity)
			if err != nil && !errors.Is(err, ErrRateLimited) {
				return true
			}
			return res.Allowed
		},
		GetApplication: func(ctx context.Context, id string) (flows.LoginApplicationRecord, error) {
			app, err := e.applications.GetApplication(ctx, id)
			if err != nil {
				return flows.LoginApplicationRecord{}, err
			}
			return flows.LoginApplicationRecord{ID: app.ID, Name: app.Name, Scope: app.Scope, Active: app.Active}, nil
		},
		LookupPrincipal: func(ctx context.Context, identifier string) (flows.LoginPrincipalRecord, error) {
			p, err := e.credentials.LookupPrincipal(ctx, identifier)
			if err != nil {
				return flows.LoginPrincipalRecord{}, err
			}
			return flows.LoginPrincipalRecord{ID: p.ID, Active: p.Active}, nil
		},
		VerifySecret: func(ctx context.Context, principalID, secret string) (bool, error) {
			return e.credentials.VerifySecret(ctx, principalID, secret)
		},
		ResolvePermissions: func(ctx context.Context, principalID string, app flows.LoginApplicationRecord) ([]string, error) {
			raw, err := e.credentials.ResolvePermissions(ctx, principalID, Application{
				ID:     app.ID,
				Name:   app.Name,
				Scope:  app.Scope,
				Active: app.Active,
			})
			if err != nil {
				return nil, err
			}
			snapshot, err := permission.NewSnapshot(raw)
			if err != nil {
				return nil, err
			}
			return snapshot.Strings(), nil
		},
		NotFound: ErrNotFound,
		Issue:    issue,
	}
}
