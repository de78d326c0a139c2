package flows

import (
	"context"
	"errors"
)

// LoginFailureKind classifies login failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureInput
	LoginFailureRateLimited
	LoginFailureApplication
	LoginFailureApplicationInactive
	LoginFailureInvalidCredentials
	LoginFailurePrincipalInactive
	LoginFailurePermissions
	LoginFailureIssue
	LoginFailureStore
)

// LoginApplicationRecord is a flow-local application model.
type LoginApplicationRecord struct {
	ID     string
	Name   string
	Scope  string
	Active bool
}

// LoginPrincipalRecord is a flow-local principal model.
type LoginPrincipalRecord struct {
	ID     string
	Active bool
}

// LoginRequest is the flow-local login request shape.
type LoginRequest struct {
	ApplicationID string
	Identifier    string
	Secret        string
}

// LoginResult carries either the issued pair or failure metadata.
type LoginResult struct {
	Failure     LoginFailureKind
	Err         error
	PrincipalID string
	Pair        IssueResult
}

// LoginDeps captures login dependencies. NotFound is the sentinel the
// principal lookup returns for unknown identifiers.
type LoginDeps struct {
	CheckRate          func(ctx context.Context, identity string) bool
	GetApplication     func(ctx context.Context, id string) (LoginApplicationRecord, error)
	LookupPrincipal    func(ctx context.Context, identifier string) (LoginPrincipalRecord, error)
	VerifySecret       func(ctx context.Context, principalID, secret string) (bool, error)
	ResolvePermissions func(ctx context.Context, principalID string, app LoginApplicationRecord) ([]string, error)
	NotFound           error
	Issue              IssueDeps
}

// RunLogin authenticates a principal for an application and issues its first pair.
// Unknown principals and wrong secrets produce the same failure kind.
func RunLogin(ctx context.Context, req LoginRequest, deps LoginDeps) LoginResult {
	if req.ApplicationID == "" || req.Identifier == "" || req.Secret == "" {
		return LoginResult{Failure: LoginFailureInput, Err: errors.New("application, identifier and secret are required")}
	}

	if deps.CheckRate != nil && !deps.CheckRate(ctx, "login:"+req.ApplicationID+":"+req.Identifier) {
		return LoginResult{Failure: LoginFailureRateLimited}
	}

	app, err := deps.GetApplication(ctx, req.ApplicationID)
	if err != nil {
		return LoginResult{Failure: LoginFailureApplication, Err: err}
	}
	if !app.Active {
		return LoginResult{Failure: LoginFailureApplicationInactive}
	}

	principal, err := deps.LookupPrincipal(ctx, req.Identifier)
	if err != nil {
		if deps.NotFound != nil && errors.Is(err, deps.NotFound) {
			return LoginResult{Failure: LoginFailureInvalidCredentials, Err: err}
		}
		return LoginResult{Failure: LoginFailureStore, Err: err}
	}

	ok, err := deps.VerifySecret(ctx, principal.ID, req.Secret)
	if err != nil {
		return LoginResult{Failure: LoginFailureStore, Err: err, PrincipalID: principal.ID}
	}
	if !ok {
		return LoginResult{Failure: LoginFailureInvalidCredentials, PrincipalID: principal.ID}
	}
	if !principal.Active {
		return LoginResult{Failure: LoginFailurePrincipalInactive, PrincipalID: principal.ID}
	}

	perms, err := deps.ResolvePermissions(ctx, principal.ID, app)
	if err != nil {
		return LoginResult{Failure: LoginFailurePermissions, Err: err, PrincipalID: principal.ID}
	}

	pair := RunIssue(ctx, IssueRequest{
		Subject:     principal.ID,
		Application: app.ID,
		Scope:       app.Scope,
		Permissions: perms,
	}, deps.Issue)
	if pair.Failure != IssueFailureNone {
		return LoginResult{Failure: LoginFailureIssue, Err: pair.Err, PrincipalID: principal.ID, Pair: pair}
	}

	return LoginResult{PrincipalID: principal.ID, Pair: pair}
}
