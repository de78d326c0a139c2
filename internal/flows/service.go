package flows

import (
	"context"

	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/session"
)

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Validate.Parse != nil
}

func (s Service) Issue(ctx context.Context, req IssueRequest) IssueResult {
	return RunIssue(ctx, req, s.deps.Issue)
}

func (s Service) Validate(ctx context.Context, tokenStr string, expected jwt.TokenType) ValidateResult {
	return RunValidate(ctx, tokenStr, expected, s.deps.Validate)
}

func (s Service) ValidateStateless(ctx context.Context, tokenStr string, expected jwt.TokenType) ValidateResult {
	return RunValidate(ctx, tokenStr, expected, s.deps.Validate.Stateless())
}

func (s Service) Refresh(ctx context.Context, refreshToken string) RefreshResult {
	return RunRefresh(ctx, refreshToken, s.deps.Refresh)
}

func (s Service) Logout(ctx context.Context, accessToken string) LogoutResult {
	return RunLogout(ctx, accessToken, s.deps.Logout)
}

func (s Service) Revoke(ctx context.Context, sess session.Session) error {
	return RunRevoke(ctx, sess, s.deps.Logout)
}

func (s Service) RevokeAll(ctx context.Context, app, subject string) (int, error) {
	return RunRevokeAll(ctx, app, subject, s.deps.Logout)
}

func (s Service) Login(ctx context.Context, req LoginRequest) LoginResult {
	return RunLogin(ctx, req, s.deps.Login)
}
