package audit

import (
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Action enumerates audited operations.
type Action string

const (
	ActionLogin            Action = "LOGIN"
	ActionLoginFailed      Action = "LOGIN_FAILED"
	ActionLogout           Action = "LOGOUT"
	ActionTokenRefresh     Action = "TOKEN_REFRESH"
	ActionRefreshReuse     Action = "REFRESH_REUSE"
	ActionSessionRevoke    Action = "SESSION_REVOKE"
	ActionPermissionDenied Action = "PERMISSION_DENIED"
	ActionRateLimited      Action = "RATE_LIMITED"
	ActionCreate           Action = "CREATE"
	ActionUpdate           Action = "UPDATE"
	ActionDelete           Action = "DELETE"
	ActionAssignRole       Action = "ASSIGN_ROLE"
	ActionRevokeRole       Action = "REVOKE_ROLE"
	ActionExport           Action = "EXPORT"
)

var knownActions = map[Action]struct{}{
	ActionLogin: {}, ActionLoginFailed: {}, ActionLogout: {}, ActionTokenRefresh: {},
	ActionRefreshReuse: {}, ActionSessionRevoke: {}, ActionPermissionDenied: {},
	ActionRateLimited: {}, ActionCreate: {}, ActionUpdate: {}, ActionDelete: {},
	ActionAssignRole: {}, ActionRevokeRole: {}, ActionExport: {},
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	_, ok := knownActions[a]
	return ok
}

// Event is one immutable audit record.
//
// ActorEmail and ApplicationName are read-side fields filled by stores that can
// join them; they are ignored on insert.
type Event struct {
	ID              string
	ActorID         string
	ActorEmail      string
	ApplicationID   string
	ApplicationName string
	Action          Action
	Resource        string
	ResourceID      string
	Detail          map[string]any
	IP              string
	UserAgent       string
	Timestamp       time.Time
}

func (e Event) clone() Event {
	if e.Detail != nil {
		detail := make(map[string]any, len(e.Detail))
		for k, v := range e.Detail {
			detail[k] = v
		}
		e.Detail = detail
	}
	return e
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// NewID returns a lexicographically sortable event id for t.
func NewID(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
