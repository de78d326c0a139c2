package session

// Session binds one login of Subject at Application to the refresh token
// that is currently allowed to continue it.
//
// RefreshID is the jti of the single refresh token that may be presented next.
// Every successful rotation replaces it, so an older refresh token of the same
// session no longer matches.
type Session struct {
	ID          string
	Subject     string
	Application string
	RefreshID   string
}
