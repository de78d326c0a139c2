package flows

// Deps groups flow dependency sets. The root engine builds this once and
// delegates request methods to the matching flow implementation.
type Deps struct {
	Issue    IssueDeps
	Validate ValidateDeps
	Refresh  RefreshDeps
	Logout   LogoutDeps
	Login    LoginDeps
}
