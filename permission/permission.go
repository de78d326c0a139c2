package permission

import (
	"errors"
	"fmt"
	"strings"
)

// Permission is a validated permission string.
type Permission string

const (
	// Wildcard grants every action on every resource.
	Wildcard Permission = "*"
	// SuperAdmin is the designated super-admin sentinel.
	SuperAdmin Permission = "superadmin"
	// AnyAction is the action segment of a resource-wide wildcard.
	AnyAction = "*"
)

// ErrInvalidPermission is returned by [Parse] for strings outside the grammar.
var ErrInvalidPermission = errors.New("invalid permission")

// Parse validates s against the permission grammar.
func Parse(s string) (Permission, error) {
	switch Permission(s) {
	case Wildcard, SuperAdmin:
		return Permission(s), nil
	}

	scoped, action, ok := strings.Cut(s, ":")
	if !ok || action == "" || strings.Contains(action, ":") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPermission, s)
	}
	scope, resource, ok := strings.Cut(scoped, "_")
	if !ok || scope == "" || resource == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidPermission, s)
	}
	if !validSegment(scope) || !validSegment(resource) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPermission, s)
	}
	if action != AnyAction && !validSegment(action) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPermission, s)
	}

	return Permission(s), nil
}

// New builds the scoped permission for resource and action. resource is
// normalized into scope first.
func New(scope, resource, action string) (Permission, error) {
	return Parse(Normalize(scope, resource) + ":" + action)
}

// Normalize prefixes resource with "<scope>_" unless it already carries it.
// An empty scope leaves resource untouched.
func Normalize(scope, resource string) string {
	if scope == "" {
		return resource
	}
	prefix := scope + "_"
	if strings.HasPrefix(resource, prefix) {
		return resource
	}
	return prefix + resource
}

// Scope returns the scope segment, or "" for sentinels.
func (p Permission) Scope() string {
	if p == Wildcard || p == SuperAdmin {
		return ""
	}
	scope, _, _ := strings.Cut(string(p), "_")
	return scope
}

func (p Permission) String() string {
	return string(p)
}

func validSegment(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '_' || c == '-' || c == '.':
		default:
			return false
		}
	}
	return s != ""
}
