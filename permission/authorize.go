package permission

// Rule names the precedence rule that produced a decision.
type Rule uint8

const (
	RuleNone Rule = iota
	RuleWildcard
	RuleSuperAdmin
	RuleResourceWildcard
	RuleExact
)

func (r Rule) String() string {
	switch r {
	case RuleWildcard:
		return "wildcard"
	case RuleSuperAdmin:
		return "super_admin"
	case RuleResourceWildcard:
		return "resource_wildcard"
	case RuleExact:
		return "exact"
	default:
		return "none"
	}
}

// Decision is the outcome of [Evaluate].
type Decision struct {
	Allowed bool
	Rule    Rule
	// Required is the exact scoped permission the request asked for.
	Required Permission
}

// Evaluate decides whether s authorizes action on resource within scope.
// Unscoped resource names are normalized into scope before matching.
func Evaluate(s Snapshot, scope, resource, action string) Decision {
	scoped := Normalize(scope, resource)
	required := Permission(scoped + ":" + action)

	switch {
	case s.Has(Wildcard):
		return Decision{Allowed: true, Rule: RuleWildcard, Required: required}
	case s.Has(SuperAdmin):
		return Decision{Allowed: true, Rule: RuleSuperAdmin, Required: required}
	case resource == "" || action == "":
		return Decision{Required: required}
	case s.Has(Permission(scoped + ":" + AnyAction)):
		return Decision{Allowed: true, Rule: RuleResourceWildcard, Required: required}
	case s.Has(required):
		return Decision{Allowed: true, Rule: RuleExact, Required: required}
	default:
		return Decision{Required: required}
	}
}

// Authorize reports whether s allows action on resource within scope.
func Authorize(s Snapshot, scope, resource, action string) bool {
	return Evaluate(s, scope, resource, action).Allowed
}
