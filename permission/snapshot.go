package permission

import "sort"

// Snapshot is the immutable set of permissions resolved for a subject at
// token issuance. The zero value is an empty snapshot that denies everything.
type Snapshot struct {
	set map[Permission]struct{}
}

// NewSnapshot validates every entry of perms and returns the resulting set.
// Duplicates are collapsed.
func NewSnapshot(perms []string) (Snapshot, error) {
	set := make(map[Permission]struct{}, len(perms))
	for _, raw := range perms {
		p, err := Parse(raw)
		if err != nil {
			return Snapshot{}, err
		}
		set[p] = struct{}{}
	}
	return Snapshot{set: set}, nil
}

// MustSnapshot is NewSnapshot for static permission lists; it panics on invalid input.
func MustSnapshot(perms ...string) Snapshot {
	s, err := NewSnapshot(perms)
	if err != nil {
		panic(err)
	}
	return s
}

// Has reports whether p is a member.
func (s Snapshot) Has(p Permission) bool {
	_, ok := s.set[p]
	return ok
}

func (s Snapshot) Len() int {
	return len(s.set)
}

// Strings returns the members in sorted order. The slice is a fresh copy.
func (s Snapshot) Strings() []string {
	out := make([]string, 0, len(s.set))
	for p := range s.set {
		out = append(out, string(p))
	}
	sort.Strings(out)
	return out
}

// Union returns a new snapshot holding the members of s and other.
func (s Snapshot) Union(other Snapshot) Snapshot {
	set := make(map[Permission]struct{}, len(s.set)+len(other.set))
	for p := range s.set {
		set[p] = struct{}{}
	}
	for p := range other.set {
		set[p] = struct{}{}
	}
	return Snapshot{set: set}
}
