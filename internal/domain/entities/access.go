package entities

// RegisteredUsersGroup is implicitly held by every user.
const RegisteredUsersGroup = "registered"

// AllProjects matches every project in an access right.
const AllProjects = "*"

// AccessRight grants members of Group a vote range in Category on Project.
type AccessRight struct {
	Project  string `json:"project"`
	Category string `json:"category"`
	Group    string `json:"group"`
	MinValue int16  `json:"min_value"`
	MaxValue int16  `json:"max_value"`
}

// User is the acting identity of a request.
type User struct {
	Name   string   `json:"name"`
	Groups []string `json:"groups,omitempty"`
}

// EffectiveGroups returns the user's groups plus the implicit registered group.
func (u User) EffectiveGroups() []string {
	groups := make([]string, 0, len(u.Groups)+1)
	groups = append(groups, RegisteredUsersGroup)
	for _, g := range u.Groups {
		if g != RegisteredUsersGroup {
			groups = append(groups, g)
		}
	}
	return groups
}

// PermissionRange is the vote range a user may cast in a category.
// A zero range (0..0) means the user holds no right in the category.
type PermissionRange struct {
	Min int16 `json:"min"`
	Max int16 `json:"max"`
}

// Clamp limits v to the range.
func (r PermissionRange) Clamp(v int16) int16 {
	if v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}
