package model

// Role is one of the closed set of community roles a user can hold.
type Role string

const (
	RoleAdmin       Role = "Admin"
	RoleContributor Role = "Contributor"
	RoleMember      Role = "Member"
)

// Session identifies the authenticated user. It is owned by the backend;
// the client only reads it to gate views and to key cached queries.
type Session struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Roles  []Role `json:"roles"`
}

// HasRole reports whether the session carries role r.
func (s Session) HasRole(r Role) bool {
	for _, have := range s.Roles {
		if have == r {
			return true
		}
	}
	return false
}

// Authenticated reports whether the session belongs to a known user.
func (s Session) Authenticated() bool {
	return s.UserID != ""
}

// User is the profile returned by the backend for the current account.
type User struct {
	ID       string `json:"_id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Avatar   string `json:"avatar,omitempty"`
	Role     string `json:"role,omitempty"`
	Bio      string `json:"bio,omitempty"`
	Verified bool   `json:"isVerified,omitempty"`
}
