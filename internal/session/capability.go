package session

import (
	"fmt"

	"github.com/nhle/agora/internal/model"
)

// Capability is an action gated by role.
type Capability string

const (
	ViewFeed          Capability = "view_feed"
	SendMessages      Capability = "send_messages"
	ApplyContributor  Capability = "apply_contributor"
	PublishContent    Capability = "publish_content"
	ViewContributor   Capability = "view_contributor_dashboard"
	ModerateContent   Capability = "moderate_content"
	ManageUsers       Capability = "manage_users"
	ViewAdmin         Capability = "view_admin_dashboard"
	ViewMemberDash    Capability = "view_member_dashboard"
	ReviewApplication Capability = "review_applications"
)

// grants lists each role's capabilities. Roles do not inherit; a user
// holding several roles gets the union.
var grants = map[model.Role][]Capability{
	model.RoleMember: {
		ViewFeed, SendMessages, ApplyContributor, ViewMemberDash,
	},
	model.RoleContributor: {
		ViewFeed, SendMessages, PublishContent, ViewContributor, ViewMemberDash,
	},
	model.RoleAdmin: {
		ViewFeed, SendMessages, PublishContent, ModerateContent,
		ManageUsers, ViewAdmin, ReviewApplication, ViewContributor, ViewMemberDash,
	},
}

// Can reports whether any of the session's roles grants c.
func Can(s model.Session, c Capability) bool {
	if !s.Authenticated() {
		return false
	}
	for _, r := range s.Roles {
		for _, have := range grants[r] {
			if have == c {
				return true
			}
		}
	}
	return false
}

// Guard returns ErrForbidden when the session lacks c.
func Guard(s model.Session, c Capability) error {
	if Can(s, c) {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrForbidden, c)
}

// Dashboard identifies one of the role dashboards.
type Dashboard struct {
	Role       model.Role
	Capability Capability
}

// dashboards in precedence order.
var dashboards = []Dashboard{
	{Role: model.RoleAdmin, Capability: ViewAdmin},
	{Role: model.RoleContributor, Capability: ViewContributor},
	{Role: model.RoleMember, Capability: ViewMemberDash},
}

// DashboardFor picks the highest-privilege dashboard the session may open.
func DashboardFor(s model.Session) (Dashboard, bool) {
	for _, d := range dashboards {
		if s.HasRole(d.Role) && Can(s, d.Capability) {
			return d, true
		}
	}
	return Dashboard{}, false
}
