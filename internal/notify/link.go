package notify

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/nhle/agora/internal/model"
)

// Link resolves the in-app destination of a notification. Follows open the
// sender's profile, comments open the post with the comment highlighted and
// everything else, including types this client does not know, opens the
// entity's post.
func Link(n model.Notification) string {
	switch n.Type {
	case model.NotificationFollow:
		return "/profiles/" + n.SenderInfo.ID
	case model.NotificationComment:
		if n.CommentID != "" {
			return "/post/" + n.EntityID + "?highlight=" + url.QueryEscape(n.CommentID)
		}
	}
	return "/post/" + n.EntityID
}

// RouteKind names the view a link opens.
type RouteKind string

const (
	RouteProfile RouteKind = "profile"
	RoutePost    RouteKind = "post"
)

// Route is a parsed in-app link.
type Route struct {
	Kind      RouteKind
	ID        string
	Highlight string
}

// ParseLink turns a path produced by Link back into a Route.
func ParseLink(link string) (Route, error) {
	u, err := url.Parse(link)
	if err != nil {
		return Route{}, fmt.Errorf("parsing link %q: %w", link, err)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) != 2 || parts[1] == "" {
		return Route{}, fmt.Errorf("unrecognized link %q", link)
	}

	switch parts[0] {
	case "profiles":
		return Route{Kind: RouteProfile, ID: parts[1]}, nil
	case "post":
		return Route{Kind: RoutePost, ID: parts[1], Highlight: u.Query().Get("highlight")}, nil
	default:
		return Route{}, fmt.Errorf("unrecognized link %q", link)
	}
}
