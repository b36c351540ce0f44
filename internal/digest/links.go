package digest

import (
	"net/url"
	"strings"
)

// defaultPermalinkBase is the public permalink resolver used when no
// deployment-specific one is configured.
const defaultPermalinkBase = "https://matrix.to/#"

// LinkBuilder constructs the outbound links embedded in digest emails:
// room and event permalinks plus the recipient's unsubscribe URL.
type LinkBuilder struct {
	// PermalinkBase is the prefix for room and event permalinks. Defaults to
	// the public resolver when empty.
	PermalinkBase string

	// ServerBaseURL is the public base URL of this deployment's HTTP API,
	// used for unsubscribe links. No trailing slash.
	ServerBaseURL string
}

func (l LinkBuilder) permalinkBase() string {
	if l.PermalinkBase != "" {
		return strings.TrimRight(l.PermalinkBase, "/")
	}
	return defaultPermalinkBase
}

// RoomLink returns the permalink for a room.
func (l LinkBuilder) RoomLink(roomID string) string {
	return l.permalinkBase() + "/" + url.PathEscape(roomID)
}

// EventLink returns the permalink for a single event within a room.
func (l LinkBuilder) EventLink(roomID, eventID string) string {
	return l.permalinkBase() + "/" + url.PathEscape(roomID) + "/" + url.PathEscape(eventID)
}

// UnsubscribeLink returns the one-click URL that removes the recipient's
// email pusher. The token authorizes exactly that operation; appID and
// pushkey identify which pusher to remove.
func (l LinkBuilder) UnsubscribeLink(token, appID, pushkey string) string {
	params := url.Values{}
	params.Set("access_token", token)
	params.Set("app_id", appID)
	params.Set("pushkey", pushkey)
	return strings.TrimRight(l.ServerBaseURL, "/") + "/pushers/remove?" + params.Encode()
}
