package digest

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkBuilder_RoomLinkDefaultBase(t *testing.T) {
	l := LinkBuilder{}
	assert.Equal(t, "https://matrix.to/#/%21room:hs", l.RoomLink("!room:hs"))
}

func TestLinkBuilder_EventLink(t *testing.T) {
	l := LinkBuilder{}
	assert.Equal(t, "https://matrix.to/#/%21room:hs/$event1", l.EventLink("!room:hs", "$event1"))
}

func TestLinkBuilder_CustomPermalinkBase(t *testing.T) {
	l := LinkBuilder{PermalinkBase: "https://chat.example/#/"}
	assert.Equal(t, "https://chat.example/#/%21room:hs", l.RoomLink("!room:hs"))
}

func TestLinkBuilder_UnsubscribeLink(t *testing.T) {
	l := LinkBuilder{ServerBaseURL: "https://hs.example/"}
	link := l.UnsubscribeLink("tok123", "m.email", "me@example.com")

	parsed, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "/pushers/remove", parsed.Path)

	q := parsed.Query()
	assert.Equal(t, "tok123", q.Get("access_token"))
	assert.Equal(t, "m.email", q.Get("app_id"))
	assert.Equal(t, "me@example.com", q.Get("pushkey"))
}
