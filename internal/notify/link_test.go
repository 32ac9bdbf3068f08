package notify_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/agora/internal/model"
	"github.com/nhle/agora/internal/notify"
)

func TestLink(t *testing.T) {
	tests := []struct {
		name string
		n    model.Notification
		want string
	}{
		{
			name: "follow opens the sender profile",
			n:    model.Notification{Type: model.NotificationFollow, SenderInfo: model.SenderInfo{ID: "u1"}},
			want: "/profiles/u1",
		},
		{
			name: "comment highlights the comment",
			n:    model.Notification{Type: model.NotificationComment, EntityID: "p1", CommentID: "c1"},
			want: "/post/p1?highlight=c1",
		},
		{
			name: "comment without comment id opens the post",
			n:    model.Notification{Type: model.NotificationComment, EntityID: "p1"},
			want: "/post/p1",
		},
		{
			name: "reaction opens the post",
			n:    model.Notification{Type: model.NotificationReaction, EntityID: "p2"},
			want: "/post/p2",
		},
		{
			name: "unknown type opens the post",
			n:    model.Notification{Type: "anniversary", EntityID: "p9"},
			want: "/post/p9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, notify.Link(tt.n))
		})
	}
}

func TestParseLink(t *testing.T) {
	r, err := notify.ParseLink("/post/p1?highlight=c1")
	require.NoError(t, err)
	assert.Equal(t, notify.Route{Kind: notify.RoutePost, ID: "p1", Highlight: "c1"}, r)

	r, err = notify.ParseLink("/profiles/u1")
	require.NoError(t, err)
	assert.Equal(t, notify.Route{Kind: notify.RouteProfile, ID: "u1"}, r)

	_, err = notify.ParseLink("/post/")
	assert.Error(t, err)

	_, err = notify.ParseLink("/shop/b1")
	assert.Error(t, err)
}

func TestPlainText(t *testing.T) {
	assert.Equal(t, "Ada started following you",
		notify.PlainText("<strong>Ada</strong> started following you"))
	assert.Equal(t, "Line one Line & two",
		notify.PlainText("Line one<br/>Line &amp; two"))
	assert.Equal(t, "", notify.PlainText(""))
}

func TestSegments(t *testing.T) {
	segs := notify.Segments("<p><b>Zeno</b> replied:   <em>keep calm</em></p>")

	require.Len(t, segs, 2)
	assert.Equal(t, notify.Segment{Text: "Zeno", Bold: true}, segs[0])
	assert.Equal(t, notify.Segment{Text: " replied: keep calm", Bold: false}, segs[1])
}
