package model

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReactionsCounters(t *testing.T) {
	var r Reactions
	r.Add(ReactionLike, 2)
	r.Add(ReactionLove, 1)
	r.Add(ReactionType("bogus"), 5)

	assert.Equal(t, int64(2), r.Get(ReactionLike))
	assert.Equal(t, int64(1), r.Get(ReactionLove))
	assert.Equal(t, int64(0), r.Get(ReactionType("bogus")))
	assert.Equal(t, int64(3), r.Total())
}

func TestParseReactionType(t *testing.T) {
	for _, rt := range ReactionTypes {
		got, err := ParseReactionType(string(rt))
		require.NoError(t, err)
		assert.Equal(t, rt, got)
	}
	_, err := ParseReactionType("")
	assert.Error(t, err)
	_, err = ParseReactionType("meh")
	assert.Error(t, err)
}

func TestNaturalIDs(t *testing.T) {
	assert.Equal(t, ReactionID("p1", "Manny"), ReactionID("p1", "manny"))
	assert.NotEqual(t, ReactionID("p1", "manny"), ReactionID("p2", "manny"))
	assert.NotEqual(t, FollowerEdgeID("u1", "u2"), FollowerEdgeID("u2", "u1"))
	assert.Equal(t, ConversationID("u1", "u2"), ConversationID("u2", "u1"))
	assert.NotEqual(t, BlockID("u1", "u2"), FollowerEdgeID("u1", "u2"))
	assert.NotEqual(t, NewID(), NewID())
}

func TestMessageApplyReaction(t *testing.T) {
	m := &Message{}
	m.ApplyReaction("manny", "like", ReactionAdd)
	m.ApplyReaction("danny", "sad", ReactionAdd)
	m.ApplyReaction("manny", "love", ReactionAdd)
	require.Len(t, m.Reaction, 2)
	assert.Contains(t, m.Reaction, MessageReaction{SenderName: "manny", Type: "love"})

	m.ApplyReaction("manny", "", ReactionRemove)
	assert.Equal(t, []MessageReaction{{SenderName: "danny", Type: "sad"}}, m.Reaction)
}

func TestMessageApplyDelete(t *testing.T) {
	m := &Message{}
	m.ApplyDelete(DeleteForMe)
	assert.True(t, m.DeleteForMe)
	assert.False(t, m.DeleteForEveryone)

	m.ApplyDelete(DeleteForEveryone)
	assert.True(t, m.DeleteForEveryone)
}

func TestNotificationSettingsAllows(t *testing.T) {
	s := NotificationSettings{Comments: true}
	assert.True(t, s.Allows(NotificationComment))
	assert.False(t, s.Allows(NotificationFollow))
	assert.True(t, DefaultNotificationSettings().Allows(NotificationMessage))
}

func TestReactionDeltas(t *testing.T) {
	tests := []struct {
		name       string
		prev, next ReactionType
		want       map[ReactionType]int64
	}{
		{name: "new reaction", next: ReactionLike, want: map[ReactionType]int64{ReactionLike: 1}},
		{name: "change", prev: ReactionLike, next: ReactionLove, want: map[ReactionType]int64{ReactionLike: -1, ReactionLove: 1}},
		{name: "removal", prev: ReactionSad, want: map[ReactionType]int64{ReactionSad: -1}},
		{name: "unchanged", prev: ReactionWow, next: ReactionWow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ReactionDeltas(tt.prev, tt.next)
			assert.Equal(t, len(tt.want), len(got))
			for k, v := range tt.want {
				assert.Equal(t, v, got[k])
			}
		})
	}
}

func TestNextVersionIsStrictlyIncreasing(t *testing.T) {
	prev := NextVersion()
	for i := 0; i < 1000; i++ {
		next := NextVersion()
		require.Greater(t, next, prev)
		prev = next
	}
}

func TestNewUID(t *testing.T) {
	uid := NewUID()
	assert.Len(t, uid, 12)
	_, err := strconv.ParseUint(uid, 10, 64)
	assert.NoError(t, err)
	assert.NotEqual(t, uid, NewUID())
}
