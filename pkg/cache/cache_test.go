package cache_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammar0144/socialcache/pkg/cache"
	"github.com/ammar0144/socialcache/pkg/model"
	"github.com/ammar0144/socialcache/pkg/redis"
	"github.com/ammar0144/socialcache/pkg/redis/redistest"
)

type adapters struct {
	server        *miniredis.Miniredis
	users         *cache.UserCache
	posts         *cache.PostCache
	comments      *cache.CommentCache
	reactions     *cache.ReactionCache
	followers     *cache.FollowerCache
	messages      *cache.MessageCache
	notifications *cache.NotificationCache
}

func newAdapters(t *testing.T) *adapters {
	manager, server := redistest.New(t)
	log := zerolog.Nop()
	users := cache.NewUserCache(manager, log)
	posts := cache.NewPostCache(manager, users, log)
	return &adapters{
		server:        server,
		users:         users,
		posts:         posts,
		comments:      cache.NewCommentCache(manager, posts, log),
		reactions:     cache.NewReactionCache(manager, posts, log),
		followers:     cache.NewFollowerCache(manager, users, log),
		messages:      cache.NewMessageCache(manager, log),
		notifications: cache.NewNotificationCache(manager, log),
	}
}

func testUser(id, uID string) *model.User {
	return &model.User{
		ID:            id,
		AuthID:        "auth-" + id,
		UID:           uID,
		Username:      "user" + id,
		Email:         id + "@example.com",
		AvatarColor:   "red",
		Notifications: model.DefaultNotificationSettings(),
		Social:        model.SocialLinks{Twitter: "@" + id},
		CreatedAt:     time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestUserCache(t *testing.T) {
	ctx := context.Background()

	t.Run("read your writes", func(t *testing.T) {
		a := newAdapters(t)
		require.NoError(t, a.users.SaveUser(ctx, testUser("u1", "101")))

		got, err := a.users.GetUser(ctx, "u1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "useru1", got.Username)
		assert.Equal(t, "101", got.UID)
		assert.Equal(t, "@u1", got.Social.Twitter)
		assert.True(t, got.Notifications.Follows)
		assert.Equal(t, []string{}, got.Blocked)
		assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), got.CreatedAt)
	})

	t.Run("miss is absent not error", func(t *testing.T) {
		a := newAdapters(t)
		got, err := a.users.GetUser(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("non numeric uId is rejected", func(t *testing.T) {
		a := newAdapters(t)
		assert.Error(t, a.users.SaveUser(ctx, testUser("u1", "abc")))
	})

	t.Run("pages newest join first without the caller", func(t *testing.T) {
		a := newAdapters(t)
		for i := 1; i <= 3; i++ {
			require.NoError(t, a.users.SaveUser(ctx, testUser(fmt.Sprintf("u%d", i), fmt.Sprintf("%d", i))))
		}

		users, err := a.users.GetUsers(ctx, 0, 3, "u2")
		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.Equal(t, "u3", users[0].ID)
		assert.Equal(t, "u1", users[1].ID)

		total, err := a.users.TotalUsers(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)

		empty, err := a.users.GetUsers(ctx, 10, 5, "")
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("update field", func(t *testing.T) {
		a := newAdapters(t)
		require.NoError(t, a.users.SaveUser(ctx, testUser("u1", "1")))

		got, err := a.users.UpdateField(ctx, "u1", "quote", "hello")
		require.NoError(t, err)
		assert.Equal(t, "hello", got.Quote)

		settings := model.NotificationSettings{Messages: true}
		got, err = a.users.UpdateField(ctx, "u1", "notifications", settings)
		require.NoError(t, err)
		assert.Equal(t, settings, got.Notifications)

		_, err = a.users.UpdateField(ctx, "u1", model.FieldPostsCount, "5")
		assert.Error(t, err)
	})

	t.Run("counters", func(t *testing.T) {
		a := newAdapters(t)
		require.NoError(t, a.users.SaveUser(ctx, testUser("u1", "1")))
		require.NoError(t, a.users.IncrementCounter(ctx, "u1", model.FieldFollowersCount, 2))
		require.NoError(t, a.users.IncrementCounter(ctx, "u1", model.FieldFollowersCount, -1))
		assert.Error(t, a.users.IncrementCounter(ctx, "u1", "username", 1))

		got, err := a.users.GetUser(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.FollowersCount)
	})

	t.Run("blocked list is a set", func(t *testing.T) {
		a := newAdapters(t)
		require.NoError(t, a.users.SaveUser(ctx, testUser("u1", "1")))
		require.NoError(t, a.users.UpdateBlockedList(ctx, "u1", model.FieldBlocked, "u2", model.ActionBlock))
		require.NoError(t, a.users.UpdateBlockedList(ctx, "u1", model.FieldBlocked, "u2", model.ActionBlock))
		require.NoError(t, a.users.UpdateBlockedList(ctx, "u1", model.FieldBlocked, "u3", model.ActionBlock))

		got, err := a.users.GetUser(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, []string{"u2", "u3"}, got.Blocked)

		require.NoError(t, a.users.UpdateBlockedList(ctx, "u1", model.FieldBlocked, "u2", model.ActionUnblock))
		got, err = a.users.GetUser(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, []string{"u3"}, got.Blocked)

		assert.Error(t, a.users.UpdateBlockedList(ctx, "u1", "email", "u2", model.ActionBlock))
	})

	t.Run("unavailable cache surfaces", func(t *testing.T) {
		a := newAdapters(t)
		a.server.Close()
		err := a.users.SaveUser(ctx, testUser("u1", "1"))
		assert.True(t, redis.IsCacheUnavailable(err))
	})
}

func TestPostCache(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) *adapters {
		a := newAdapters(t)
		require.NoError(t, a.users.SaveUser(ctx, testUser("u1", "1")))
		require.NoError(t, a.users.SaveUser(ctx, testUser("u2", "2")))
		return a
	}

	t.Run("save increments author posts", func(t *testing.T) {
		a := setup(t)
		require.NoError(t, a.posts.SavePost(ctx, &model.Post{ID: "p1", UserID: "u1", Post: "hi"}, "1"))

		post, err := a.posts.GetPost(ctx, "p1")
		require.NoError(t, err)
		require.NotNil(t, post)
		assert.Equal(t, "hi", post.Post)
		assert.Equal(t, int64(0), post.Reactions.Total())

		user, err := a.users.GetUser(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), user.PostsCount)
	})

	t.Run("feeds", func(t *testing.T) {
		a := setup(t)
		require.NoError(t, a.posts.SavePost(ctx, &model.Post{ID: "p1", UserID: "u1", ImgID: "img"}, "1"))
		require.NoError(t, a.posts.SavePost(ctx, &model.Post{ID: "p2", UserID: "u2", VideoID: "vid"}, "2"))
		require.NoError(t, a.posts.SavePost(ctx, &model.Post{ID: "p3", UserID: "u1", Post: "text"}, "1"))

		all, err := a.posts.GetPosts(ctx, 0, 10)
		require.NoError(t, err)
		assert.Len(t, all, 3)
		assert.Equal(t, "p2", all[0].ID)

		images, err := a.posts.GetPostsWithImages(ctx, 0, 10)
		require.NoError(t, err)
		require.Len(t, images, 1)
		assert.Equal(t, "p1", images[0].ID)

		videos, err := a.posts.GetPostsWithVideos(ctx, 0, 10)
		require.NoError(t, err)
		require.Len(t, videos, 1)
		assert.Equal(t, "p2", videos[0].ID)

		mine, err := a.posts.GetUserPosts(ctx, "1")
		require.NoError(t, err)
		assert.Len(t, mine, 2)

		total, err := a.posts.TotalPosts(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
	})

	t.Run("update keeps counters", func(t *testing.T) {
		a := setup(t)
		require.NoError(t, a.posts.SavePost(ctx, &model.Post{ID: "p1", UserID: "u1", Post: "old"}, "1"))
		require.NoError(t, a.posts.IncrementComments(ctx, "p1", 2))

		updated, err := a.posts.UpdatePost(ctx, "p1", &model.Post{Post: "new", Version: 7})
		require.NoError(t, err)
		assert.Equal(t, "new", updated.Post)
		assert.Equal(t, int64(2), updated.CommentsCount)
		assert.Equal(t, "u1", updated.UserID)
		assert.Equal(t, int64(7), updated.Version)
	})

	t.Run("delete", func(t *testing.T) {
		a := setup(t)
		require.NoError(t, a.posts.SavePost(ctx, &model.Post{ID: "p1", UserID: "u1"}, "1"))
		require.NoError(t, a.posts.DeletePost(ctx, "p1", "u1"))

		post, err := a.posts.GetPost(ctx, "p1")
		require.NoError(t, err)
		assert.Nil(t, post)

		user, err := a.users.GetUser(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, int64(0), user.PostsCount)
	})
}

func TestReactionCache(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) *adapters {
		a := newAdapters(t)
		require.NoError(t, a.users.SaveUser(ctx, testUser("u1", "1")))
		require.NoError(t, a.posts.SavePost(ctx, &model.Post{ID: "p1", UserID: "u1"}, "1"))
		return a
	}

	reactionsOf := func(t *testing.T, a *adapters) model.Reactions {
		post, err := a.posts.GetPost(ctx, "p1")
		require.NoError(t, err)
		return post.Reactions
	}

	t.Run("type change conserves the total", func(t *testing.T) {
		a := setup(t)

		prev, err := a.reactions.SaveReaction(ctx, &model.Reaction{PostID: "p1", Username: "bob", Type: model.ReactionLike})
		require.NoError(t, err)
		assert.Equal(t, model.ReactionType(""), prev)
		before := reactionsOf(t, a)
		assert.Equal(t, int64(1), before.Like)

		prev, err = a.reactions.SaveReaction(ctx, &model.Reaction{PostID: "p1", Username: "Bob", Type: model.ReactionLove})
		require.NoError(t, err)
		assert.Equal(t, model.ReactionLike, prev)

		after := reactionsOf(t, a)
		assert.Equal(t, before.Total(), after.Total())
		assert.Equal(t, int64(0), after.Like)
		assert.Equal(t, int64(1), after.Love)

		list, count, err := a.reactions.GetReactions(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
		assert.Equal(t, model.ReactionLove, list[0].Type)
	})

	t.Run("same type is a no-op on counters", func(t *testing.T) {
		a := setup(t)
		for i := 0; i < 2; i++ {
			_, err := a.reactions.SaveReaction(ctx, &model.Reaction{PostID: "p1", Username: "bob", Type: model.ReactionWow})
			require.NoError(t, err)
		}
		assert.Equal(t, int64(1), reactionsOf(t, a).Wow)
	})

	t.Run("remove", func(t *testing.T) {
		a := setup(t)
		_, err := a.reactions.SaveReaction(ctx, &model.Reaction{PostID: "p1", Username: "bob", Type: model.ReactionSad})
		require.NoError(t, err)

		prev, err := a.reactions.RemoveReaction(ctx, "p1", "bob")
		require.NoError(t, err)
		assert.Equal(t, model.ReactionSad, prev)
		assert.Equal(t, int64(0), reactionsOf(t, a).Total())

		prev, err = a.reactions.RemoveReaction(ctx, "p1", "bob")
		require.NoError(t, err)
		assert.Equal(t, model.ReactionType(""), prev)
		assert.Equal(t, int64(0), reactionsOf(t, a).Total())

		got, err := a.reactions.GetReactionByUsername(ctx, "p1", "bob")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestCommentCache(t *testing.T) {
	ctx := context.Background()
	a := newAdapters(t)
	require.NoError(t, a.users.SaveUser(ctx, testUser("u1", "1")))
	require.NoError(t, a.posts.SavePost(ctx, &model.Post{ID: "p1", UserID: "u1"}, "1"))

	for i, name := range []string{"ann", "bob", "ann"} {
		require.NoError(t, a.comments.SaveComment(ctx, &model.Comment{
			ID: fmt.Sprintf("c%d", i), PostID: "p1", Username: name, Comment: "nice",
		}))
	}

	comments, err := a.comments.GetComments(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, comments, 3)
	assert.Equal(t, "c2", comments[0].ID)

	names, err := a.comments.GetCommentNames(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), names.Count)
	assert.ElementsMatch(t, []string{"ann", "bob"}, names.Names)

	one, err := a.comments.GetComment(ctx, "p1", "c1")
	require.NoError(t, err)
	require.NotNil(t, one)
	assert.Equal(t, "bob", one.Username)

	post, err := a.posts.GetPost(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), post.CommentsCount)

	require.NoError(t, a.comments.DeleteForPost(ctx, "p1"))
	comments, err = a.comments.GetComments(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, comments)
}

func TestFollowerCache(t *testing.T) {
	ctx := context.Background()
	a := newAdapters(t)
	require.NoError(t, a.users.SaveUser(ctx, testUser("u1", "1")))
	require.NoError(t, a.users.SaveUser(ctx, testUser("u2", "2")))

	require.NoError(t, a.followers.AddFollower(ctx, "u1", "u2"))
	require.NoError(t, a.followers.UpdateFollowCounts(ctx, "u1", "u2", 1))

	following, err := a.followers.IsFollowing(ctx, "u1", "u2")
	require.NoError(t, err)
	assert.True(t, following)
	following, err = a.followers.HasFollower(ctx, "u2", "u1")
	require.NoError(t, err)
	assert.True(t, following)

	list, err := a.followers.GetFollowing(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "u2", list[0].ID)
	assert.Equal(t, int64(1), list[0].FollowersCount)

	list, err = a.followers.GetFollowers(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(1), list[0].FollowingCount)

	require.NoError(t, a.followers.RemoveFollower(ctx, "u1", "u2"))
	require.NoError(t, a.followers.UpdateFollowCounts(ctx, "u1", "u2", -1))
	following, err = a.followers.IsFollowing(ctx, "u1", "u2")
	require.NoError(t, err)
	assert.False(t, following)
	following, err = a.followers.HasFollower(ctx, "u2", "u1")
	require.NoError(t, err)
	assert.False(t, following)

	require.NoError(t, a.followers.UpdateBlocked(ctx, "u1", "u2", model.ActionBlock))
	u1, err := a.users.GetUser(ctx, "u1")
	require.NoError(t, err)
	u2, err := a.users.GetUser(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, u1.Blocked)
	assert.Equal(t, []string{"u1"}, u2.BlockedBy)
	assert.Equal(t, int64(0), u2.FollowersCount)
}

func TestMessageCache(t *testing.T) {
	ctx := context.Background()
	a := newAdapters(t)
	conv := model.ConversationID("u1", "u2")

	require.NoError(t, a.messages.AddChatListEntry(ctx, "u1", "u2", conv))
	require.NoError(t, a.messages.AddChatListEntry(ctx, "u1", "u2", conv))
	items, err := a.messages.GetChatList(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, items, 1)

	for i := 0; i < 2; i++ {
		require.NoError(t, a.messages.AddChatMessage(ctx, &model.Message{
			ID: fmt.Sprintf("m%d", i), ConversationID: conv, SenderID: "u1", ReceiverID: "u2", Body: fmt.Sprintf("hi %d", i),
		}))
	}

	latest, err := a.messages.GetConversationList(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, "m1", latest[0].ID)

	deleted, err := a.messages.MarkMessageDeleted(ctx, conv, "m0", model.DeleteForEveryone)
	require.NoError(t, err)
	require.NotNil(t, deleted)
	assert.True(t, deleted.DeleteForEveryone)

	reacted, err := a.messages.UpdateMessageReaction(ctx, conv, "m1", "bob", "love", model.ReactionAdd)
	require.NoError(t, err)
	assert.Equal(t, []model.MessageReaction{{SenderName: "bob", Type: "love"}}, reacted.Reaction)

	missing, err := a.messages.MarkMessageDeleted(ctx, conv, "nope", model.DeleteForMe)
	require.NoError(t, err)
	assert.Nil(t, missing)

	last, err := a.messages.MarkMessagesRead(ctx, conv, "u2")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, last.IsRead)

	messages, err := a.messages.GetChatMessages(ctx, conv)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.True(t, messages[0].IsRead)
	assert.True(t, messages[0].DeleteForEveryone)
	assert.Len(t, messages[1].Reaction, 1)

	pair := model.ChatUsers{UserOne: "u1", UserTwo: "u2"}
	pairs, err := a.messages.AddChatUsers(ctx, pair)
	require.NoError(t, err)
	assert.Len(t, pairs, 1)
	pairs, err = a.messages.AddChatUsers(ctx, pair)
	require.NoError(t, err)
	assert.Len(t, pairs, 1)
	pairs, err = a.messages.RemoveChatUsers(ctx, pair)
	require.NoError(t, err)
	assert.Empty(t, pairs)
}

func TestNotificationCache(t *testing.T) {
	ctx := context.Background()
	a := newAdapters(t)
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, a.notifications.SaveNotification(ctx, &model.Notification{
			ID:               fmt.Sprintf("n%d", i),
			UserTo:           "u1",
			UserFrom:         "u2",
			Message:          "hello",
			NotificationType: model.NotificationFollow,
			CreatedAt:        base.Add(time.Duration(i) * time.Minute),
		}))
	}

	page, err := a.notifications.GetNotifications(ctx, "u1", 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "n2", page[0].ID)
	assert.Equal(t, model.NotificationFollow, page[0].NotificationType)

	read, err := a.notifications.MarkRead(ctx, "n1")
	require.NoError(t, err)
	assert.True(t, read.Read)
	got, err := a.notifications.GetNotification(ctx, "n1")
	require.NoError(t, err)
	assert.True(t, got.Read)

	require.NoError(t, a.notifications.DeleteNotification(ctx, "n1"))
	page, err = a.notifications.GetNotifications(ctx, "u1", 0, 10)
	require.NoError(t, err)
	assert.Len(t, page, 2)

	missing, err := a.notifications.MarkRead(ctx, "n1")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
