package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammar0144/socialcache/pkg/bus"
	"github.com/ammar0144/socialcache/pkg/db/dbtest"
	"github.com/ammar0144/socialcache/pkg/model"
	"github.com/ammar0144/socialcache/pkg/queue"
	"github.com/ammar0144/socialcache/pkg/redis"
	"github.com/ammar0144/socialcache/pkg/redis/redistest"
	"github.com/ammar0144/socialcache/pkg/repository"
	"github.com/ammar0144/socialcache/pkg/service"
)

type recorder struct {
	mu       sync.Mutex
	payloads []queue.Payload
	events   []string
}

func (r *recorder) Enqueue(_ context.Context, payload queue.Payload) *queue.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, payload)
	return nil
}

func (r *recorder) Emit(_ context.Context, event string, _ interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) jobs() []queue.Name {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]queue.Name, len(r.payloads))
	for i, p := range r.payloads {
		names[i] = p.JobName()
	}
	return names
}

func (r *recorder) emitted() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = nil
	r.events = nil
}

func (r *recorder) last(name queue.Name) queue.Payload {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.payloads) - 1; i >= 0; i-- {
		if r.payloads[i].JobName() == name {
			return r.payloads[i]
		}
	}
	return nil
}

var (
	_ queue.Enqueuer = (*recorder)(nil)
	_ bus.Emitter    = (*recorder)(nil)
)

type env struct {
	svc    *service.Service
	caches *service.Caches
	store  *repository.Store
	server *miniredis.Miniredis
	rec    *recorder
}

func newEnv(t *testing.T) *env {
	t.Helper()
	manager, server := redistest.New(t)
	store := repository.NewStore(dbtest.New(t), zerolog.Nop())
	caches := service.NewCaches(manager, zerolog.Nop())
	rec := &recorder{}
	return &env{
		svc:    service.New(caches, store, rec, rec, zerolog.Nop()),
		caches: caches,
		store:  store,
		server: server,
		rec:    rec,
	}
}

func (e *env) signUp(t *testing.T, username string) model.CurrentUser {
	t.Helper()
	user, err := e.svc.SignUp(context.Background(), service.SignUpInput{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hash",
		AvatarColor:  "blue",
	})
	require.NoError(t, err)
	return model.CurrentUser{
		UserID:      user.ID,
		Username:    user.Username,
		AvatarColor: user.AvatarColor,
		Email:       user.Email,
		UID:         user.UID,
	}
}

func TestSignUp(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	current := e.signUp(t, "manny")
	assert.Equal(t, []queue.Name{queue.JobAddAuthUser, queue.JobAddUser}, e.rec.jobs())

	cached, err := e.caches.Users.GetUser(ctx, current.UserID)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, "manny", cached.Username)
	assert.True(t, cached.Notifications.Comments)

	auth := e.rec.last(queue.JobAddAuthUser).(queue.AddAuthUser).Value
	assert.Equal(t, current.UID, auth.UID)

	t.Run("duplicate username", func(t *testing.T) {
		_, err := e.store.CreateAuth(ctx, &auth)
		require.NoError(t, err)
		_, err = e.svc.SignUp(ctx, service.SignUpInput{
			Username: "manny", Email: "other@example.com", PasswordHash: "hash", AvatarColor: "red",
		})
		assert.True(t, service.IsValidation(err))
	})
}

func TestValidationHappensBeforeIO(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	current := e.signUp(t, "manny")
	e.rec.reset()
	e.server.Close()

	tests := []struct {
		name string
		call func() error
	}{
		{"sign up without email", func() error {
			_, err := e.svc.SignUp(ctx, service.SignUpInput{Username: "x", PasswordHash: "h", AvatarColor: "red"})
			return err
		}},
		{"empty post", func() error {
			_, err := e.svc.CreatePost(ctx, current, service.PostInput{})
			return err
		}},
		{"unknown reaction", func() error {
			_, err := e.svc.AddReaction(ctx, current, "p1", "meh", "")
			return err
		}},
		{"follow yourself", func() error {
			_, err := e.svc.Follow(ctx, current, current.UserID)
			return err
		}},
		{"empty message", func() error {
			_, err := e.svc.SendMessage(ctx, current, service.MessageInput{ReceiverID: "u2", ReceiverUsername: "danny"})
			return err
		}},
		{"bad page", func() error {
			_, err := e.svc.GetPosts(ctx, -1, 10)
			return err
		}},
		{"anonymous user", func() error {
			_, err := e.svc.CreatePost(ctx, model.CurrentUser{}, service.PostInput{Post: "hi"})
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, service.IsValidation(tt.call()))
		})
	}
	assert.Empty(t, e.rec.jobs())
	assert.Empty(t, e.rec.emitted())
}

func TestCacheFailureIsReturned(t *testing.T) {
	e := newEnv(t)
	current := e.signUp(t, "manny")
	e.rec.reset()
	e.server.Close()

	_, err := e.svc.CreatePost(context.Background(), current, service.PostInput{Post: "hello"})
	assert.True(t, redis.IsCacheUnavailable(err))
	assert.Empty(t, e.rec.jobs())
	assert.Empty(t, e.rec.emitted())
}

func TestReadsFallBackToStore(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	user, err := e.svc.GetUser(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, user)

	post, err := e.svc.GetPost(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, post)

	stored := &model.User{ID: "u9", UID: "9", Username: "stored", Blocked: []string{}, BlockedBy: []string{}}
	_, err = e.store.CreateUser(ctx, stored)
	require.NoError(t, err)

	user, err = e.svc.GetUser(ctx, "u9")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "stored", user.Username)

	cached, err := e.caches.Users.GetUser(ctx, "u9")
	require.NoError(t, err)
	assert.Nil(t, cached, "a miss must not repopulate the cache")
}

func TestPostLifecycle(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	author := e.signUp(t, "manny")
	other := e.signUp(t, "danny")
	e.rec.reset()

	post, err := e.svc.CreatePost(ctx, author, service.PostInput{Post: "hello", ImgID: "img1", ImgVersion: "1"})
	require.NoError(t, err)
	assert.Equal(t, []queue.Name{queue.JobAddPost, queue.JobAddImage}, e.rec.jobs())
	assert.Equal(t, []string{bus.EventAddPost}, e.rec.emitted())

	page, err := e.svc.GetPosts(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, page.Posts, 1)
	assert.Equal(t, int64(1), page.Total)

	withImages, err := e.svc.GetPostsWithImages(ctx, 0, 10)
	require.NoError(t, err)
	assert.Len(t, withImages, 1)

	mine, err := e.svc.GetUserPosts(ctx, author.UserID, author.UID)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	profile, err := e.svc.GetUser(ctx, author.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), profile.PostsCount)

	_, err = e.svc.UpdatePost(ctx, other, post.ID, service.PostInput{Post: "hijack"})
	assert.True(t, service.IsForbidden(err))

	updated, err := e.svc.UpdatePost(ctx, author, post.ID, service.PostInput{Post: "edited"})
	require.NoError(t, err)
	assert.Equal(t, "edited", updated.Post)
	update := e.rec.last(queue.JobUpdatePost).(queue.UpdatePost)
	assert.Greater(t, update.Version, post.Version)

	require.NoError(t, e.svc.DeletePost(ctx, author, post.ID))
	gone, err := e.caches.Posts.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
	assert.NotNil(t, e.rec.last(queue.JobDeletePost))

	err = e.svc.DeletePost(ctx, author, post.ID)
	assert.True(t, service.IsNotFound(err))
}

func TestCommentNotifiesAuthor(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	author := e.signUp(t, "manny")
	commenter := e.signUp(t, "danny")
	post, err := e.svc.CreatePost(ctx, author, service.PostInput{Post: "hello"})
	require.NoError(t, err)
	e.rec.reset()

	_, err = e.svc.AddComment(ctx, commenter, "missing", "hi", "")
	assert.True(t, service.IsNotFound(err))

	comment, err := e.svc.AddComment(ctx, commenter, post.ID, "nice", "")
	require.NoError(t, err)
	assert.Equal(t, []queue.Name{queue.JobAddComment, queue.JobAddNotification, queue.JobCommentsEmail}, e.rec.jobs())
	assert.Equal(t, []string{bus.EventAddComment, bus.EventInsertNotification}, e.rec.emitted())

	cached, err := e.svc.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cached.CommentsCount)

	names, err := e.svc.GetCommentNames(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"danny"}, names.Names)

	got, err := e.svc.GetComment(ctx, post.ID, comment.ID)
	require.NoError(t, err)
	assert.Equal(t, "nice", got.Comment)

	t.Run("own comment does not notify", func(t *testing.T) {
		e.rec.reset()
		_, err := e.svc.AddComment(ctx, author, post.ID, "thanks", "")
		require.NoError(t, err)
		assert.Equal(t, []queue.Name{queue.JobAddComment}, e.rec.jobs())
	})

	t.Run("settings disable notifications", func(t *testing.T) {
		_, err := e.svc.UpdateNotificationSettings(ctx, author, model.NotificationSettings{})
		require.NoError(t, err)
		e.rec.reset()
		_, err = e.svc.AddComment(ctx, commenter, post.ID, "again", "")
		require.NoError(t, err)
		assert.Equal(t, []queue.Name{queue.JobAddComment}, e.rec.jobs())
	})
}

func TestReactionChange(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	author := e.signUp(t, "manny")
	fan := e.signUp(t, "danny")
	post, err := e.svc.CreatePost(ctx, author, service.PostInput{Post: "hello"})
	require.NoError(t, err)

	first, err := e.svc.AddReaction(ctx, fan, post.ID, "like", "")
	require.NoError(t, err)
	second, err := e.svc.AddReaction(ctx, fan, post.ID, "love", "")
	require.NoError(t, err)
	assert.Greater(t, second.Version, first.Version)

	job := e.rec.last(queue.JobAddReaction).(queue.AddReaction)
	assert.Equal(t, model.ReactionLike, job.PreviousReaction)
	assert.Equal(t, model.ReactionLove, job.Type)

	reactions, count, err := e.svc.GetReactions(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, model.ReactionLove, reactions[0].Type)

	cached, err := e.svc.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cached.Reactions.Love)
	assert.Equal(t, int64(0), cached.Reactions.Like)

	require.NoError(t, e.svc.RemoveReaction(ctx, fan, post.ID))
	removal := e.rec.last(queue.JobRemoveReaction).(queue.RemoveReaction)
	assert.Equal(t, model.ReactionLove, removal.PreviousReaction)

	mine, err := e.svc.GetReactionByUsername(ctx, post.ID, "danny")
	require.NoError(t, err)
	assert.Nil(t, mine)
}

func TestFollowAndBlock(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	manny := e.signUp(t, "manny")
	danny := e.signUp(t, "danny")

	_, err := e.svc.Follow(ctx, manny, "missing")
	assert.True(t, service.IsNotFound(err))

	data, err := e.svc.Follow(ctx, manny, danny.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), data.FollowersCount)
	assert.NotNil(t, e.rec.last(queue.JobAddFollower))

	_, err = e.svc.Follow(ctx, manny, danny.UserID)
	assert.True(t, service.IsValidation(err))

	following, err := e.svc.GetFollowing(ctx, manny.UserID)
	require.NoError(t, err)
	require.Len(t, following, 1)
	assert.Equal(t, "danny", following[0].Username)

	notes, err := e.svc.GetNotifications(ctx, danny, 0, 10)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, model.NotificationFollow, notes[0].NotificationType)

	require.NoError(t, e.svc.Unfollow(ctx, manny, danny.UserID))
	profile, err := e.svc.GetUser(ctx, manny.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), profile.FollowingCount)

	require.NoError(t, e.svc.Block(ctx, manny, danny.UserID))
	profile, err = e.svc.GetUser(ctx, manny.UserID)
	require.NoError(t, err)
	assert.Equal(t, []string{danny.UserID}, profile.Blocked)
	assert.NotNil(t, e.rec.last(queue.JobAddBlockedUser))

	require.NoError(t, e.svc.Unblock(ctx, manny, danny.UserID))
	profile, err = e.svc.GetUser(ctx, danny.UserID)
	require.NoError(t, err)
	assert.Empty(t, profile.BlockedBy)
	assert.NotNil(t, e.rec.last(queue.JobRemoveBlockedUser))
}

func TestNotificationOwnership(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	manny := e.signUp(t, "manny")
	danny := e.signUp(t, "danny")
	_, err := e.svc.Follow(ctx, manny, danny.UserID)
	require.NoError(t, err)

	notes, err := e.svc.GetNotifications(ctx, danny, 0, 10)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	id := notes[0].ID

	_, err = e.svc.MarkNotificationRead(ctx, manny, id)
	assert.True(t, service.IsForbidden(err))

	n, err := e.svc.MarkNotificationRead(ctx, danny, id)
	require.NoError(t, err)
	assert.True(t, n.Read)
	assert.NotNil(t, e.rec.last(queue.JobUpdateNotification))

	require.NoError(t, e.svc.DeleteNotification(ctx, danny, id))
	notes, err = e.svc.GetNotifications(ctx, danny, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, notes)

	_, err = e.svc.MarkNotificationRead(ctx, danny, id)
	assert.True(t, service.IsNotFound(err))
}

func TestChat(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	manny := e.signUp(t, "manny")
	danny := e.signUp(t, "danny")
	e.rec.reset()

	_, err := e.svc.SendMessage(ctx, manny, service.MessageInput{ReceiverID: "missing", ReceiverUsername: "x", Body: "hi"})
	assert.True(t, service.IsNotFound(err))

	msg, err := e.svc.SendMessage(ctx, manny, service.MessageInput{ReceiverID: danny.UserID, ReceiverUsername: "danny", Body: "hi"})
	require.NoError(t, err)
	assert.Equal(t, []queue.Name{queue.JobAddChatMessage, queue.JobAddNotification, queue.JobDirectMessageEmail}, e.rec.jobs())

	t.Run("open chat suppresses notification", func(t *testing.T) {
		_, err := e.svc.AddChatUsers(ctx, model.ChatUsers{UserOne: danny.UserID, UserTwo: manny.UserID})
		require.NoError(t, err)
		e.rec.reset()
		_, err = e.svc.SendMessage(ctx, manny, service.MessageInput{ReceiverID: danny.UserID, ReceiverUsername: "danny", Body: "again"})
		require.NoError(t, err)
		assert.Equal(t, []queue.Name{queue.JobAddChatMessage}, e.rec.jobs())
		pairs, err := e.svc.RemoveChatUsers(ctx, model.ChatUsers{UserOne: danny.UserID, UserTwo: manny.UserID})
		require.NoError(t, err)
		assert.Empty(t, pairs)
	})

	messages, err := e.svc.GetMessages(ctx, danny, manny.UserID)
	require.NoError(t, err)
	assert.Len(t, messages, 2)

	list, err := e.svc.GetConversationList(ctx, danny)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "again", list[0].Body)

	reacted, err := e.svc.ReactToMessage(ctx, danny, manny.UserID, msg.ID, "love", model.ReactionAdd)
	require.NoError(t, err)
	assert.Equal(t, []model.MessageReaction{{SenderName: "danny", Type: "love"}}, reacted.Reaction)

	deleted, err := e.svc.DeleteMessage(ctx, manny, danny.UserID, msg.ID, model.DeleteForEveryone)
	require.NoError(t, err)
	assert.True(t, deleted.DeleteForEveryone)

	_, err = e.svc.DeleteMessage(ctx, manny, danny.UserID, "missing", model.DeleteForMe)
	assert.True(t, service.IsNotFound(err))

	last, err := e.svc.MarkMessagesRead(ctx, danny, manny.UserID)
	require.NoError(t, err)
	require.NotNil(t, last)
	messages, err = e.svc.GetMessages(ctx, manny, danny.UserID)
	require.NoError(t, err)
	for _, m := range messages {
		assert.True(t, m.IsRead)
	}
	assert.NotNil(t, e.rec.last(queue.JobMarkMessagesRead))
}

func TestProfileUpdates(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	manny := e.signUp(t, "manny")
	e.rec.reset()

	user, err := e.svc.UpdateBasicInfo(ctx, manny, model.BasicInfo{Quote: "carpe diem", Work: "acme"})
	require.NoError(t, err)
	assert.Equal(t, "carpe diem", user.Quote)

	user, err = e.svc.UpdateSocialLinks(ctx, manny, model.SocialLinks{Twitter: "@manny"})
	require.NoError(t, err)
	assert.Equal(t, "@manny", user.Social.Twitter)

	user, err = e.svc.UpdateProfilePicture(ctx, manny, "https://img/p.png", "p1", "1")
	require.NoError(t, err)
	assert.Equal(t, "https://img/p.png", user.ProfilePicture)

	user, err = e.svc.UpdateBackgroundImage(ctx, manny, "bg1", "2")
	require.NoError(t, err)
	assert.Equal(t, "bg1", user.BgImageID)

	assert.Equal(t, []queue.Name{
		queue.JobUpdateBasicInfo, queue.JobUpdateSocialLinks,
		queue.JobAddUserProfileImage, queue.JobUpdateBGImage,
	}, e.rec.jobs())
	assert.Equal(t, []string{bus.EventUpdateUser, bus.EventUpdateUser}, e.rec.emitted())

	_, err = e.svc.UpdateBasicInfo(ctx, model.CurrentUser{UserID: "missing", Username: "ghost"}, model.BasicInfo{})
	assert.True(t, service.IsNotFound(err))

	require.NoError(t, e.svc.PasswordChanged(ctx, manny))
	email := e.rec.last(queue.JobChangePasswordEmail).(queue.ChangePasswordEmail)
	assert.Equal(t, manny.Email, email.ReceiverEmail)
	assert.Contains(t, email.Template, "manny")
}

func TestImages(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	manny := e.signUp(t, "manny")
	danny := e.signUp(t, "danny")
	e.rec.reset()

	image, err := e.svc.AddImage(ctx, manny, "img1", "1")
	require.NoError(t, err)
	assert.Equal(t, "img1", image.ID)

	_, err = e.store.Images.CreateIfAbsent(ctx, &model.Image{ID: "img1", UserID: manny.UserID, ImgID: "img1", ImgVersion: "1"})
	require.NoError(t, err)

	err = e.svc.DeleteImage(ctx, danny, "img1")
	assert.True(t, service.IsForbidden(err))

	require.NoError(t, e.svc.DeleteImage(ctx, manny, "img1"))
	assert.Equal(t, []queue.Name{queue.JobAddImage, queue.JobRemoveImage}, e.rec.jobs())
	assert.Equal(t, []string{bus.EventDeleteImage}, e.rec.emitted())
}

func TestForgotPassword(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	_, err := e.store.Auth.CreateIfAbsent(ctx, &model.Auth{
		ID: "a1", UID: "1", Username: "manny", Email: "manny@example.com", Password: "hash",
	})
	require.NoError(t, err)

	require.NoError(t, e.svc.ForgotPassword(ctx, "nobody@example.com", "https://app/reset/x"))
	assert.Empty(t, e.rec.jobs())

	require.NoError(t, e.svc.ForgotPassword(ctx, "manny@example.com", "https://app/reset/x"))
	email := e.rec.last(queue.JobForgotPasswordEmail).(queue.ForgotPasswordEmail)
	assert.Equal(t, "manny@example.com", email.ReceiverEmail)
	assert.Contains(t, email.Template, "https://app/reset/x")

	err = e.svc.ForgotPassword(ctx, "", "https://app/reset/x")
	assert.True(t, service.IsValidation(err))
}

func TestRefollowWhileStoreLags(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	manny := e.signUp(t, "manny")
	danny := e.signUp(t, "danny")
	for _, id := range []string{manny.UserID, danny.UserID} {
		_, err := e.store.CreateUser(ctx, &model.User{ID: id, UID: id, Username: "user-" + id})
		require.NoError(t, err)
	}

	_, err := e.svc.Follow(ctx, manny, danny.UserID)
	require.NoError(t, err)
	added := e.rec.last(queue.JobAddFollower).(queue.AddFollower)
	_, err = e.store.AddFollower(ctx, added.KeyOne, added.KeyTwo, added.Version)
	require.NoError(t, err)

	require.NoError(t, e.svc.Unfollow(ctx, manny, danny.UserID))
	following, err := e.svc.IsFollowing(ctx, manny.UserID, danny.UserID)
	require.NoError(t, err)
	assert.False(t, following)

	require.NoError(t, e.svc.Unfollow(ctx, manny, danny.UserID))
	profile, err := e.svc.GetUser(ctx, danny.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), profile.FollowersCount)

	_, err = e.svc.Follow(ctx, manny, danny.UserID)
	require.NoError(t, err)
	following, err = e.svc.IsFollowing(ctx, manny.UserID, danny.UserID)
	require.NoError(t, err)
	assert.True(t, following)

	removed := e.rec.last(queue.JobRemoveFollower).(queue.RemoveFollower)
	readded := e.rec.last(queue.JobAddFollower).(queue.AddFollower)
	assert.Greater(t, removed.Version, added.Version)
	assert.Greater(t, readded.Version, removed.Version)
}
