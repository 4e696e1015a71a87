package worker_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammar0144/socialcache/pkg/cache"
	"github.com/ammar0144/socialcache/pkg/db/dbtest"
	"github.com/ammar0144/socialcache/pkg/model"
	"github.com/ammar0144/socialcache/pkg/queue"
	"github.com/ammar0144/socialcache/pkg/redis"
	"github.com/ammar0144/socialcache/pkg/redis/redistest"
	"github.com/ammar0144/socialcache/pkg/repository"
	"github.com/ammar0144/socialcache/pkg/worker"
)

const (
	waitFor = 5 * time.Second
	tick    = 10 * time.Millisecond
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []queue.EmailContent
}

func (m *fakeMailer) Send(_ context.Context, email queue.EmailContent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, email)
	return nil
}

func (m *fakeMailer) Sent() []queue.EmailContent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]queue.EmailContent(nil), m.sent...)
}

type env struct {
	manager  *redis.Manager
	registry *queue.Registry
	store    *repository.Store
	mailer   *fakeMailer
}

func newEnv(t *testing.T) *env {
	t.Helper()
	manager, _ := redistest.New(t)

	cfg := queue.DefaultConfig()
	cfg.Attempts = 2
	cfg.Backoff = 20 * time.Millisecond
	cfg.PollInterval = 5 * time.Millisecond
	cfg.PromoteInterval = 10 * time.Millisecond
	reg, err := queue.NewRegistry(manager, cfg, zerolog.Nop())
	require.NoError(t, err)

	store := repository.NewStore(dbtest.New(t), zerolog.Nop())
	mailer := &fakeMailer{}
	worker.New(store, mailer, zerolog.Nop()).Register(reg)

	ctx, cancel := context.WithCancel(context.Background())
	reg.Start(ctx)
	t.Cleanup(func() {
		cancel()
		reg.Close()
	})
	return &env{manager: manager, registry: reg, store: store, mailer: mailer}
}

func (e *env) enqueue(t *testing.T, payload queue.Payload) {
	t.Helper()
	res := e.registry.Enqueue(context.Background(), payload)
	select {
	case <-res.Done():
	case <-time.After(waitFor):
		t.Fatal("enqueue did not finish")
	}
	require.NoError(t, res.Err())
}

// drained waits until domain has completed n jobs and holds no pending ones.
func (e *env) drained(t *testing.T, domain queue.Domain, n uint64) {
	t.Helper()
	q := e.registry.Queue(domain)
	require.Eventually(t, func() bool {
		c, err := q.Counts(context.Background())
		if err != nil {
			return false
		}
		return q.Metrics().GetSnapshot().Completed == n && c.Waiting == 0 && c.Active == 0 && c.Delayed == 0
	}, waitFor, tick)
}

func seedUser(t *testing.T, s *repository.Store, id string) {
	t.Helper()
	_, err := s.CreateUser(context.Background(), &model.User{ID: id, UID: id, Username: "user-" + id, CreatedAt: time.Now().UTC()})
	require.NoError(t, err)
}

func TestAddFollowerPersistsOnce(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	seedUser(t, e.store, "u1")
	seedUser(t, e.store, "u2")

	users := cache.NewUserCache(e.manager, zerolog.Nop())
	followers := cache.NewFollowerCache(e.manager, users, zerolog.Nop())
	require.NoError(t, followers.AddFollower(ctx, "u1", "u2"))

	job := queue.AddFollower{KeyOne: "u1", KeyTwo: "u2", Username: "user-u1", Version: 1}
	e.enqueue(t, job)
	e.enqueue(t, job)
	e.drained(t, queue.DomainFollower, 2)

	following, err := e.store.IsFollowing(ctx, "u1", "u2")
	require.NoError(t, err)
	assert.True(t, following)

	list, err := e.store.GetFollowing(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "u2", list[0].ID)

	u1, err := e.store.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), u1.FollowingCount)
	u2, err := e.store.GetUser(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), u2.FollowersCount)

	cached, err := followers.IsFollowing(ctx, "u1", "u2")
	require.NoError(t, err)
	assert.True(t, cached)
}

func TestReactionChangeBeforeProcessing(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	seedUser(t, e.store, "u1")
	_, err := e.store.CreatePost(ctx, &model.Post{ID: "p1", UserID: "u1", CreatedAt: time.Now().UTC()})
	require.NoError(t, err)

	like := queue.AddReaction{PostID: "p1", UserTo: "u1", UserFrom: "u2", Username: "bob", Type: model.ReactionLike, Version: 1}
	love := queue.AddReaction{PostID: "p1", UserTo: "u1", UserFrom: "u2", Username: "bob", Type: model.ReactionLove, PreviousReaction: model.ReactionLike, Version: 2}

	// Arrival order is inverted and the newer job is redelivered.
	e.enqueue(t, love)
	e.enqueue(t, like)
	e.enqueue(t, love)
	e.drained(t, queue.DomainReaction, 3)

	post, err := e.store.GetPost(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), post.Reactions.Get(model.ReactionLove))
	assert.Equal(t, int64(0), post.Reactions.Get(model.ReactionLike))
	assert.Equal(t, int64(1), post.Reactions.Total())

	reaction, err := e.store.GetReactionByUsername(ctx, "p1", "bob")
	require.NoError(t, err)
	require.NotNil(t, reaction)
	assert.Equal(t, model.ReactionLove, reaction.Type)

	t.Run("removal", func(t *testing.T) {
		e.enqueue(t, queue.RemoveReaction{PostID: "p1", Username: "bob", PreviousReaction: model.ReactionLove, Version: 3})
		e.drained(t, queue.DomainReaction, 4)

		post, err := e.store.GetPost(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, int64(0), post.Reactions.Total())
	})
}

func TestStaleProfileUpdateIsSettled(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	seedUser(t, e.store, "u1")

	e.enqueue(t, queue.UpdateBasicInfo{Key: "u1", Value: model.BasicInfo{Quote: "new"}, Version: 5})
	e.drained(t, queue.DomainUser, 1)
	e.enqueue(t, queue.UpdateBasicInfo{Key: "u1", Value: model.BasicInfo{Quote: "old"}, Version: 4})
	e.drained(t, queue.DomainUser, 2)

	user, err := e.store.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "new", user.Quote)

	counts, err := e.registry.Queue(queue.DomainUser).Counts(ctx)
	require.NoError(t, err)
	assert.Zero(t, counts.Failed)
}

func TestCommentOnMissingPostIsRetainedAsFailed(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.enqueue(t, queue.AddComment{
		PostID:   "missing",
		Username: "bob",
		Comment:  model.Comment{ID: "c1", Comment: "hi", CreatedAt: time.Now().UTC()},
	})

	q := e.registry.Queue(queue.DomainComment)
	require.Eventually(t, func() bool {
		c, err := q.Counts(ctx)
		return err == nil && c.Failed == 1
	}, waitFor, tick)

	failed, err := q.Failed(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, 2, failed[0].AttemptsMade)

	comments, err := e.store.GetComments(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, comments)
}

func TestCommentIsIdempotent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	seedUser(t, e.store, "u1")
	_, err := e.store.CreatePost(ctx, &model.Post{ID: "p1", UserID: "u1", CreatedAt: time.Now().UTC()})
	require.NoError(t, err)

	job := queue.AddComment{
		PostID:   "p1",
		UserTo:   "u1",
		Username: "bob",
		Comment:  model.Comment{ID: "c1", Comment: "hi", CreatedAt: time.Now().UTC()},
	}
	e.enqueue(t, job)
	e.enqueue(t, job)
	e.drained(t, queue.DomainComment, 2)

	comments, err := e.store.GetComments(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "bob", comments[0].Username)

	post, err := e.store.GetPost(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), post.CommentsCount)
}

func TestChatJobs(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	msg := model.Message{
		ID:             "m1",
		ConversationID: model.ConversationID("u1", "u2"),
		SenderID:       "u1",
		ReceiverID:     "u2",
		Body:           "hello",
		CreatedAt:      time.Now().UTC(),
	}
	e.enqueue(t, queue.AddChatMessage{Value: msg})
	e.drained(t, queue.DomainChat, 1)

	e.enqueue(t, queue.UpdateMessageReaction{MessageID: "m1", SenderName: "bob", Reaction: "love", Type: model.ReactionAdd})
	e.enqueue(t, queue.MarkMessagesRead{SenderID: "u1", ReceiverID: "u2"})
	e.drained(t, queue.DomainChat, 3)
	e.enqueue(t, queue.MarkMessageDeleted{MessageID: "m1", Type: model.DeleteForEveryone})
	e.drained(t, queue.DomainChat, 4)

	messages, err := e.store.GetChatMessages(ctx, msg.ConversationID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.True(t, messages[0].IsRead)
	assert.True(t, messages[0].DeleteForEveryone)
	assert.Equal(t, []model.MessageReaction{{SenderName: "bob", Type: "love"}}, messages[0].Reaction)
}

func TestNotificationJobs(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.enqueue(t, queue.AddNotification{Value: model.Notification{
		ID: "n1", UserTo: "u1", UserFrom: "u2", Message: "hi", CreatedAt: time.Now().UTC(),
	}})
	e.drained(t, queue.DomainNotification, 1)
	e.enqueue(t, queue.UpdateNotification{Key: "n1"})
	e.drained(t, queue.DomainNotification, 2)

	list, err := e.store.GetNotifications(ctx, "u1", 0, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Read)

	e.enqueue(t, queue.DeleteNotification{Key: "n1"})
	e.drained(t, queue.DomainNotification, 3)
	list, err = e.store.GetNotifications(ctx, "u1", 0, 10)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestImageJobs(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	seedUser(t, e.store, "u1")

	e.enqueue(t, queue.AddUserProfileImage{Key: "u1", Value: "https://img/u1.png", ImgID: "img1", ImgVersion: "1"})
	e.enqueue(t, queue.UpdateBGImage{Key: "u1", ImgID: "bg1", ImgVersion: "2"})
	e.enqueue(t, queue.AddImage{Key: "u1", ImgID: "img2", ImgVersion: "3"})
	e.drained(t, queue.DomainImage, 3)

	user, err := e.store.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "https://img/u1.png", user.ProfilePicture)
	assert.Equal(t, "bg1", user.BgImageID)

	images, err := e.store.GetImages(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, images, 3)

	e.enqueue(t, queue.RemoveImage{ImageID: "img2"})
	e.drained(t, queue.DomainImage, 4)
	images, err = e.store.GetImages(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, images, 2)
}

func TestEmailJobs(t *testing.T) {
	e := newEnv(t)

	content := queue.EmailContent{ReceiverEmail: "bob@example.com", Subject: "New follower", Template: "<p>hi</p>"}
	e.enqueue(t, queue.FollowersEmail{EmailContent: content})
	e.enqueue(t, queue.ForgotPasswordEmail{EmailContent: content})
	e.drained(t, queue.DomainEmail, 2)

	assert.Equal(t, []queue.EmailContent{content, content}, e.mailer.Sent())
}
