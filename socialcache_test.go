package socialcache_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammar0144/socialcache"
	"github.com/ammar0144/socialcache/pkg/bus"
	"github.com/ammar0144/socialcache/pkg/config"
	"github.com/ammar0144/socialcache/pkg/db/dbtest"
	"github.com/ammar0144/socialcache/pkg/model"
	"github.com/ammar0144/socialcache/pkg/redis/redistest"
	"github.com/ammar0144/socialcache/pkg/service"
)

func newApp(t *testing.T) (*socialcache.App, *httptest.Server) {
	t.Helper()
	redisManager, _ := redistest.New(t)
	dbManager := dbtest.New(t)

	cfg := config.Default()
	cfg.Queue.PollInterval = 5 * time.Millisecond
	cfg.Queue.PromoteInterval = 10 * time.Millisecond
	cfg.Queue.Backoff = 20 * time.Millisecond

	app, err := socialcache.Assemble(cfg, redisManager, dbManager, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, app.Start(ctx))
	srv := httptest.NewServer(app.Handler())
	t.Cleanup(func() {
		srv.Close()
		cancel()
		_ = app.Close()
	})
	return app, srv
}

func TestHealth(t *testing.T) {
	_, srv := newApp(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status string `json:"status"`
		Pool   *struct {
			Open int `json:"open"`
		} `json:"pool"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.NotNil(t, body.Pool)

	resp, err = http.Get(srv.URL + "/queues/nope/failed")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMutationReachesCacheStoreAndClients(t *testing.T) {
	app, srv := newApp(t)
	ctx := context.Background()
	svc := app.Service()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws?events=add+post", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return app.Bus().Hub().Clients() == 1 }, time.Second, 5*time.Millisecond)

	user, err := svc.SignUp(ctx, service.SignUpInput{
		Username: "manny", Email: "manny@example.com", PasswordHash: "hash", AvatarColor: "red",
	})
	require.NoError(t, err)
	current := model.CurrentUser{UserID: user.ID, Username: user.Username, AvatarColor: user.AvatarColor, Email: user.Email, UID: user.UID}

	post, err := svc.CreatePost(ctx, current, service.PostInput{Post: "hello"})
	require.NoError(t, err)

	// Read-your-writes from the cache before any worker has run.
	cached, err := svc.GetPost(ctx, post.ID)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, "hello", cached.Post)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var env bus.Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, bus.EventAddPost, env.Event)

	store := app.Store()
	require.Eventually(t, func() bool {
		stored, err := store.GetPost(ctx, post.ID)
		return err == nil && stored != nil
	}, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		stored, err := store.GetUser(ctx, user.ID)
		return err == nil && stored != nil
	}, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get(srv.URL + "/queues")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
