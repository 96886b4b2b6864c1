package threadclient

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/genie-chat/internal/auth"
	"github.com/suPer8Hu/genie-chat/internal/config"
	"github.com/suPer8Hu/genie-chat/internal/db"
	"github.com/suPer8Hu/genie-chat/internal/httpapi"
	"go.uber.org/zap"
)

func newAPIServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("sqlite:file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gdb, err := db.Open(dsn)
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.Migrate(gdb))

	cfg := config.Config{
		JWTSecret:       "client-test",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
		LoginRatePerMin: 1000,
		AIProvider:      "canned",
	}
	srv := httptest.NewServer(httpapi.NewRouter(gdb, cfg, auth.NewMemoryRefreshStore(), nil, zap.NewNop()))
	t.Cleanup(func() {
		srv.Close()
		_ = sqlDB.Close()
	})
	return srv
}

func TestClient_ThreadLifecycle(t *testing.T) {
	srv := newAPIServer(t)
	c := New(srv.URL)
	ctx := context.Background()

	sess, err := c.Register(ctx, "life@example.com", "secret123")
	require.NoError(t, err)
	require.NotEmpty(t, sess.AccessToken)
	tok := sess.AccessToken

	list, err := c.List(ctx, tok, sess.User.ID)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	th, err := c.Create(ctx, tok, "Trip planning")
	require.NoError(t, err)
	assert.Equal(t, "Trip planning", th.Title)
	assert.Equal(t, sess.User.ID, th.UserID)

	got, err := c.Get(ctx, tok, th.ID)
	require.NoError(t, err)
	assert.Equal(t, th.ID, got.ID)

	found, err := c.Search(ctx, tok, "trip")
	require.NoError(t, err)
	require.Len(t, found, 1)

	_, err = c.PostMessage(ctx, tok, th.ID, "user", "hello")
	require.NoError(t, err)
	msgs, err := c.ListMessages(ctx, tok, th.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Content)

	reply, err := c.Ask(ctx, tok, "hello", "")
	require.NoError(t, err)
	assert.True(t, reply.Done)
	assert.NotEmpty(t, reply.Response)

	require.NoError(t, c.Delete(ctx, tok, th.ID))
	err = c.Delete(ctx, tok, th.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClient_ErrorTaxonomy(t *testing.T) {
	srv := newAPIServer(t)
	c := New(srv.URL)
	ctx := context.Background()

	_, err := c.List(ctx, "", "u")
	assert.ErrorIs(t, err, ErrAuth, "missing token fails locally")

	_, err = c.List(ctx, "garbage", "u")
	assert.ErrorIs(t, err, ErrAuth)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 40101, apiErr.Code)

	_, err = c.Create(ctx, "any", "   ")
	assert.ErrorIs(t, err, ErrValidation)

	sess, err := c.Register(ctx, "tax@example.com", "secret123")
	require.NoError(t, err)
	_, err = c.Get(ctx, sess.AccessToken, "01HNOTATHREAD0000000000000")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.Login(ctx, "tax@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrAuth)
}

func TestClient_NetworkAndStoreErrors(t *testing.T) {
	ctx := context.Background()

	down := httptest.NewServer(http.NotFoundHandler())
	url := down.URL
	down.Close()
	_, err := New(url).List(ctx, "tok", "u")
	assert.ErrorIs(t, err, ErrNetwork)

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"code":50001,"error":"failed to create chat thread"}`))
			return
		}
		_, _ = w.Write([]byte(`{"threads":`))
	}))
	defer broken.Close()

	_, err = New(broken.URL).List(ctx, "tok", "u")
	assert.ErrorIs(t, err, ErrStore)

	_, err = New(broken.URL).Create(ctx, "tok", "x")
	assert.ErrorIs(t, err, ErrStore)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "failed to create chat thread", apiErr.Message)
}

func TestSessionTokens_Refresh(t *testing.T) {
	srv := newAPIServer(t)
	c := New(srv.URL)
	ctx := context.Background()

	sess, err := c.Register(ctx, "rot@example.com", "secret123")
	require.NoError(t, err)

	var persisted []Session
	ts := NewSessionTokens(c, sess)
	ts.Persist = func(s Session) error {
		persisted = append(persisted, s)
		return nil
	}

	tok, err := ts.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, sess.AccessToken, tok)

	_, err = ts.Refresh(ctx)
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.NotEqual(t, sess.RefreshToken, persisted[0].RefreshToken)
	assert.Equal(t, sess.User.ID, ts.Session().User.ID)

	// the rotated-out refresh token is dead
	stale := NewSessionTokens(c, sess)
	_, err = stale.Refresh(ctx)
	assert.ErrorIs(t, err, ErrAuth)
	_, err = stale.Token(ctx)
	assert.ErrorIs(t, err, ErrAuth)
}
