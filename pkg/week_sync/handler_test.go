package week_sync

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/baptistelechat/overti-me/internal/test_utils"
	"github.com/baptistelechat/overti-me/pkg/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type tokenIssuerStub struct{}

func (tokenIssuerStub) Issue(u user.User) (string, time.Time, error) {
	return "token-" + u.Uid, t0.Add(time.Hour), nil
}

func setupHandler(t *testing.T) (*Handler, engineFixture, user.User) {
	t.Helper()
	f := setupEngine(t, manualConfig())
	users := user.NewUserService(user.NewStubUserRepository()).WithHashCost(bcrypt.MinCost)
	account, err := users.Signup(ctx, "jane@example.com", "correct horse")
	require.NoError(t, err)
	return NewHandler(f.engine, users, tokenIssuerStub{}), f, account
}

func TestHandler_Login(t *testing.T) {
	t.Run("should start a session and return a token", func(t *testing.T) {
		// given
		handler, f, account := setupHandler(t)
		req := httptest.NewRequest("POST", "/api/session", strings.NewReader(`{"email":"jane@example.com","password":"correct horse"}`))
		rr := httptest.NewRecorder()

		// when
		handler.Login(rr, req)

		// then
		assert.Equal(t, http.StatusOK, rr.Code)
		var dto SessionDTO
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &dto))
		assert.Equal(t, "token-"+account.Uid, dto.Token)
		assert.Equal(t, StatusSynced, dto.Status.SyncStatus)
		require.NotNil(t, dto.Status.User)
		assert.Equal(t, account.Uid, dto.Status.User.Uid)
		assert.True(t, f.engine.HasSession())
	})

	t.Run("should still sign in when the first sync fails", func(t *testing.T) {
		handler, f, _ := setupHandler(t)
		f.remote.SetError(assert.AnError)
		req := httptest.NewRequest("POST", "/api/session", strings.NewReader(`{"email":"jane@example.com","password":"correct horse"}`))
		rr := httptest.NewRecorder()

		handler.Login(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		var dto SessionDTO
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &dto))
		assert.Equal(t, StatusError, dto.Status.SyncStatus)
		assert.NotEmpty(t, dto.Status.SyncError)
	})

	t.Run("should reject wrong credentials", func(t *testing.T) {
		handler, f, _ := setupHandler(t)
		req := httptest.NewRequest("POST", "/api/session", strings.NewReader(`{"email":"jane@example.com","password":"wrong password"}`))
		rr := httptest.NewRecorder()

		handler.Login(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.False(t, f.engine.HasSession())
	})
}

func TestHandler_Sync(t *testing.T) {
	t.Run("should sync for the session owner", func(t *testing.T) {
		// given
		handler, f, account := setupHandler(t)
		require.NoError(t, f.engine.StartSession(ctx, account))
		req := httptest.NewRequest("POST", "/api/sync", nil).WithContext(user.WithUser(ctx, account))
		rr := httptest.NewRecorder()

		// when
		handler.Sync(rr, req)

		// then
		assert.Equal(t, http.StatusOK, rr.Code)
		var dto StatusDTO
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &dto))
		assert.Equal(t, StatusSynced, dto.SyncStatus)
	})

	t.Run("should forbid another account", func(t *testing.T) {
		handler, f, account := setupHandler(t)
		require.NoError(t, f.engine.StartSession(ctx, account))
		req := httptest.NewRequest("POST", "/api/sync", nil).WithContext(test_utils.ContextWithTestUser())
		rr := httptest.NewRecorder()

		handler.Sync(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("should answer 409 without a session", func(t *testing.T) {
		handler, _, account := setupHandler(t)
		req := httptest.NewRequest("POST", "/api/sync", nil).WithContext(user.WithUser(ctx, account))
		rr := httptest.NewRecorder()

		handler.Sync(rr, req)

		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("should answer 502 with the status on remote failure", func(t *testing.T) {
		handler, f, account := setupHandler(t)
		require.NoError(t, f.engine.StartSession(ctx, account))
		f.remote.SetError(assert.AnError)
		req := httptest.NewRequest("POST", "/api/sync", nil).WithContext(user.WithUser(ctx, account))
		rr := httptest.NewRecorder()

		handler.Sync(rr, req)

		assert.Equal(t, http.StatusBadGateway, rr.Code)
		var dto StatusDTO
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &dto))
		assert.Equal(t, StatusError, dto.SyncStatus)
	})
}

func TestHandler_LogoutAndStatus(t *testing.T) {
	t.Run("should end the session", func(t *testing.T) {
		// given
		handler, f, account := setupHandler(t)
		require.NoError(t, f.engine.StartSession(ctx, account))

		// when
		rr := httptest.NewRecorder()
		handler.Logout(rr, httptest.NewRequest("DELETE", "/api/session", nil))

		// then
		assert.Equal(t, http.StatusNoContent, rr.Code)
		status := httptest.NewRecorder()
		handler.GetStatus(status, httptest.NewRequest("GET", "/api/sync/status", nil))
		var dto StatusDTO
		require.NoError(t, json.Unmarshal(status.Body.Bytes(), &dto))
		assert.Nil(t, dto.User)
		assert.Equal(t, StatusNotSynced, dto.SyncStatus)
		assert.Equal(t, PolicySession, dto.MergePolicy)
	})
}
