package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, srv.Client())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestLogin(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/auth/login", r.URL.Path)

		var req loginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Email != "user@example.com" || req.Password != "secret" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "bad credentials"})
			return
		}
		writeJSON(w, http.StatusOK, TokenPair{Access: "acc-1", Refresh: "ref-1"})
	}))

	pair, err := client.Login(context.Background(), "user@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, TokenPair{Access: "acc-1", Refresh: "ref-1"}, pair)

	_, err = client.Login(context.Background(), "user@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterStatuses(t *testing.T) {
	var status int
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/register", r.URL.Path)
		writeJSON(w, status, map[string]string{"message": "x"})
	}))

	status = http.StatusCreated
	assert.NoError(t, client.Register(context.Background(), "Ann", "a@b.c", "pw"))

	status = http.StatusConflict
	assert.ErrorIs(t, client.Register(context.Background(), "Ann", "a@b.c", "pw"), ErrEmailTaken)

	status = http.StatusNotFound
	assert.ErrorIs(t, client.Register(context.Background(), "Ann", "a@b.c", "pw"), ErrRegisterPayload)

	status = http.StatusInternalServerError
	err := client.Register(context.Background(), "Ann", "a@b.c", "pw")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.Status)
}

func TestExpensesAssignsDisplayIndexes(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer acc", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, []Expense{
			{ID: 42, Amount: 120.5, Description: "кофе", Date: "2026-08-01", CategoryID: 3},
			{ID: 17, Amount: 990, Description: "продукты", Date: "2026-08-02", CategoryID: 1},
		})
	}))

	expenses, tokens, err := client.Expenses(context.Background(), TokenPair{Access: "acc", Refresh: "ref"})
	require.NoError(t, err)
	assert.Equal(t, "acc", tokens.Access)
	require.Len(t, expenses, 2)
	assert.Equal(t, 1, expenses[0].Index)
	assert.Equal(t, 2, expenses[1].Index)
	assert.Equal(t, int64(42), expenses[0].ID)
}

func TestDoAuthRefreshesOnce(t *testing.T) {
	var refreshCalls, listCalls int
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/refresh":
			refreshCalls++
			var req refreshRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Equal(t, "ref-old", req.RefreshToken)
			writeJSON(w, http.StatusOK, TokenPair{Access: "acc-new", Refresh: "ref-new"})
		case "/expenses":
			listCalls++
			if r.Header.Get("Authorization") != "Bearer acc-new" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			writeJSON(w, http.StatusOK, []Expense{})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))

	_, tokens, err := client.Expenses(context.Background(), TokenPair{Access: "acc-old", Refresh: "ref-old"})
	require.NoError(t, err)
	assert.Equal(t, TokenPair{Access: "acc-new", Refresh: "ref-new"}, tokens)
	assert.Equal(t, 1, refreshCalls)
	assert.Equal(t, 2, listCalls)
}

func TestDoAuthSessionExpired(t *testing.T) {
	t.Run("no refresh token", func(t *testing.T) {
		var refreshCalls int
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/auth/refresh" {
				refreshCalls++
			}
			w.WriteHeader(http.StatusUnauthorized)
		}))

		_, _, err := client.Expenses(context.Background(), TokenPair{Access: "acc"})
		assert.ErrorIs(t, err, ErrSessionExpired)
		assert.Zero(t, refreshCalls, "refresh must not be attempted without a refresh token")
	})

	t.Run("refresh rejected", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))

		_, _, err := client.Expenses(context.Background(), TokenPair{Access: "acc", Refresh: "ref"})
		assert.ErrorIs(t, err, ErrSessionExpired)
	})

	t.Run("second 401 after refresh", func(t *testing.T) {
		var listCalls int
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/auth/refresh" {
				writeJSON(w, http.StatusOK, TokenPair{Access: "acc-new", Refresh: "ref-new"})
				return
			}
			listCalls++
			w.WriteHeader(http.StatusUnauthorized)
		}))

		_, _, err := client.Expenses(context.Background(), TokenPair{Access: "acc", Refresh: "ref"})
		assert.ErrorIs(t, err, ErrSessionExpired)
		assert.Equal(t, 2, listCalls, "request is retried exactly once")
	})
}

func TestDoAuthStatusError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "amount must be positive"})
	}))

	_, err := client.CreateExpense(context.Background(), TokenPair{Access: "acc", Refresh: "ref"}, Expense{Amount: -1})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.Status)
	assert.Equal(t, "amount must be positive", se.Message)
}
