package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shiftguard/internal/model"
	"github.com/roach88/shiftguard/internal/remote/remotetest"
)

func newTestHTTPStore(t *testing.T) (*HTTPStore, *remotetest.PostgREST) {
	t.Helper()
	srv := remotetest.NewPostgREST("anon-key")
	t.Cleanup(srv.Close)
	return NewHTTPStore(srv.URL(), "anon-key", "", "", 5*time.Second), srv
}

func TestHTTPStore_FetchMissing(t *testing.T) {
	s, srv := newTestHTTPStore(t)

	_, found, err := s.Fetch(context.Background())
	require.NoError(t, err)
	assert.False(t, found)

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodGet, reqs[0].Method)
	assert.Equal(t, "/rest/v1/sync", reqs[0].Path)
	assert.Equal(t, "id=eq.global-state", reqs[0].Query)
	assert.Equal(t, "anon-key", reqs[0].APIKey)
	assert.Equal(t, "Bearer anon-key", reqs[0].Auth)
}

func TestHTTPStore_UpdateMissThenCreate(t *testing.T) {
	s, srv := newTestHTTPStore(t)
	ctx := context.Background()
	doc := model.DefaultDocument(1)

	matched, err := s.Update(ctx, doc)
	require.NoError(t, err)
	assert.False(t, matched, "empty representation means no row matched")

	require.NoError(t, s.Create(ctx, doc))

	got, found, err := s.Fetch(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Len(t, got.Workers, 66)
	assert.True(t, model.Equal(doc, got))

	reqs := srv.Requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, http.MethodPatch, reqs[0].Method)
	assert.Equal(t, "return=representation", reqs[0].Prefer)
	assert.Equal(t, http.MethodPost, reqs[1].Method)
	assert.Equal(t, "/rest/v1/sync", reqs[1].Path)

	var body struct {
		ID      string          `json:"id"`
		Payload json.RawMessage `json:"payload"`
	}
	require.NoError(t, json.Unmarshal([]byte(reqs[1].Body), &body))
	assert.Equal(t, "global-state", body.ID)
	assert.NotEmpty(t, body.Payload)
}

func TestHTTPStore_UpdateExisting(t *testing.T) {
	s, srv := newTestHTTPStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, model.DefaultDocument(1)))

	doc := model.DefaultDocument(2)
	doc.BridgeActive = false
	matched, err := s.Update(ctx, doc)
	require.NoError(t, err)
	assert.True(t, matched)

	raw, ok := srv.Get("sync", "global-state")
	require.True(t, ok)
	assert.Contains(t, string(raw), `"bridgeActive":false`)
}

func TestHTTPStore_Update404IsMiss(t *testing.T) {
	s, srv := newTestHTTPStore(t)
	srv.FailNext(http.StatusNotFound)

	matched, err := s.Update(context.Background(), model.DefaultDocument(1))
	require.NoError(t, err)
	assert.False(t, matched)
}

func TestHTTPStore_ServerErrors(t *testing.T) {
	s, srv := newTestHTTPStore(t)
	ctx := context.Background()

	srv.FailNext(http.StatusInternalServerError)
	_, _, err := s.Fetch(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "remote fetch error")

	srv.FailNext(http.StatusServiceUnavailable)
	_, err = s.Update(ctx, model.DefaultDocument(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "remote update error")

	srv.FailNext(http.StatusBadGateway)
	err = s.Create(ctx, model.DefaultDocument(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "remote create error")
}

func TestHTTPStore_WrongKeyRejected(t *testing.T) {
	srv := remotetest.NewPostgREST("right")
	defer srv.Close()
	s := NewHTTPStore(srv.URL(), "wrong", "", "", time.Second)

	_, _, err := s.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestHTTPStore_NetworkFailure(t *testing.T) {
	srv := remotetest.NewPostgREST("k")
	url := srv.URL()
	srv.Close()

	s := NewHTTPStore(url, "k", "", "", time.Second)
	_, _, err := s.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "remote fetch failed")
}

func TestHTTPStore_FetchAppliesDefaults(t *testing.T) {
	s, srv := newTestHTTPStore(t)
	srv.Put("sync", "global-state", []byte(`{"logs":[],"bridgeActive":false}`))

	doc, found, err := s.Fetch(context.Background())
	require.NoError(t, err)
	require.True(t, found)
	assert.Len(t, doc.Workers, 66, "missing workers fall back to the default roster")
	assert.False(t, doc.BridgeActive)
}

func TestHTTPStore_NullPayloadIsMissing(t *testing.T) {
	s, srv := newTestHTTPStore(t)
	srv.Put("sync", "global-state", []byte(`null`))

	_, found, err := s.Fetch(context.Background())
	require.NoError(t, err)
	assert.False(t, found)
}
