package dispatcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/vogiaan1904/rediclaim/internal/errors"
	"github.com/vogiaan1904/rediclaim/internal/models"
	pkgLog "github.com/vogiaan1904/rediclaim/pkg/logger"
)

func TestHTTPDispatcher_PushesBatch(t *testing.T) {
	var received IssueRequestBatch
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/gate/issue-requests", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewHTTPDispatcher(srv.URL, pkgLog.InitializeTestZapLogger())

	entries := []models.DispatchEntry{
		{UserID: "alice", Ticket: 1},
		{UserID: "bob", Ticket: 2},
	}
	require.NoError(t, d.DispatchBatch(context.Background(), "event-1", entries))

	assert.Equal(t, "event-1", received.EventID)
	assert.Equal(t, entries, received.Entries)
}

func TestHTTPDispatcher_RejectedBatchIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := NewHTTPDispatcher(srv.URL, pkgLog.InitializeTestZapLogger())

	err := d.DispatchBatch(context.Background(), "event-1", []models.DispatchEntry{{UserID: "alice", Ticket: 1}})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrDispatcherUnreachable)
}

func TestHTTPDispatcher_UnreachableIssuer(t *testing.T) {
	d := NewHTTPDispatcher("http://127.0.0.1:1", pkgLog.InitializeTestZapLogger())

	err := d.DispatchBatch(context.Background(), "event-1", []models.DispatchEntry{{UserID: "alice", Ticket: 1}})
	assert.ErrorIs(t, err, apperrors.ErrDispatcherUnreachable)
}
