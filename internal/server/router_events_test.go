package server

import (
	"bufio"
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type eventStream struct {
	scanner *bufio.Scanner
}

func openEventStream(t *testing.T, srv *testServer, documentID string) *eventStream {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.server.URL+"/documents/"+documentID+"/events", http.NoBody)
	require.NoError(t, err)
	response, err := http.DefaultClient.Do(request)
	require.NoError(t, err)
	t.Cleanup(func() { _ = response.Body.Close() })
	require.Equal(t, http.StatusOK, response.StatusCode)
	assert.Contains(t, response.Header.Get("Content-Type"), "text/event-stream")

	stream := &eventStream{scanner: bufio.NewScanner(response.Body)}
	stream.expect(t, realtimeEventReady)
	return stream
}

// next returns the name of the next event on the stream, or "" at EOF.
func (s *eventStream) next() string {
	for s.scanner.Scan() {
		line := s.scanner.Text()
		if name, ok := strings.CutPrefix(line, "event:"); ok {
			return strings.TrimSpace(name)
		}
	}
	return ""
}

func (s *eventStream) expect(t *testing.T, name string) {
	t.Helper()
	for {
		got := s.next()
		require.NotEmpty(t, got, "stream ended before %q", name)
		if got == name {
			return
		}
	}
}

func TestEventsStreamCommittedChanges(t *testing.T) {
	srv := newTestServer(t)
	document := srv.createDocument(t, "owner-1", "A")
	stream := openEventStream(t, srv, document.ID)
	assert.Equal(t, 1, srv.dispatcher.SubscriberCount(document.ID))

	suggestion := srv.submitSuggestion(t, document.ID, "reader-2", "B")
	stream.expect(t, "suggestion.submitted")

	accepted := srv.do(t, http.MethodPost, "/suggestions/"+suggestion.ID+"/accept", "owner-1", nil)
	require.Equal(t, http.StatusOK, accepted.StatusCode)
	stream.expect(t, "suggestion.accepted")

	deleted := srv.do(t, http.MethodDelete, "/documents/"+document.ID, "owner-1", nil)
	require.Equal(t, http.StatusNoContent, deleted.StatusCode)
	stream.expect(t, "document.deleted")
	assert.Empty(t, stream.next())
}

func TestEventsStreamSendsHeartbeats(t *testing.T) {
	srv := newTestServer(t, func(deps *Dependencies) {
		deps.HeartbeatInterval = 10 * time.Millisecond
	})
	document := srv.createDocument(t, "owner-1", "A")
	stream := openEventStream(t, srv, document.ID)
	stream.expect(t, realtimeEventHeartbeat)
}

func TestEventsForUnknownDocumentIsNotFound(t *testing.T) {
	srv := newTestServer(t)
	response := srv.do(t, http.MethodGet, "/documents/missing/events", "", nil)
	assert.Equal(t, http.StatusNotFound, response.StatusCode)
}
