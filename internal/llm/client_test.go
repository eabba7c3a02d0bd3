package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRewriteSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rewrite", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(RewriteResponse{
			SuggestedFront: "What is X?",
			SuggestedBack:  "X is Y.",
			Provider:       "test",
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key")
	resp, err := c.Rewrite(context.Background(), RewriteRequest{Front: "f", Back: "b", RewriteType: "improve"})
	require.NoError(t, err)
	assert.Equal(t, "What is X?", resp.SuggestedFront)
}

func TestRewriteNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("overloaded"))
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key")
	_, err := c.Rewrite(context.Background(), RewriteRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestChatSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/message", r.URL.Path)
		json.NewEncoder(w).Encode(TutorChatResponse{Response: "ok", SessionID: "s1"})
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key")
	resp, err := c.Chat(context.Background(), TutorChatRequest{Message: "hi", AtomID: "a1"})
	require.NoError(t, err)
	assert.Equal(t, "s1", resp.SessionID)
}
