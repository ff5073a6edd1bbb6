package ner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCandidatesFiltersPersonLabels(t *testing.T) {
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"entities":[
			{"span":"João Silva","label":"PER","confidence":0.91},
			{"span":"Maria Souza","label":"PERSON","confidence":0.84},
			{"span":"Recife","label":"LOC","confidence":0.99},
			{"span":"Governo do Estado","label":"ORG","confidence":0.80}
		]}`))
	}))
	defer server.Close()

	client := New(server.URL, time.Second)
	candidates, err := client.Candidates(context.Background(), "texto da matéria")
	require.NoError(t, err)
	require.Equal(t, "texto da matéria", gotBody["text"])

	require.Len(t, candidates, 2)
	require.Equal(t, "João Silva", candidates[0].Span)
	require.InDelta(t, 0.91, candidates[0].Confidence, 1e-9)
	require.Equal(t, "Maria Souza", candidates[1].Span)
}

func TestCandidatesEmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"entities":[]}`))
	}))
	defer server.Close()

	candidates, err := New(server.URL, time.Second).Candidates(context.Background(), "texto")
	require.NoError(t, err)
	require.Empty(t, candidates)
}

func TestCandidatesNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := New(server.URL, time.Second).Candidates(context.Background(), "texto")
	require.Error(t, err)
	require.Contains(t, err.Error(), "503")
	require.Contains(t, err.Error(), "model loading")
}

func TestCandidatesMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"entities": [{}`))
	}))
	defer server.Close()

	_, err := New(server.URL, time.Second).Candidates(context.Background(), "texto")
	require.Error(t, err)
}

func TestCandidatesUnreachableService(t *testing.T) {
	_, err := New("http://127.0.0.1:1", 200*time.Millisecond).Candidates(context.Background(), "texto")
	require.Error(t, err)
}
