package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/ragd/internal/ingest"
	"github.com/fyrsmithlabs/ragd/internal/rag"
)

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL + "/")
	require.NoError(t, err)
	return c
}

func TestNew(t *testing.T) {
	c, err := New("")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000/api/v1/health", c.endpoint("/health", nil))

	_, err = New("ftp://example.com")
	assert.Error(t, err)

	c, err = New("http://example.com", WithTimeout(5*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, c.http.Timeout)
}

func TestClient_Health(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"version":  "1.2.3",
			"services": map[string]string{"vector_store": "healthy"},
		})
	})
	c := newTestClient(t, mux)

	h, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", h.Status)
	assert.Equal(t, "1.2.3", h.Version)
	assert.Equal(t, "healthy", h.Services["vector_store"])
}

func TestClient_Query(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/query", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var req rag.QueryRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		writeJSON(w, http.StatusOK, rag.QueryResponse{
			Query:          req.Query,
			Answer:         "at dawn",
			ProcessingTime: 0.2,
			ModelUsed:      "test-model",
		})
	})
	c := newTestClient(t, mux)

	resp, err := c.Query(context.Background(), rag.QueryRequest{Query: "when?", TopK: 2})
	require.NoError(t, err)
	assert.Equal(t, "when?", resp.Query)
	assert.Equal(t, "at dawn", resp.Answer)
	assert.Equal(t, "test-model", resp.ModelUsed)
}

func TestClient_Errors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/query", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"message": map[string]string{"message": "embedding failed", "state": "EMBEDDING_FAILED"},
		})
	})
	mux.HandleFunc("/api/v1/documents/status/missing", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Document not found"})
	})
	mux.HandleFunc("/api/v1/documents/reset", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, "boom\n")
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	_, err := c.Query(ctx, rag.QueryRequest{Query: "q"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Equal(t, "embedding failed", apiErr.Message)
	assert.Equal(t, "EMBEDDING_FAILED", apiErr.State)
	assert.Contains(t, err.Error(), "EMBEDDING_FAILED")

	_, err = c.Status(ctx, "missing")
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "Document not found")

	_, err = c.Reset(ctx)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "boom", apiErr.Message)
	assert.False(t, IsNotFound(err))
}

func TestClient_Upload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "harbor.txt")
	require.NoError(t, os.WriteFile(path, []byte("boats return at dusk"), 0o600))

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/documents/upload", func(w http.ResponseWriter, r *http.Request) {
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		body, err := io.ReadAll(f)
		require.NoError(t, err)
		assert.Equal(t, "harbor.txt", hdr.Filename)
		assert.Equal(t, "boats return at dusk", string(body))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"document_id": "doc-1",
			"filename":    hdr.Filename,
			"status":      "pending",
			"message":     "Document uploaded successfully. Processing started.",
		})
	})
	c := newTestClient(t, mux)

	resp, err := c.Upload(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "doc-1", resp.DocumentID)
	assert.Equal(t, ingest.StatusPending, resp.Status)

	_, err = c.Upload(context.Background(), filepath.Join(t.TempDir(), "absent.txt"))
	assert.Error(t, err)
}

func TestClient_WaitForStatus(t *testing.T) {
	var polls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/documents/status/doc-1", func(w http.ResponseWriter, r *http.Request) {
		st := ingest.ProcessingStatus{DocumentID: "doc-1", Status: ingest.StatusProcessing, Progress: 50}
		if polls.Add(1) >= 3 {
			st.Status, st.Progress = ingest.StatusCompleted, 100
		}
		writeJSON(w, http.StatusOK, st)
	})
	c := newTestClient(t, mux)

	var seen []ingest.Status
	st, err := c.WaitForStatus(context.Background(), "doc-1", 5*time.Millisecond, func(s *ingest.ProcessingStatus) {
		seen = append(seen, s.Status)
	})
	require.NoError(t, err)
	assert.Equal(t, ingest.StatusCompleted, st.Status)
	assert.Equal(t, []ingest.Status{ingest.StatusProcessing, ingest.StatusProcessing, ingest.StatusCompleted}, seen)
}

func TestClient_WaitForStatus_ContextEnds(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/documents/status/doc-1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, ingest.ProcessingStatus{DocumentID: "doc-1", Status: ingest.StatusPending})
	})
	c := newTestClient(t, mux)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := c.WaitForStatus(ctx, "doc-1", 5*time.Millisecond, nil)
	assert.Error(t, err)
}

func TestClient_DocumentsAndHistory(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/documents/list-unique", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"documents": []map[string]interface{}{{"document_id": "doc-1", "filename": "harbor.txt", "chunk_count": 2}},
			"total":     1,
		})
	})
	mux.HandleFunc("/api/v1/documents/doc-1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		writeJSON(w, http.StatusOK, map[string]string{"message": "Document doc-1 deleted successfully"})
	})
	mux.HandleFunc("/api/v1/query/history", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		writeJSON(w, http.StatusOK, map[string]interface{}{"history": []interface{}{}, "total": 0})
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	docs, err := c.Documents(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, docs.Total)
	assert.Equal(t, "harbor.txt", docs.Documents[0].Filename)

	msg, err := c.Delete(ctx, "doc-1")
	require.NoError(t, err)
	assert.Contains(t, msg.Message, "deleted")

	hist, err := c.History(ctx, 5)
	require.NoError(t, err)
	assert.Zero(t, hist.Total)
}
