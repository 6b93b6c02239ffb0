package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req embedReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		json.NewEncoder(w).Encode(embedResp{Embedding: []float64{float64(len(req.Prompt)), 1}})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEmbed(t *testing.T) {
	c := NewEmbedClient(newServer(t, http.StatusOK).URL, "")
	vec, err := c.Embed(context.Background(), "abc")
	if err != nil {
		t.Fatal(err)
	}
	if len(vec) != 2 || vec[0] != 3 {
		t.Errorf("unexpected vector %v", vec)
	}
}

func TestEmbedBatchOrder(t *testing.T) {
	c := NewEmbedClient(newServer(t, http.StatusOK).URL, "m")
	vecs, err := c.EmbedBatch(context.Background(), []string{"a", "abcd", "ab"})
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range []float32{1, 4, 2} {
		if vecs[i][0] != want {
			t.Errorf("vecs[%d][0] = %v, want %v", i, vecs[i][0], want)
		}
	}
}

func TestEmbedStatusError(t *testing.T) {
	c := NewEmbedClient(newServer(t, http.StatusInternalServerError).URL, "m")
	if _, err := c.Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected error on 500")
	}
}
