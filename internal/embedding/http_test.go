package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewHTTPProvider(t *testing.T) {
	p := NewHTTPProvider(HTTPConfig{BaseURL: "http://localhost:8081/", APIKey: "test-key", Model: "test-model", Dimension: 4})
	if p == nil {
		t.Fatal("NewHTTPProvider() returned nil")
	}
	if p.baseURL != "http://localhost:8081" {
		t.Errorf("NewHTTPProvider() baseURL = %v, want http://localhost:8081", p.baseURL)
	}
	if p.Dimension() != 4 {
		t.Errorf("NewHTTPProvider() Dimension() = %v, want 4", p.Dimension())
	}
}

func TestHTTPProvider_EmbedDocuments(t *testing.T) {
	tests := []struct {
		name       string
		texts      []string
		dimension  int
		serverResp func(w http.ResponseWriter, r *http.Request)
		wantErr    bool
		wantCount  int
	}{
		{
			name:      "successful embedding",
			texts:     []string{"Hello", "World"},
			dimension: 4,
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("expected POST, got %s", r.Method)
				}
				if r.URL.Path != "/v1/embeddings" {
					t.Errorf("expected /v1/embeddings, got %s", r.URL.Path)
				}
				if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
					t.Errorf("Authorization = %q, want Bearer test-key", got)
				}
				resp := EmbeddingsResponse{
					Data: []EmbeddingData{
						{Index: 0, Embedding: []float64{1, 0, 0, 0}},
						{Index: 1, Embedding: []float64{0, 1, 0, 0}},
					},
				}
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(resp)
			},
			wantCount: 2,
		},
		{
			name:       "empty input",
			texts:      []string{},
			dimension:  4,
			serverResp: func(w http.ResponseWriter, r *http.Request) {},
			wantErr:    true,
		},
		{
			name:      "wrong embedding count",
			texts:     []string{"Hello", "World"},
			dimension: 4,
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(EmbeddingsResponse{
					Data: []EmbeddingData{{Embedding: make([]float64, 4)}},
				})
			},
			wantErr: true,
		},
		{
			name:      "wrong embedding size",
			texts:     []string{"Hello"},
			dimension: 4,
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(EmbeddingsResponse{
					Data: []EmbeddingData{{Embedding: make([]float64, 3)}},
				})
			},
			wantErr: true,
		},
		{
			name:      "server error",
			texts:     []string{"Hello"},
			dimension: 4,
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte("boom"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(tt.serverResp))
			defer server.Close()

			p := NewHTTPProvider(HTTPConfig{BaseURL: server.URL, APIKey: "test-key", Model: "m", Dimension: tt.dimension})
			got, err := p.EmbedDocuments(context.Background(), tt.texts)
			if (err != nil) != tt.wantErr {
				t.Fatalf("EmbedDocuments() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && len(got) != tt.wantCount {
				t.Errorf("EmbedDocuments() returned %d vectors, want %d", len(got), tt.wantCount)
			}
		})
	}
}

func TestHTTPProvider_ResponseOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(EmbeddingsResponse{
			Data: []EmbeddingData{
				{Index: 1, Embedding: []float64{0, 1}},
				{Index: 0, Embedding: []float64{1, 0}},
			},
		})
	}))
	defer server.Close()

	p := NewHTTPProvider(HTTPConfig{BaseURL: server.URL, Dimension: 2})
	got, err := p.EmbedDocuments(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("EmbedDocuments() error = %v", err)
	}
	if got[0][0] != 1 || got[1][1] != 1 {
		t.Errorf("EmbedDocuments() = %v, want vectors ordered by index", got)
	}
}

func TestHTTPLoader_AutoLoad(t *testing.T) {
	var loads atomic.Int32
	var polls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/models", func(w http.ResponseWriter, r *http.Request) {
		inCache := polls.Add(1) > 2
		_ = json.NewEncoder(w).Encode(ModelsResponse{Data: []ModelStatus{{ID: "m", InCache: inCache}}})
	})
	mux.HandleFunc("/models/load", func(w http.ResponseWriter, r *http.Request) {
		loads.Add(1)
		_ = json.NewEncoder(w).Encode(LoadModelResponse{Success: true})
	})
	mux.HandleFunc("/v1/embeddings", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(EmbeddingsResponse{Data: []EmbeddingData{{Embedding: []float64{1, 0}}}})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	loader := NewModelLoader(server.URL, nil)
	loader.interval = time.Millisecond
	if err := loader.LoadModel(context.Background(), "m", nil); err != nil {
		t.Fatalf("LoadModel() error = %v", err)
	}
	if loads.Load() != 1 {
		t.Errorf("LoadModel() sent %d load requests, want 1", loads.Load())
	}

	p, err := HTTPLoader(HTTPConfig{BaseURL: server.URL, Model: "m", Dimension: 2})(context.Background())
	if err != nil {
		t.Fatalf("HTTPLoader() error = %v", err)
	}
	if p.Dimension() != 2 {
		t.Errorf("Dimension() = %v, want 2", p.Dimension())
	}
}

func TestModelLoader_Failed(t *testing.T) {
	failed := true
	code := 3
	mux := http.NewServeMux()
	mux.HandleFunc("/models", func(w http.ResponseWriter, r *http.Request) {
		status := ModelStatus{ID: "m"}
		status.Status.Failed = &failed
		status.Status.ExitCode = &code
		_ = json.NewEncoder(w).Encode(ModelsResponse{Data: []ModelStatus{status}})
	})
	mux.HandleFunc("/models/load", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(LoadModelResponse{Success: true})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	loader := NewModelLoader(server.URL, nil)
	loader.interval = time.Millisecond
	if err := loader.LoadModel(context.Background(), "m", nil); err == nil {
		t.Fatal("LoadModel() expected error for failed model")
	}
}
