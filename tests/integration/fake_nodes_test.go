package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"wallet-sync-engine/internal/core/domain"
)

// fakeStoreNode is a single in-process store node speaking the store HTTP
// API. Nodes share nothing; each holds its own record set, so tests can
// model replication lag, partial outages, and a node injecting foreign
// records.
type fakeStoreNode struct {
	mu      sync.Mutex
	server  *httptest.Server
	records map[string]domain.RawRecord
	down    bool
	// extra records returned on every query regardless of author filter,
	// modeling a malicious or buggy node.
	injected []domain.RawRecord
}

func newFakeStoreNode(t *testing.T) *fakeStoreNode {
	t.Helper()
	n := &fakeStoreNode{records: make(map[string]domain.RawRecord)}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/query", func(w http.ResponseWriter, r *http.Request) {
		n.mu.Lock()
		defer n.mu.Unlock()
		if n.down {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var req struct {
			Author domain.Identity `json:"author"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var out []domain.RawRecord
		for _, rec := range n.records {
			if rec.Author == req.Author {
				out = append(out, rec)
			}
		}
		out = append(out, n.injected...)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"records": out})
	})
	mux.HandleFunc("/v1/publish", func(w http.ResponseWriter, r *http.Request) {
		n.mu.Lock()
		defer n.mu.Unlock()
		if n.down {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var rec domain.RawRecord
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		n.records[rec.ID] = rec
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("/v1/health", func(w http.ResponseWriter, r *http.Request) {
		n.mu.Lock()
		defer n.mu.Unlock()
		if n.down {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	n.server = httptest.NewServer(mux)
	t.Cleanup(n.server.Close)
	return n
}

func (n *fakeStoreNode) setDown(down bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.down = down
}

func (n *fakeStoreNode) put(rec domain.RawRecord) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.records[rec.ID] = rec
}

func (n *fakeStoreNode) inject(rec domain.RawRecord) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.injected = append(n.injected, rec)
}

func (n *fakeStoreNode) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.records)
}
