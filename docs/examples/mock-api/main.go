// Mock VoC API
//
// This is a minimal stand-in for the hosted comment API, for trying out
// vocsync locally without a real auth token.
//
// Usage:
//   go run main.go
//
// Then point vocsync at it:
//   export REINFER_API_URL="http://localhost:9000"
//   export REINFER_AUTH_TOKEN="dev-token"
//   export REINFER_DATASET_OWNER="acme"
//   export REINFER_DATASET_NAME="support"

package main

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"sort"
	"strings"
	"sync"
)

// Comment is the wire shape of an uploaded comment.
type Comment struct {
	OriginalText   string         `json:"original_text"`
	Timestamp      string         `json:"timestamp"`
	ID             string         `json:"id"`
	UserProperties map[string]any `json:"user_properties,omitempty"`
}

type syncRequest struct {
	Comments []Comment `json:"comments"`
}

type recentResponse struct {
	Comments []Comment `json:"comments"`
}

// store keeps uploaded comments per dataset, keyed by comment ID so repeated
// uploads overwrite, like the real API.
type store struct {
	mu       sync.Mutex
	datasets map[string]map[string]Comment
}

func newStore() *store {
	return &store{datasets: make(map[string]map[string]Comment)}
}

func (s *store) put(dataset string, comments []Comment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.datasets[dataset] == nil {
		s.datasets[dataset] = make(map[string]Comment)
	}
	for _, c := range comments {
		s.datasets[dataset][c.ID] = c
	}
}

func (s *store) mostRecent(dataset string) (Comment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]Comment, 0, len(s.datasets[dataset]))
	for _, c := range s.datasets[dataset] {
		all = append(all, c)
	}
	if len(all) == 0 {
		return Comment{}, false
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Timestamp < all[j].Timestamp })
	return all[len(all)-1], true
}

func main() {
	s := newStore()

	http.HandleFunc("/api/voc/datasets/", datasetHandler(s))

	log.Println("Starting mock VoC API on :9000")
	log.Fatal(http.ListenAndServe(":9000", nil))
}

func datasetHandler(s *store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, `{"message":"method not allowed"}`, http.StatusMethodNotAllowed)
			return
		}
		if r.Header.Get("X-Auth-Token") == "" {
			http.Error(w, `{"message":"missing auth token"}`, http.StatusUnauthorized)
			return
		}

		// Path: /api/voc/datasets/{owner}/{dataset}/{op}
		parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/voc/datasets/"), "/")
		if len(parts) != 3 {
			http.Error(w, `{"message":"no such endpoint"}`, http.StatusNotFound)
			return
		}
		dataset := parts[0] + "/" + parts[1]

		switch parts[2] {
		case "sync":
			handleSync(s, dataset, w, r)
		case "recent":
			handleRecent(s, dataset, w)
		default:
			http.Error(w, `{"message":"no such endpoint"}`, http.StatusNotFound)
		}
	}
}

func handleSync(s *store, dataset string, w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, `{"message":"read body"}`, http.StatusBadRequest)
		return
	}

	var req syncRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, `{"message":"Invalid Comments"}`, http.StatusBadRequest)
		return
	}

	s.put(dataset, req.Comments)
	log.Printf("synced %d comments into %s", len(req.Comments), dataset)

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{}`))
}

func handleRecent(s *store, dataset string, w http.ResponseWriter) {
	resp := recentResponse{Comments: []Comment{}}
	if c, ok := s.mostRecent(dataset); ok {
		resp.Comments = append(resp.Comments, c)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
