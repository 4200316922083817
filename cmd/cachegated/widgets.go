package main

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cachegate/cachegate/pkg/conditional"
)

// widget is the demo resource served behind the middleware stack.
type widget struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// widgetServer is a minimal in-memory resource. It exists to exercise
// the middleware chain end to end: conditional collection reads,
// rate-limited access, idempotent creation with invalidation on write.
type widgetServer struct {
	mu    sync.RWMutex
	byID  map[string]widget
	cache *conditional.Cache
}

func newWidgetServer(cache *conditional.Cache) *widgetServer {
	return &widgetServer{
		byID:  make(map[string]widget),
		cache: cache,
	}
}

func (s *widgetServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/widgets" {
		switch r.Method {
		case http.MethodGet:
			s.list(w, r)
		case http.MethodPost:
			s.create(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/widgets/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		s.get(w, r, id)
	case http.MethodDelete:
		s.delete(w, r, id)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *widgetServer) list(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	items := make([]widget, 0, len(s.byID))
	for _, wgt := range s.byID {
		items = append(items, wgt)
	}
	s.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(items)
}

func (s *widgetServer) create(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Name == "" {
		http.Error(w, "name is required", http.StatusUnprocessableEntity)
		return
	}

	wgt := widget{
		ID:        uuid.NewString(),
		Name:      in.Name,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.byID[wgt.ID] = wgt
	s.mu.Unlock()

	s.cache.InvalidateEntityType(r.Context(), "widgets")
	s.cache.SetWatermark(r.Context(), "widgets", wgt.ID)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Location", "/widgets/"+wgt.ID)
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(wgt)
}

func (s *widgetServer) get(w http.ResponseWriter, r *http.Request, id string) {
	s.mu.RLock()
	wgt, ok := s.byID[id]
	s.mu.RUnlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(wgt)
}

func (s *widgetServer) delete(w http.ResponseWriter, r *http.Request, id string) {
	s.mu.Lock()
	_, ok := s.byID[id]
	delete(s.byID, id)
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}

	s.cache.InvalidateEntity(r.Context(), "widgets", id)
	s.cache.InvalidateEntityType(r.Context(), "widgets")

	w.WriteHeader(http.StatusNoContent)
}
