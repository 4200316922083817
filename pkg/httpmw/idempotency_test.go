package httpmw

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cachegate/cachegate/internal/testutil"
	"github.com/cachegate/cachegate/pkg/cachestore"
	"github.com/cachegate/cachegate/pkg/idempotency"
)

func setupIdempotency(t *testing.T) (http.Handler, *testutil.Upstream) {
	t.Helper()

	_, client := testutil.NewRedis(t)
	store := cachestore.New(client, cachestore.DefaultConfig())
	guard := idempotency.New(store, idempotency.DefaultConfig())

	up := testutil.NewUpstream(`{"id":42}`)
	up.Status = http.StatusCreated
	up.Headers = map[string]string{"Location": "/widgets/42"}

	return Idempotency(guard)(up), up
}

func postWidget(key string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/widgets", strings.NewReader(`{"name":"gear"}`))
	r.Header.Set("Content-Type", "application/json")
	if key != "" {
		r.Header.Set(idempotency.HeaderKey, key)
	}
	return r
}

func TestIdempotency_ReplaySkipsUpstream(t *testing.T) {
	h, up := setupIdempotency(t)

	w1 := httptest.NewRecorder()
	h.ServeHTTP(w1, postWidget("order-1"))
	if w1.Code != http.StatusCreated {
		t.Fatalf("first status = %d, want 201", w1.Code)
	}
	if got := w1.Header().Get(idempotency.HeaderReplayed); got != "false" {
		t.Errorf("first replayed header = %q, want false", got)
	}

	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, postWidget("order-1"))
	if w2.Code != http.StatusCreated {
		t.Errorf("replay status = %d, want 201", w2.Code)
	}
	if got := w2.Header().Get(idempotency.HeaderReplayed); got != "true" {
		t.Errorf("replay header = %q, want true", got)
	}
	if got := w2.Header().Get("Location"); got != "/widgets/42" {
		t.Errorf("replayed Location = %q, want /widgets/42", got)
	}
	if w2.Body.String() != w1.Body.String() {
		t.Errorf("replayed body = %q, want %q", w2.Body.String(), w1.Body.String())
	}
	if up.Calls() != 1 {
		t.Errorf("upstream calls = %d, want 1", up.Calls())
	}
}

func TestIdempotency_ConflictReturns409(t *testing.T) {
	h, up := setupIdempotency(t)

	w1 := httptest.NewRecorder()
	h.ServeHTTP(w1, postWidget("order-2"))

	// Same key, different payload
	r := httptest.NewRequest(http.MethodPost, "/widgets", strings.NewReader(`{"name":"cog"}`))
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set(idempotency.HeaderKey, "order-2")

	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, r)
	if w2.Code != http.StatusConflict {
		t.Errorf("conflict status = %d, want 409", w2.Code)
	}
	if up.Calls() != 1 {
		t.Errorf("upstream calls = %d, want 1", up.Calls())
	}
}

func TestIdempotency_NoKeyPassesThrough(t *testing.T) {
	h, up := setupIdempotency(t)

	w1 := httptest.NewRecorder()
	h.ServeHTTP(w1, postWidget(""))
	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, postWidget(""))

	if up.Calls() != 2 {
		t.Errorf("upstream calls = %d, want 2", up.Calls())
	}
	if got := w1.Header().Get(idempotency.HeaderReplayed); got != "" {
		t.Errorf("replayed header = %q, want unset", got)
	}
}

func TestIdempotency_FailedResponsesNotReplayed(t *testing.T) {
	h, up := setupIdempotency(t)
	up.Status = http.StatusInternalServerError

	w1 := httptest.NewRecorder()
	h.ServeHTTP(w1, postWidget("order-3"))

	up.Status = http.StatusCreated
	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, postWidget("order-3"))

	if w2.Code != http.StatusCreated {
		t.Errorf("retry status = %d, want 201 from upstream", w2.Code)
	}
	if up.Calls() != 2 {
		t.Errorf("upstream calls = %d, want 2", up.Calls())
	}
}

func TestIdempotency_FailOpen(t *testing.T) {
	client := testutil.NewDeadRedis(t)
	store := cachestore.New(client, cachestore.DefaultConfig())
	guard := idempotency.New(store, idempotency.DefaultConfig())

	up := testutil.NewUpstream("ok")
	h := Idempotency(guard)(up)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, postWidget("order-4"))
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
	}
	if up.Calls() != 2 {
		t.Errorf("upstream calls = %d, want 2 with backend down", up.Calls())
	}
}
