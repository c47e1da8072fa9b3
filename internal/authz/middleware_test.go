package authz

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareRequireAction(t *testing.T) {
	f := newFixture(t)
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	serve := func(actor *Actor) *httptest.ResponseRecorder {
		mw := Middleware{Engine: f.engine, Identity: StaticIdentity{Actor: actor}}
		h := mw.Attach(mw.RequireAction(ModuleJobs, "create")(ok))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs", nil))
		return rec
	}

	assert.Equal(t, http.StatusNoContent, serve(&Actor{ID: 1, Level: "manager"}).Code)

	rec := serve(&Actor{ID: 2, Level: "viewer"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "You do not have permission to create jobs.", body["detail"])

	assert.Equal(t, http.StatusForbidden, serve(nil).Code)
}

func TestMiddlewareWithoutAttach(t *testing.T) {
	mw := Middleware{}
	h := mw.RequireAction(ModuleJobs, "view")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Fatal("handler must not run")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAttachIsolatesRequests(t *testing.T) {
	f := newFixture(t)
	mw := Middleware{Engine: f.engine, Identity: StaticIdentity{Actor: &Actor{ID: 1, Level: "viewer"}}}

	var seen []*DecisionContext
	h := mw.Attach(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = append(seen, FromContext(r.Context()))
	}))
	for i := 0; i < 2; i++ {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	}
	require.Len(t, seen, 2)
	assert.NotNil(t, seen[0])
	assert.NotSame(t, seen[0], seen[1])
}
