package logging

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tutorhub/tutorhub/pkg/middleware/testutil"
	"github.com/tutorhub/tutorhub/pkg/server/router"
	ginadapter "github.com/tutorhub/tutorhub/pkg/server/router/gin"
)

func TestLogging_LevelFollowsOutcome(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		handler   router.HandlerFunc
		wantLevel string
		wantMsg   string
	}{
		{"ok", "/api/public/branches", func(c router.Context) error { return c.String(http.StatusOK, "ok") }, "info", "request completed"},
		{"client error", "/api/public/branches", func(c router.Context) error { return c.String(http.StatusBadRequest, "bad") }, "warn", "request rejected"},
		{"handler error", "/api/public/branches", func(router.Context) error { return errors.New("boom") }, "error", "request failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := &testutil.MockLogger{}
			r := ginadapter.NewRouter()
			r.Use(Logging(log))
			r.GET(tt.path, tt.handler)

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path+"?page=2", nil))

			entries := log.Entries()
			if len(entries) != 1 {
				t.Fatalf("expected one entry, got %+v", entries)
			}
			if entries[0].Level != tt.wantLevel || entries[0].Msg != tt.wantMsg {
				t.Fatalf("got %s %q", entries[0].Level, entries[0].Msg)
			}
			if entries[0].Fields[FieldPath] != tt.path || entries[0].Fields[FieldMethod] != http.MethodGet {
				t.Fatalf("unexpected fields %+v", entries[0].Fields)
			}
		})
	}
}

func TestLogging_ExcludedPaths(t *testing.T) {
	log := &testutil.MockLogger{}
	r := ginadapter.NewRouter()
	r.Use(Logging(log))
	r.GET("/health", func(c router.Context) error { return c.String(http.StatusOK, "ok") })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	if len(log.Entries()) != 0 {
		t.Fatalf("health probe logged: %+v", log.Entries())
	}
}

func TestLogging_CustomFields(t *testing.T) {
	log := &testutil.MockLogger{}
	r := ginadapter.NewRouter()
	r.Use(WithConfig(log, Config{Enabled: true, Fields: []string{"ROUTE", "query_string", "bogus", "route"}}))
	r.GET("/api/tutors/:id/lock", func(c router.Context) error { return c.String(http.StatusOK, "ok") })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/tutors/7/lock?x=1", nil))

	entries := log.Entries()
	if len(entries) != 1 || len(entries[0].Fields) != 2 {
		t.Fatalf("unexpected entries %+v", entries)
	}
	if entries[0].Fields[FieldRoute] != "/api/tutors/:id/lock" || entries[0].Fields[FieldQueryString] != "x=1" {
		t.Fatalf("unexpected fields %+v", entries[0].Fields)
	}
}
