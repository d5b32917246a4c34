package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tutorhub/tutorhub/pkg/controller"
	"github.com/tutorhub/tutorhub/pkg/i18n"
	mwi18n "github.com/tutorhub/tutorhub/pkg/middleware/i18n"
	"github.com/tutorhub/tutorhub/pkg/middleware/logging"
	"github.com/tutorhub/tutorhub/pkg/middleware/recovery"
	"github.com/tutorhub/tutorhub/pkg/middleware/requestid"
	"github.com/tutorhub/tutorhub/pkg/middleware/testutil"
	"github.com/tutorhub/tutorhub/pkg/server/router"
	ginadapter "github.com/tutorhub/tutorhub/pkg/server/router/gin"
)

// The server installs request id, recovery, access log and locale in this order.
func TestChain_PanicIsLocalizedAndCorrelated(t *testing.T) {
	catalog, err := i18n.LoadCatalog("es", "base", "")
	if err != nil {
		t.Fatal(err)
	}
	log := &testutil.MockLogger{}

	r := ginadapter.NewRouter()
	r.Use(
		requestid.RequestID(),
		recovery.Recovery(log),
		logging.Logging(log),
		mwi18n.Middleware(catalog, mwi18n.DefaultConfig()),
	)
	r.GET("/api/public/branches", func(router.Context) error { panic("boom") })

	req := httptest.NewRequest(http.MethodGet, "/api/public/branches", nil)
	req.Header.Set(requestid.Header, "req-chain")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	var body controller.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.RequestID != "req-chain" || body.Code != "internal.error" {
		t.Fatalf("unexpected body %+v", body)
	}
	if body.Message != "Se ha producido un error inesperado" {
		t.Fatalf("message not localized: %q", body.Message)
	}

	var sawPanic bool
	for _, e := range log.Entries() {
		if e.Msg == "panic recovered" {
			sawPanic = true
		}
	}
	if !sawPanic {
		t.Fatalf("panic not logged: %+v", log.Entries())
	}
}

func TestChain_ExecutionOrder(t *testing.T) {
	var order []string
	track := func(name string) router.MiddlewareFunc {
		return func(next router.HandlerFunc) router.HandlerFunc {
			return func(c router.Context) error {
				order = append(order, name+"-before")
				err := next(c)
				order = append(order, name+"-after")
				return err
			}
		}
	}

	r := ginadapter.NewRouter()
	r.Use(track("outer"))
	r.GET("/", func(c router.Context) error {
		order = append(order, "handler")
		return c.String(http.StatusOK, "ok")
	}, track("route"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	want := []string{"outer-before", "route-before", "handler", "route-after", "outer-after"}
	if len(order) != len(want) {
		t.Fatalf("order = %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}
