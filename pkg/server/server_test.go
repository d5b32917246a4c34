package server

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/tutorhub/tutorhub/pkg/config"
	"github.com/tutorhub/tutorhub/pkg/observability/logger"
)

func startServer(t *testing.T, handler http.Handler, cfg config.HTTPConfig) (*Server, context.CancelFunc, <-chan error) {
	t.Helper()
	srv := New(cfg, handler, logger.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)
	go func() { errChan <- srv.Start(ctx) }()

	select {
	case <-srv.Ready():
	case err := <-errChan:
		t.Fatalf("Start() error = %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not start")
	}
	return srv, cancel, errChan
}

func TestServer_ServesAndShutsDownOnCancel(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})
	srv, cancel, errChan := startServer(t, handler, config.HTTPConfig{Port: 0, ReadTimeout: time.Second, WriteTimeout: time.Second})

	resp, err := http.Get("http://" + srv.Addr() + "/")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Fatalf("unexpected response %d %q", resp.StatusCode, body)
	}

	cancel()
	select {
	case err := <-errChan:
		if err != nil {
			t.Fatalf("Start() returned %v after cancel", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}

	if _, err := http.Get("http://" + srv.Addr() + "/"); err == nil {
		t.Fatal("server still accepting connections after shutdown")
	}
}

func TestServer_ShutdownWaitsForInFlightRequests(t *testing.T) {
	started := make(chan struct{})
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		close(started)
		time.Sleep(150 * time.Millisecond)
		w.WriteHeader(http.StatusAccepted)
	})
	srv, cancel, errChan := startServer(t, handler, config.HTTPConfig{ShutdownTimeout: 2 * time.Second})

	respChan := make(chan int, 1)
	go func() {
		resp, err := http.Get("http://" + srv.Addr() + "/")
		if err != nil {
			respChan <- 0
			return
		}
		_ = resp.Body.Close()
		respChan <- resp.StatusCode
	}()

	<-started
	cancel()
	if status := <-respChan; status != http.StatusAccepted {
		t.Fatalf("in-flight request got %d", status)
	}
	if err := <-errChan; err != nil {
		t.Fatalf("Start() error = %v", err)
	}
}

func TestServer_StartFailsOnBusyPort(t *testing.T) {
	first, cancel, errChan := startServer(t, http.NotFoundHandler(), config.HTTPConfig{})
	defer func() {
		cancel()
		<-errChan
	}()

	_, port, _ := splitHostPort(first.Addr())
	second := New(config.HTTPConfig{Port: port}, http.NotFoundHandler(), logger.Nop())
	if err := second.Start(context.Background()); err == nil {
		t.Fatal("expected error binding a busy port")
	}
}

func TestServer_ShutdownBeforeStart(t *testing.T) {
	srv := New(config.HTTPConfig{}, http.NotFoundHandler(), logger.Nop())
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if srv.Addr() != "" {
		t.Fatalf("Addr() = %q before Start", srv.Addr())
	}
}
