package web

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/pietro2356/gr-selcall/pkg/config"
	"github.com/pietro2356/gr-selcall/pkg/logger"
)

func TestServer_New(t *testing.T) {
	cfg := config.WebConfig{
		Enabled: true,
		Host:    "localhost",
		Port:    8080,
	}

	log := logger.New(logger.Config{Level: "info"})
	srv := NewServer(cfg, log)

	if srv == nil {
		t.Fatal("NewServer returned nil")
	}

	if srv.config.Port != 8080 {
		t.Errorf("Expected port 8080, got %d", srv.config.Port)
	}
	if srv.GetHub() == nil {
		t.Error("Expected non-nil hub")
	}
	if srv.GetAPI() == nil {
		t.Error("Expected non-nil API")
	}
}

func TestServer_StartStop(t *testing.T) {
	cfg := config.WebConfig{
		Enabled: true,
		Host:    "localhost",
		Port:    0, // Use any available port
	}

	log := logger.New(logger.Config{Level: "info"})
	srv := NewServer(cfg, log)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start(ctx)
	}()

	// Wait a bit for server to start
	time.Sleep(100 * time.Millisecond)

	// Cancel context to stop server
	cancel()

	// Wait for server to stop
	err := <-errChan
	if err != nil && err != context.Canceled && err != http.ErrServerClosed {
		t.Errorf("Unexpected error: %v", err)
	}
}

// startTestServer runs a server on an ephemeral port and returns its address.
func startTestServer(t *testing.T) string {
	t.Helper()

	cfg := config.WebConfig{
		Enabled: true,
		Host:    "localhost",
		Port:    0,
	}
	log := logger.New(logger.Config{Level: "info"})
	srv := NewServer(cfg, log)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Start(ctx); err != nil && err != context.Canceled && err != http.ErrServerClosed {
			t.Logf("srv.Start error: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	deadline := time.Now().Add(2 * time.Second)
	for srv.GetAddr() == "" {
		if time.Now().After(deadline) {
			t.Fatal("Server did not start in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
	return srv.GetAddr()
}

func TestServer_HealthEndpoint(t *testing.T) {
	addr := startTestServer(t)

	resp, err := http.Get("http://" + addr + "/health")
	if err != nil {
		t.Fatalf("Failed to request health endpoint: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
}

func TestServer_ProtocolsEndpoint(t *testing.T) {
	addr := startTestServer(t)

	resp, err := http.Get("http://" + addr + "/api/protocols")
	if err != nil {
		t.Fatalf("Failed to request protocols endpoint: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "ZVEI-1") {
		t.Error("Expected ZVEI-1 in protocols response")
	}
}

func TestServer_ServesDashboard(t *testing.T) {
	addr := startTestServer(t)

	resp, err := http.Get("http://" + addr + "/")
	if err != nil {
		t.Fatalf("Failed to request dashboard: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(strings.ToLower(string(body)), "<!doctype html") {
		t.Error("Expected HTML dashboard at /")
	}
}
