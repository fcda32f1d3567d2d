package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRobotsAllowed(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			requests++
			w.Write([]byte("User-agent: *\nDisallow: /private/\n"))
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	robots := NewRobots(NewClient(nil, "Test Agent", 5*time.Second))
	ctx := context.Background()

	if !robots.Allowed(ctx, server.URL+"/blog/") {
		t.Error("Expected /blog/ to be allowed")
	}
	if robots.Allowed(ctx, server.URL+"/private/page") {
		t.Error("Expected /private/page to be disallowed")
	}
	if requests != 1 {
		t.Errorf("Expected robots.txt to be fetched once, got %d", requests)
	}
}

func TestRobotsMissingAllowsEverything(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	robots := NewRobots(NewClient(nil, "Test Agent", 5*time.Second))
	if !robots.Allowed(context.Background(), server.URL+"/anything") {
		t.Error("Expected missing robots.txt to allow everything")
	}
}
