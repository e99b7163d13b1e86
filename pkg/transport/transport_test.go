package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pkgwatch/crates-io-client/pkg/ratelimit"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()

	client, err := New(Config{
		BaseURL:   baseURL,
		UserAgent: "transport-test (test@example.com)",
	}, ratelimit.New(0, zerolog.Nop()), zerolog.Nop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return client
}

func TestNew_Validation(t *testing.T) {
	limiter := ratelimit.New(0, zerolog.Nop())

	tests := []struct {
		name     string
		config   Config
		limiter  *ratelimit.Limiter
		errorMsg string
	}{
		{
			name:    "valid config",
			config:  Config{UserAgent: "bot (bot.com)"},
			limiter: limiter,
		},
		{
			name:     "empty user agent",
			config:   Config{},
			limiter:  limiter,
			errorMsg: "user-agent is required",
		},
		{
			name:     "nil limiter",
			config:   Config{UserAgent: "bot (bot.com)"},
			errorMsg: "rate limiter is required",
		},
		{
			name:     "unparseable base url",
			config:   Config{UserAgent: "bot (bot.com)", BaseURL: "http://[::1"},
			limiter:  limiter,
			errorMsg: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.config, tt.limiter, zerolog.Nop())

			if tt.name == "valid config" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if client == nil {
					t.Fatal("client is nil")
				}
				return
			}

			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if tt.errorMsg != "" && err.Error() != tt.errorMsg {
				t.Errorf("error = %q, want %q", err.Error(), tt.errorMsg)
			}
		})
	}
}

func TestNew_DefaultBaseURL(t *testing.T) {
	client := newTestClient(t, "")

	base := client.BaseURL()
	if got := base.String(); got != DefaultBaseURL {
		t.Errorf("base url = %q, want %q", got, DefaultBaseURL)
	}
}

func TestSend_SetsIdentificationHeaders(t *testing.T) {
	var gotHeader http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL+"/api/v1/")

	raw, err := client.Send(context.Background(), Descriptor{Path: "summary"})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if ua := gotHeader.Get("User-Agent"); ua != "transport-test (test@example.com)" {
		t.Errorf("User-Agent = %q", ua)
	}
	if accept := gotHeader.Get("Accept"); accept != "application/json" {
		t.Errorf("Accept = %q", accept)
	}
	if gotHeader.Get("Authorization") != "" {
		t.Error("unexpected Authorization header without token")
	}
	if raw.ContentType != "application/json" {
		t.Errorf("ContentType = %q", raw.ContentType)
	}
}

func TestSend_SetsAuthorizationToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client, err := New(Config{
		BaseURL:   server.URL + "/api/v1/",
		UserAgent: "bot (bot.com)",
		Token:     "secret-token",
	}, ratelimit.New(0, zerolog.Nop()), zerolog.Nop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if _, err := client.Send(context.Background(), Descriptor{Path: "summary"}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if gotAuth != "secret-token" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "secret-token")
	}
}

func TestSend_BuildsURLFromBasePathAndQuery(t *testing.T) {
	var gotURL *url.URL
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := *r.URL
		gotURL = &u
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL+"/api/v1") // no trailing slash on purpose

	query := url.Values{}
	query.Set("page", "2")
	query.Set("q", "serde json")

	if _, err := client.Send(context.Background(), Descriptor{Path: "crates", Query: query}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if gotURL.Path != "/api/v1/crates" {
		t.Errorf("path = %q, want %q", gotURL.Path, "/api/v1/crates")
	}
	if got := gotURL.Query().Get("q"); got != "serde json" {
		t.Errorf("q = %q, want %q", got, "serde json")
	}
	// Reserved characters must arrive percent-encoded on the wire.
	if gotURL.RawQuery != "page=2&q=serde+json" {
		t.Errorf("raw query = %q", gotURL.RawQuery)
	}
}

func TestSend_ReturnsRawResponseForErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"errors":[{"detail":"missing"}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL+"/")

	raw, err := client.Send(context.Background(), Descriptor{Path: "crates/nope"})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if raw.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", raw.StatusCode)
	}
	if len(raw.Body) == 0 {
		t.Error("body should be preserved for the decoder")
	}
}

func TestSend_NetworkErrorWrappedAsTransportError(t *testing.T) {
	// Closed server guarantees a connection error.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	serverURL := server.URL
	server.Close()

	limiter := ratelimit.New(0, zerolog.Nop())
	client, err := New(Config{
		BaseURL:   serverURL + "/",
		UserAgent: "bot (bot.com)",
	}, limiter, zerolog.Nop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = client.Send(context.Background(), Descriptor{Path: "summary"})
	if err == nil {
		t.Fatal("expected transport error, got nil")
	}

	var terr *Error
	if !errors.As(err, &terr) {
		t.Fatalf("error type = %T, want *transport.Error", err)
	}
	if terr.URL == "" {
		t.Error("transport error should carry the request URL")
	}

	// The admission must be released even on failure.
	if got := limiter.InFlight(); got != 0 {
		t.Errorf("InFlight after failed send = %d, want 0", got)
	}
}

func TestSend_ConsumesAndReleasesAdmission(t *testing.T) {
	limiter := ratelimit.New(0, zerolog.Nop())

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := limiter.InFlight(); got != 1 {
			t.Errorf("InFlight during round trip = %d, want 1", got)
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client, err := New(Config{
		BaseURL:   server.URL + "/",
		UserAgent: "bot (bot.com)",
	}, limiter, zerolog.Nop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if _, err := client.Send(context.Background(), Descriptor{Path: "summary"}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if got := limiter.InFlight(); got != 0 {
		t.Errorf("InFlight after send = %d, want 0", got)
	}
}

func TestSend_RespectsMinIntervalBetweenCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	const interval = 80 * time.Millisecond
	limiter := ratelimit.New(interval, zerolog.Nop())
	client, err := New(Config{
		BaseURL:   server.URL + "/",
		UserAgent: "bot (bot.com)",
	}, limiter, zerolog.Nop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := client.Send(context.Background(), Descriptor{Path: "summary"}); err != nil {
			t.Fatalf("Send %d failed: %v", i, err)
		}
	}

	if elapsed := time.Since(start); elapsed < 2*interval-10*time.Millisecond {
		t.Errorf("3 calls finished in %v, want >= %v", elapsed, 2*interval)
	}
}
