package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
)

func TestNotifier_PostsPayloadWithHeaders(t *testing.T) {
	var (
		gotBody    map[string]interface{}
		gotHeaders http.Header
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNotifier(Options{})
	if ok := n.Notify(context.Background(), srv.URL, "job-1", map[string]string{"a": "b"}); !ok {
		t.Fatalf("Expected delivery to succeed")
	}
	if gotBody["a"] != "b" {
		t.Errorf("Expected payload to be delivered, got %v", gotBody)
	}
	if gotHeaders.Get("X-Compressor-Event") != EventCompleted || gotHeaders.Get("X-Compressor-Job-ID") != "job-1" {
		t.Errorf("Missing event headers: %v", gotHeaders)
	}
	if gotHeaders.Get("X-Signature") != "" {
		t.Errorf("Expected no signature without a secret")
	}
}

func TestNotifier_SignsWhenSecretIsSet(t *testing.T) {
	var ts, sig string
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts = r.Header.Get("X-Signature-Timestamp")
		sig = r.Header.Get("X-Signature")
		body, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	n := NewNotifier(Options{Secret: "s3cret"})
	n.now = func() time.Time { return time.Unix(1700000000, 0) }
	n.Notify(context.Background(), srv.URL, "job-1", []int{1, 2})

	if ts != "1700000000" {
		t.Errorf("Unexpected timestamp %q", ts)
	}
	if sig != Sign("s3cret", ts, body) {
		t.Errorf("Signature does not match body")
	}
}

func TestNotifier_ReportsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/slow" {
			time.Sleep(200 * time.Millisecond)
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewNotifier(Options{Timeout: 50 * time.Millisecond})
	for name, endpoint := range map[string]string{
		"disabled": "",
		"non-2xx":  srv.URL,
		"timeout":  srv.URL + "/slow",
		"refused":  "http://127.0.0.1:1/webhook",
	} {
		if n.Notify(context.Background(), endpoint, "job-1", nil) {
			t.Errorf("Expected %s delivery to report false", name)
		}
	}
}

func TestNotifier_IgnoresCallerCancellation(t *testing.T) {
	delivered := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		delivered <- struct{}{}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if !NewNotifier(Options{}).Notify(ctx, srv.URL, "job-1", nil) {
		t.Errorf("Expected delivery despite a canceled job context")
	}
	<-delivered
}

func TestReceiver(t *testing.T) {
	app := fiber.New()
	NewReceiver().Register(app)

	resp, _ := app.Test(httptest.NewRequest("POST", "/webhook", strings.NewReader(`{"Shoe":{"input_urls":[]}}`)))
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != 200 || string(body) != `{"status":"success"}` {
		t.Errorf("Expected success, got %d %s", resp.StatusCode, body)
	}

	resp, _ = app.Test(httptest.NewRequest("POST", "/webhook", strings.NewReader(`not json`)))
	var out map[string]string
	_ = json.NewDecoder(resp.Body).Decode(&out)
	if resp.StatusCode != 400 || out["status"] != "error" || out["message"] == "" {
		t.Errorf("Expected error response, got %d %v", resp.StatusCode, out)
	}

	resp, _ = app.Test(httptest.NewRequest("GET", "/ping", nil))
	body, _ = io.ReadAll(resp.Body)
	if string(body) != `{"status":"pong"}` {
		t.Errorf("Expected pong, got %s", body)
	}
}
