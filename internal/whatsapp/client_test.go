package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	c, err := New(Opts{
		APIBase:       server.URL,
		Version:       "v18.0",
		AccessToken:   "tok",
		PhoneNumberID: "555",
		HTTPClient:    server.Client(),
		Logger:        zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNew_RequiresCredentials(t *testing.T) {
	tests := []struct {
		name string
		opts Opts
	}{
		{"missing token", Opts{PhoneNumberID: "555"}},
		{"missing phone number id", Opts{AccessToken: "tok"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.opts); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSend_Success(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"messages": [{"id": "wamid.ABC"}]}`))
	}))
	defer server.Close()

	c := newTestClient(t, server)
	receipt, err := c.Send(context.Background(), "123", "hello there")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if receipt.MessageID != "wamid.ABC" {
		t.Errorf("message id = %q", receipt.MessageID)
	}
	if gotPath != "/v18.0/555/messages" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("authorization = %q", gotAuth)
	}
	if gotBody["messaging_product"] != "whatsapp" || gotBody["to"] != "123" || gotBody["type"] != "text" {
		t.Errorf("request body = %+v", gotBody)
	}
	text, _ := gotBody["text"].(map[string]any)
	if text["body"] != "hello there" {
		t.Errorf("text = %+v", text)
	}
}

func TestSend_ProviderStatusFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "bad token"}}`, http.StatusInternalServerError)
	}))
	defer server.Close()

	c := newTestClient(t, server)
	_, err := c.Send(context.Background(), "123", "hi")

	var de *DispatchError
	if !errors.As(err, &de) {
		t.Fatalf("err = %v, want *DispatchError", err)
	}
	if de.Kind != FailureStatus || de.StatusCode != http.StatusInternalServerError {
		t.Errorf("error = %+v", de)
	}
}

func TestSend_MissingMessageID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"messages": []}`))
	}))
	defer server.Close()

	c := newTestClient(t, server)
	_, err := c.Send(context.Background(), "123", "hi")

	var de *DispatchError
	if !errors.As(err, &de) {
		t.Fatalf("err = %v, want *DispatchError", err)
	}
	if de.Kind != FailureResponse {
		t.Errorf("kind = %q, want response", de.Kind)
	}
}

func TestSend_UndecodableResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>gateway</html>`))
	}))
	defer server.Close()

	c := newTestClient(t, server)
	_, err := c.Send(context.Background(), "123", "hi")

	var de *DispatchError
	if !errors.As(err, &de) {
		t.Fatalf("err = %v, want *DispatchError", err)
	}
	if de.Kind != FailureResponse {
		t.Errorf("kind = %q, want response", de.Kind)
	}
}

func TestSend_UnreachableProvider(t *testing.T) {
	// Grab a port that is closed by the time Send dials it.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c, err := New(Opts{
		APIBase:       url,
		AccessToken:   "tok",
		PhoneNumberID: "555",
		HTTPClient:    &http.Client{Timeout: 2 * time.Second},
		Logger:        zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	start := time.Now()
	_, err = c.Send(context.Background(), "123", "hi")
	elapsed := time.Since(start)

	var de *DispatchError
	if !errors.As(err, &de) {
		t.Fatalf("err = %v, want *DispatchError", err)
	}
	if de.Kind != FailureNetwork {
		t.Errorf("kind = %q, want network", de.Kind)
	}
	if elapsed > 5*time.Second {
		t.Errorf("send took %v, want bounded failure", elapsed)
	}
}

func TestNew_Defaults(t *testing.T) {
	c, err := New(Opts{AccessToken: "tok", PhoneNumberID: "555"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.apiBase != "https://graph.facebook.com" || c.version != "v18.0" {
		t.Errorf("defaults = %q %q", c.apiBase, c.version)
	}
	if c.httpClient.Timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", c.httpClient.Timeout, DefaultTimeout)
	}
}
