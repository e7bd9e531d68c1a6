package twitchapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/onnwee/chat-tender/testutil"
)

// rewriteTransport redirects every request to the mock server regardless of
// the hardcoded production URLs.
type rewriteTransport struct {
	Transport http.RoundTripper
	host      string
}

func (rt *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = "http"
	req.URL.Host = strings.TrimPrefix(strings.TrimPrefix(rt.host, "http://"), "https://")
	transport := rt.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	return transport.RoundTrip(req)
}

func newTestHelixClient(mock *testutil.MockTwitchServer) *HelixClient {
	ts := &TokenSource{ClientID: "cid", ClientSecret: "secret"}
	ts.SetToken("cached-app-token", time.Now().Add(time.Hour))
	return &HelixClient{
		AppTokenSource: ts,
		ClientID:       "cid",
		HTTPClient:     &http.Client{Transport: &rewriteTransport{host: mock.URL}},
	}
}

func TestGetUserID(t *testing.T) {
	mock := testutil.NewMockTwitchServer(t)
	mock.MockUserResponse("12345", "somechannel")
	hc := newTestHelixClient(mock)

	id, err := hc.GetUserID(context.Background(), "somechannel")
	if err != nil {
		t.Fatalf("GetUserID: %v", err)
	}
	if id != "12345" {
		t.Errorf("id = %q, want 12345", id)
	}

	if _, err := hc.GetUserID(context.Background(), ""); err == nil {
		t.Error("empty login accepted")
	}
}

func TestGetUserIDNotFound(t *testing.T) {
	mock := testutil.NewMockTwitchServer(t)
	mock.Handlers["/helix/users"] = func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[]}`))
	}
	hc := newTestHelixClient(mock)

	if _, err := hc.GetUserID(context.Background(), "nobody"); err == nil {
		t.Fatal("empty data accepted")
	}
}

func TestGetUserIDSendsAuthHeaders(t *testing.T) {
	mock := testutil.NewMockTwitchServer(t)
	var gotAuth, gotClientID string
	mock.Handlers["/helix/users"] = func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotClientID = r.Header.Get("Client-Id")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"id":"1"}]}`))
	}
	hc := newTestHelixClient(mock)

	if _, err := hc.GetUserID(context.Background(), "someone"); err != nil {
		t.Fatal(err)
	}
	if gotAuth != "Bearer cached-app-token" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotClientID != "cid" {
		t.Errorf("Client-Id = %q", gotClientID)
	}
}

func TestGetStreams(t *testing.T) {
	mock := testutil.NewMockTwitchServer(t)
	started := time.Date(2026, 8, 30, 20, 0, 0, 0, time.UTC)
	mock.MockStreamsResponse([]map[string]interface{}{
		{"title": "speedrun", "started_at": started.Format(time.RFC3339)},
	})
	hc := newTestHelixClient(mock)

	streams, err := hc.GetStreams(context.Background(), "somechannel")
	if err != nil {
		t.Fatalf("GetStreams: %v", err)
	}
	if len(streams) != 1 || streams[0].Title != "speedrun" || !streams[0].StartedAt.Equal(started) {
		t.Fatalf("streams = %+v", streams)
	}
}

func TestGetStreamsOffline(t *testing.T) {
	mock := testutil.NewMockTwitchServer(t)
	mock.MockStreamsResponse(nil)
	hc := newTestHelixClient(mock)

	streams, err := hc.GetStreams(context.Background(), "somechannel")
	if err != nil {
		t.Fatalf("GetStreams: %v", err)
	}
	if len(streams) != 0 {
		t.Fatalf("streams = %+v, want empty for offline", streams)
	}
}

func TestGetStreamsHTTPError(t *testing.T) {
	mock := testutil.NewMockTwitchServer(t)
	mock.Handlers["/helix/streams"] = func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}
	hc := newTestHelixClient(mock)

	if _, err := hc.GetStreams(context.Background(), "somechannel"); err == nil {
		t.Fatal("401 response accepted")
	}
}

func TestGetChatters(t *testing.T) {
	mock := testutil.NewMockTwitchServer(t)
	mock.MockChattersResponse([]string{"alice", "bob", "carol"})
	hc := newTestHelixClient(mock)

	logins, err := hc.GetChatters(context.Background(), "123", "456")
	if err != nil {
		t.Fatalf("GetChatters: %v", err)
	}
	if len(logins) != 3 || logins[0] != "alice" || logins[2] != "carol" {
		t.Fatalf("logins = %v", logins)
	}

	if _, err := hc.GetChatters(context.Background(), "", "456"); err == nil {
		t.Error("missing broadcaster id accepted")
	}
}

func TestGetChattersPagination(t *testing.T) {
	mock := testutil.NewMockTwitchServer(t)
	pages := []struct {
		logins []string
		cursor string
	}{
		{[]string{"alice", "bob"}, "page2"},
		{[]string{"carol"}, ""},
	}
	call := 0
	mock.Handlers["/helix/chat/chatters"] = func(w http.ResponseWriter, r *http.Request) {
		if call == 1 && r.URL.Query().Get("after") != "page2" {
			t.Errorf("second page requested without cursor: %q", r.URL.Query().Get("after"))
		}
		page := pages[call]
		call++
		data := make([]map[string]string, 0, len(page.logins))
		for _, l := range page.logins {
			data = append(data, map[string]string{"user_login": l})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data":       data,
			"pagination": map[string]string{"cursor": page.cursor},
		})
	}
	hc := newTestHelixClient(mock)

	logins, err := hc.GetChatters(context.Background(), "123", "456")
	if err != nil {
		t.Fatalf("GetChatters: %v", err)
	}
	if len(logins) != 3 {
		t.Fatalf("logins = %v, want all pages merged", logins)
	}
	if call != 2 {
		t.Fatalf("requests = %d, want 2", call)
	}
}
