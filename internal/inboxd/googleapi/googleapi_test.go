package googleapi_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/inboxai/inboxd/internal/inboxd/calendar"
	"github.com/inboxai/inboxd/internal/inboxd/googleapi"
	"github.com/inboxai/inboxd/internal/inboxd/mail"
)

type stubRefresh struct {
	token string
	calls int
}

func (s *stubRefresh) RefreshToken(context.Context, string) (string, error) {
	s.calls++
	return s.token, nil
}

// newTokenServer stands in for the OAuth token endpoint.
func newTokenServer(t *testing.T, exchanges *int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "refresh_token" {
			t.Errorf("grant_type = %q", got)
		}
		if got := r.PostForm.Get("refresh_token"); got != "refresh-abc" {
			t.Errorf("refresh_token = %q", got)
		}
		if exchanges != nil {
			*exchanges++
		}
		fmt.Fprint(w, `{"access_token":"access-xyz","expires_in":3600}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAccessTokenExchangeAndCache(t *testing.T) {
	var exchanges int
	tokenSrv := newTokenServer(t, &exchanges)
	refresh := &stubRefresh{token: "refresh-abc"}
	ts := googleapi.NewTokenSource(googleapi.TokenConfig{
		ClientID:     "cid",
		ClientSecret: "secret",
		TokenURL:     tokenSrv.URL,
	}, refresh)

	for i := 0; i < 3; i++ {
		token, err := ts.AccessToken(context.Background(), "alice@example.com")
		if err != nil {
			t.Fatalf("AccessToken: %v", err)
		}
		if token != "access-xyz" {
			t.Fatalf("token = %q", token)
		}
	}
	if exchanges != 1 {
		t.Errorf("token exchanged %d times, want 1 (cached)", exchanges)
	}
}

func TestAccessTokenRetriesTransientFailure(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			http.Error(w, "upstream hiccup", http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"access_token":"access-xyz","expires_in":3600}`)
	}))
	t.Cleanup(srv.Close)

	ts := googleapi.NewTokenSource(googleapi.TokenConfig{TokenURL: srv.URL}, &stubRefresh{token: "refresh-abc"})
	token, err := ts.AccessToken(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("AccessToken: %v", err)
	}
	if token != "access-xyz" {
		t.Errorf("token = %q", token)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

// newGmailServer serves a two-message unread listing.
func newGmailServer(t *testing.T) *httptest.Server {
	t.Helper()
	encode := func(s string) string {
		return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString([]byte(s))
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer access-xyz" {
			t.Errorf("Authorization = %q", got)
		}
		switch {
		case r.URL.Path == "/gmail/v1/users/me/messages" && r.Method == http.MethodGet:
			if got := r.URL.Query().Get("labelIds"); got != "UNREAD" {
				t.Errorf("labelIds = %q", got)
			}
			fmt.Fprint(w, `{"messages":[{"id":"m1"},{"id":"m2"}]}`)
		case r.URL.Path == "/gmail/v1/users/me/messages/m1":
			fmt.Fprintf(w, `{"id":"m1","payload":{
				"headers":[{"name":"From","value":"ci@github.com"},{"name":"Subject","value":"Build failed"}],
				"parts":[{"mimeType":"text/html","body":{"data":""}},
				         {"mimeType":"text/plain","body":{"data":"%s"}}]}}`, encode("the build is red"))
		case r.URL.Path == "/gmail/v1/users/me/messages/m2":
			// Padded base64url: some messages arrive with padding even
			// though the API normally emits it unpadded.
			fmt.Fprintf(w, `{"id":"m2","payload":{
				"headers":[{"name":"From","value":"alice@example.com"}],
				"body":{"data":"%s"}}}`, base64.URLEncoding.EncodeToString([]byte("lunch at noon?")))
		case r.URL.Path == "/gmail/v1/users/me/messages/send" && r.Method == http.MethodPost:
			var payload map[string]string
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				t.Fatalf("decode send payload: %v", err)
			}
			raw, err := base64.URLEncoding.DecodeString(payload["raw"])
			if err != nil {
				t.Fatalf("decode raw: %v", err)
			}
			if !strings.Contains(string(raw), "To: bob@example.com") {
				t.Errorf("raw message = %q", raw)
			}
			fmt.Fprint(w, `{"id":"sent-1"}`)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL)
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestMailbox(t *testing.T) mail.Provider {
	t.Helper()
	tokenSrv := newTokenServer(t, nil)
	ts := googleapi.NewTokenSource(googleapi.TokenConfig{TokenURL: tokenSrv.URL}, &stubRefresh{token: "refresh-abc"})
	gmail := googleapi.NewGmail(googleapi.GmailConfig{BaseURL: newGmailServer(t).URL}, ts)
	return gmail.Mailbox("alice@example.com")
}

func TestGmailUnread(t *testing.T) {
	mailbox := newTestMailbox(t)

	messages, err := mailbox.Unread(context.Background(), mail.Query{Max: 10})
	if err != nil {
		t.Fatalf("Unread: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("messages = %d", len(messages))
	}

	first := messages[0]
	if first.Sender != "ci@github.com" || first.Subject != "Build failed" {
		t.Errorf("first = %+v", first)
	}
	if first.Body != "the build is red" {
		t.Errorf("multipart body = %q", first.Body)
	}

	second := messages[1]
	if second.Subject != "No Subject" {
		t.Errorf("missing subject header should default, got %q", second.Subject)
	}
	if second.Body != "lunch at noon?" {
		t.Errorf("single-part body = %q", second.Body)
	}
}

func TestGmailSend(t *testing.T) {
	mailbox := newTestMailbox(t)

	id, err := mailbox.Send(context.Background(), "bob@example.com", "Hi", "hello there")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if id != "sent-1" {
		t.Errorf("message id = %q", id)
	}
}

func TestCalendarCreateMeeting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/calendar/v3/calendars/primary/events" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("conferenceDataVersion"); got != "1" {
			t.Errorf("conferenceDataVersion = %q", got)
		}
		var event map[string]any
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		if event["summary"] != "Q2 planning" {
			t.Errorf("summary = %v", event["summary"])
		}
		conf := event["conferenceData"].(map[string]any)["createRequest"].(map[string]any)
		if id, _ := conf["requestId"].(string); !strings.HasPrefix(id, "meet-") {
			t.Errorf("requestId = %v", conf["requestId"])
		}
		fmt.Fprint(w, `{"id":"ev-1","hangoutLink":"https://meet.google.com/abc-defg-hij","htmlLink":"https://calendar.google.com/event?eid=1"}`)
	}))
	t.Cleanup(srv.Close)

	tokenSrv := newTokenServer(t, nil)
	ts := googleapi.NewTokenSource(googleapi.TokenConfig{TokenURL: tokenSrv.URL}, &stubRefresh{token: "refresh-abc"})
	cal := googleapi.NewCalendar(googleapi.CalendarConfig{BaseURL: srv.URL}, ts)

	event, err := cal.Scheduler("alice@example.com").CreateMeeting(context.Background(), calendar.Meeting{
		Title:    "Q2 planning",
		Agenda:   "quarterly planning",
		Start:    time.Date(2026, time.March, 5, 14, 30, 0, 0, time.UTC),
		Duration: 45 * time.Minute,
	})
	if err != nil {
		t.Fatalf("CreateMeeting: %v", err)
	}
	if event.MeetLink != "https://meet.google.com/abc-defg-hij" {
		t.Errorf("meet link = %q", event.MeetLink)
	}
	if event.ID != "ev-1" {
		t.Errorf("event id = %q", event.ID)
	}
}
