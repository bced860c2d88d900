package httpapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/inboxai/inboxd/internal/inboxd/calendar"
	"github.com/inboxai/inboxd/internal/inboxd/dispatch"
	"github.com/inboxai/inboxd/internal/inboxd/draft"
	"github.com/inboxai/inboxd/internal/inboxd/fastpath"
	"github.com/inboxai/inboxd/internal/inboxd/httpapi"
	"github.com/inboxai/inboxd/internal/inboxd/mail"
	"github.com/inboxai/inboxd/internal/inboxd/nlp"
	"github.com/inboxai/inboxd/internal/inboxd/store"
	"github.com/inboxai/inboxd/internal/inboxd/tools"
)

type stubClassifier struct{}

func (stubClassifier) Classify(context.Context, nlp.ClassifyRequest) (*nlp.ClassifyResponse, error) {
	return &nlp.ClassifyResponse{Reply: "classifier reply"}, nil
}

type memStore struct{ appends []store.Turn }

func (m *memStore) Append(_ context.Context, identity, role, content string) error {
	m.appends = append(m.appends, store.Turn{Identity: identity, Role: role, Content: content})
	return nil
}

func (m *memStore) History(context.Context, string, int) ([]store.Turn, error) { return nil, nil }

type stubMailbox struct{ lastIdentity string }

func (s *stubMailbox) provider(identity string) mail.Provider {
	s.lastIdentity = identity
	return s
}

func (s *stubMailbox) Unread(context.Context, mail.Query) ([]mail.Message, error) { return nil, nil }

func (s *stubMailbox) Send(_ context.Context, to, subject, body string) (string, error) {
	return "msg-1", nil
}

type stubScheduler struct{ created calendar.Meeting }

func (s *stubScheduler) provider(string) calendar.Provider { return s }

func (s *stubScheduler) CreateMeeting(_ context.Context, m calendar.Meeting) (calendar.Event, error) {
	s.created = m
	return calendar.Event{ID: "ev-1", MeetLink: "https://meet.google.com/abc"}, nil
}

type stubCompleter struct{}

func (stubCompleter) Complete(context.Context, string, string) (string, error) {
	return "OPTION 1:\nSubject: A\nBody: a\nOPTION 2:\nSubject: B\nBody: b\nOPTION 3:\nSubject: C\nBody: c", nil
}

func newTestServer(t *testing.T) (*httptest.Server, *memStore, *stubScheduler) {
	t.Helper()

	registry := tools.NewRegistry()
	for _, d := range mail.Descriptors() {
		registry.MustRegister(d)
	}
	st := &memStore{}
	mailbox := &stubMailbox{}
	scheduler := &stubScheduler{}

	dispatcher := dispatch.New(dispatch.Options{
		Registry:   registry,
		Matcher:    fastpath.NewMatcher(nil),
		Classifier: stubClassifier{},
		Bind: func(identity string) *tools.Binder {
			return tools.NewBinder(registry, mail.Actions(mailbox.provider(identity), mail.NewSummariser(stubCompleter{}), mail.NewCategoriser(stubCompleter{})))
		},
		Conversations: st,
	})

	srv := httpapi.New(httpapi.Options{
		Dispatcher: dispatcher,
		Mailbox:    mailbox.provider,
		Scheduler:  scheduler.provider,
		Drafter:    draft.NewDrafter(stubCompleter{}),
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, st, scheduler
}

func postJSON(t *testing.T, url, identity, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if identity != "" {
		req.Header.Set(httpapi.IdentityHeader, identity)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func TestHealth(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["status"] != "inboxd backend running 🚀" {
		t.Errorf("status body = %v", body)
	}
}

func TestCommandRequiresIdentity(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/command", "", `{"command":"hello"}`)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestCommandDispatches(t *testing.T) {
	ts, st, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/command", "alice@example.com", `{"command":"hello there"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["reply"] != "classifier reply" {
		t.Errorf("reply = %v", body["reply"])
	}
	if len(st.appends) != 2 {
		t.Errorf("persisted turns = %d, want 2", len(st.appends))
	}
	if st.appends[0].Identity != "alice@example.com" {
		t.Errorf("identity = %q", st.appends[0].Identity)
	}
}

func TestCommandBadJSON(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/command", "alice@example.com", `{broken`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSendEmail(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/email/send", "alice@example.com",
		`{"to":"bob@example.com","subject":"Hi","body":"hello"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["reply"] != "Email successfully sent to bob@example.com." {
		t.Errorf("reply = %v", body["reply"])
	}
	data := body["data"].(map[string]any)
	if data["message_id"] != "msg-1" {
		t.Errorf("message_id = %v", data["message_id"])
	}
}

func TestSendEmailRejectsEmptyRecipient(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/email/send", "alice@example.com", `{"subject":"Hi"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestDraftEmail(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/email/draft", "alice@example.com",
		`{"intent":"ask for an update","receiver":"bob@example.com"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	drafts := body["data"].(map[string]any)["drafts"].([]any)
	if len(drafts) != draft.OptionCount {
		t.Errorf("drafts = %d", len(drafts))
	}
	first := drafts[0].(map[string]any)
	if first["subject"] != "A" {
		t.Errorf("first subject = %v", first["subject"])
	}
}

func TestCreateMeeting(t *testing.T) {
	ts, _, scheduler := newTestServer(t)

	resp := postJSON(t, ts.URL+"/meeting/create", "alice@example.com",
		`{"title":"Sync","recipients":["bob@example.com"],"date":"2026-03-05","time":"14:30","duration":45,"agenda":"launch"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["data"].(map[string]any)["meet_link"] != "https://meet.google.com/abc" {
		t.Errorf("meet_link = %v", body["data"])
	}
	if scheduler.created.Title != "Sync" || len(scheduler.created.Recipients) != 1 {
		t.Errorf("meeting = %+v", scheduler.created)
	}
}

func TestCreateMeetingBadTime(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/meeting/create", "alice@example.com",
		`{"date":"soon","time":"later"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}
