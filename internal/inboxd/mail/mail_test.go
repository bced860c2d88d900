package mail_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/inboxai/inboxd/internal/inboxd/mail"
	"github.com/inboxai/inboxd/internal/inboxd/tools"
)

// stubProvider plays back canned messages and records sends.
type stubProvider struct {
	messages  []mail.Message
	lastQuery mail.Query
	unreadErr error

	sentTo      string
	sentSubject string
	sentBody    string
}

func (s *stubProvider) Unread(_ context.Context, q mail.Query) ([]mail.Message, error) {
	s.lastQuery = q
	if s.unreadErr != nil {
		return nil, s.unreadErr
	}
	if q.Max > 0 && len(s.messages) > q.Max {
		return s.messages[:q.Max], nil
	}
	return s.messages, nil
}

func (s *stubProvider) Send(_ context.Context, to, subject, body string) (string, error) {
	s.sentTo, s.sentSubject, s.sentBody = to, subject, body
	return "msg-123", nil
}

// stubCompleter returns canned text or an error.
type stubCompleter struct {
	text string
	err  error
}

func (s *stubCompleter) Complete(context.Context, string, string) (string, error) {
	return s.text, s.err
}

func TestClean(t *testing.T) {
	in := "Hello\uFEFF   world.\n\nClick Here to unsubscribe now"
	got := mail.Clean(in)
	if strings.Contains(got, "\uFEFF") {
		t.Error("invisible rune survived")
	}
	if strings.Contains(strings.ToLower(got), "click here") {
		t.Errorf("boilerplate survived: %q", got)
	}
	if strings.Contains(got, "  ") {
		t.Errorf("whitespace run survived: %q", got)
	}
}

func TestSummariseFallbacks(t *testing.T) {
	s := mail.NewSummariser(&stubCompleter{err: errors.New("llm down")})

	got := s.Summarise(context.Background(), mail.Message{
		Sender: "boss@example.com",
		Body:   "The quarterly review moved to Thursday at 10am, same room as before.",
	})
	if !strings.HasPrefix(got, "It's about The quarterly review") {
		t.Errorf("body fallback = %q", got)
	}

	got = s.Summarise(context.Background(), mail.Message{Sender: "x", Subject: "Invoice overdue"})
	if got != "Email about: Invoice overdue" {
		t.Errorf("subject fallback = %q", got)
	}

	got = s.Summarise(context.Background(), mail.Message{Sender: "x"})
	if got != "Email received (couldn't read the content)" {
		t.Errorf("empty fallback = %q", got)
	}
}

func TestSummariseFallbackKeepsRunesIntact(t *testing.T) {
	s := mail.NewSummariser(&stubCompleter{err: errors.New("llm down")})

	// 30 three-byte runes: 90 bytes, so the 80-byte preview cut lands
	// mid-rune unless trimmed to a boundary.
	got := s.Summarise(context.Background(), mail.Message{
		Sender: "promo@example.com",
		Body:   strings.Repeat("€", 30),
	})
	if !utf8.ValidString(got) {
		t.Errorf("fallback summary is not valid UTF-8: %q", got)
	}
	if !strings.HasPrefix(got, "It's about €") {
		t.Errorf("fallback = %q", got)
	}
}

func TestSummariseUsesCompleter(t *testing.T) {
	s := mail.NewSummariser(&stubCompleter{text: "  GitHub says your build failed.  "})

	got := s.Summarise(context.Background(), mail.Message{Sender: "ci@github.com", Body: "build log"})
	if got != "GitHub says your build failed." {
		t.Errorf("summary = %q", got)
	}
}

func TestCategoriseBySender(t *testing.T) {
	cases := []struct {
		sender string
		want   string
		hit    bool
	}{
		{"notifications@GitHub.com", mail.CategoryWork, true},
		{"jobs@linkedin.com", mail.CategoryPromotions, true},
		{"no-reply@service.io", mail.CategoryUpdates, true},
		{"statement@mybank.example", mail.CategoryFinance, true},
		{"alice@example.com", "", false},
	}
	for _, tc := range cases {
		got, ok := mail.CategoriseBySender(tc.sender)
		if got != tc.want || ok != tc.hit {
			t.Errorf("CategoriseBySender(%q) = %q, %v; want %q, %v", tc.sender, got, ok, tc.want, tc.hit)
		}
	}
}

func TestCategoriseLLMValidation(t *testing.T) {
	c := mail.NewCategoriser(&stubCompleter{text: "Promotions"})
	got := c.Categorise(context.Background(), mail.Message{Sender: "deals@shop.example"})
	if got != mail.CategoryPromotions {
		t.Errorf("category = %q", got)
	}

	c = mail.NewCategoriser(&stubCompleter{text: "Definitely a promotion!"})
	got = c.Categorise(context.Background(), mail.Message{Sender: "deals@shop.example"})
	if got != mail.CategoryPrimary {
		t.Errorf("unrecognised category should fall back to Primary, got %q", got)
	}

	c = mail.NewCategoriser(&stubCompleter{err: errors.New("llm down")})
	got = c.Categorise(context.Background(), mail.Message{Sender: "deals@shop.example"})
	if got != mail.CategoryPrimary {
		t.Errorf("LLM failure should fall back to Primary, got %q", got)
	}
}

func TestCategoriserExtend(t *testing.T) {
	c := mail.NewCategoriser(&stubCompleter{text: "Primary"})
	c.Extend(map[string]string{"gitlab.com": mail.CategoryWork})

	got := c.Categorise(context.Background(), mail.Message{Sender: "push@GitLab.com"})
	if got != mail.CategoryWork {
		t.Errorf("extended rule should match, got %q", got)
	}
}

func TestCategoriseAction(t *testing.T) {
	action := mail.CategoriseAction(mail.NewCategoriser(&stubCompleter{text: "Updates"}))

	value, err := action.Invoke(context.Background(), map[string]any{
		"sender":  "news@daily.example",
		"subject": "Your digest",
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	result := value.(*tools.Result)
	if result.Reply != "That email belongs in Updates." {
		t.Errorf("reply = %q", result.Reply)
	}
	data := result.Data.(map[string]any)
	if data["category"] != mail.CategoryUpdates {
		t.Errorf("category = %v", data["category"])
	}
}

func TestUnreadSummaryAction(t *testing.T) {
	provider := &stubProvider{messages: []mail.Message{
		{ID: "1", Sender: "a@x.com", Subject: "one", Body: "first"},
		{ID: "2", Sender: "b@x.com", Subject: "two", Body: "second"},
		{ID: "3", Sender: "c@x.com", Subject: "three", Body: "third"},
		{ID: "4", Sender: "d@x.com", Subject: "four", Body: "fourth"},
	}}
	action := mail.UnreadSummaryAction(provider, mail.NewSummariser(&stubCompleter{text: "summary"}))

	value, err := action.Invoke(context.Background(), nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	result := value.(*tools.Result)

	// Only the first three get summaries.
	if got := strings.Count(result.Reply, "summary"); got != 3 {
		t.Errorf("summaries = %d, want 3", got)
	}
	data := result.Data.(map[string]any)
	if data["unread_count"] != 4 {
		t.Errorf("unread_count = %v", data["unread_count"])
	}
}

func TestUnreadSummaryActionEmptyInbox(t *testing.T) {
	action := mail.UnreadSummaryAction(&stubProvider{}, mail.NewSummariser(&stubCompleter{}))

	value, err := action.Invoke(context.Background(), nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if value.(*tools.Result).Reply != "No unread emails 🎉" {
		t.Errorf("reply = %q", value.(*tools.Result).Reply)
	}
}

func TestLastEmailAction(t *testing.T) {
	provider := &stubProvider{messages: []mail.Message{
		{ID: "9", Sender: "a@x.com", Subject: "latest", Body: "body"},
	}}
	action := mail.LastEmailAction(provider, mail.NewSummariser(&stubCompleter{text: "the latest email"}))

	value, err := action.Invoke(context.Background(), nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if value.(*tools.Result).Reply != "the latest email" {
		t.Errorf("reply = %q", value.(*tools.Result).Reply)
	}
	if provider.lastQuery.Max != 1 {
		t.Errorf("query max = %d", provider.lastQuery.Max)
	}
}

func TestSenderCheckAction(t *testing.T) {
	provider := &stubProvider{}
	action := mail.SenderCheckAction(provider)

	value, err := action.Invoke(context.Background(), map[string]any{"sender_query": "github"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if value.(*tools.Result).Reply != "You have no unread emails from github." {
		t.Errorf("reply = %q", value.(*tools.Result).Reply)
	}
	if provider.lastQuery.Sender != "github" {
		t.Errorf("query sender = %q", provider.lastQuery.Sender)
	}

	provider.messages = []mail.Message{
		{Subject: "CI failed"},
		{Subject: "PR review requested"},
	}
	value, err = action.Invoke(context.Background(), map[string]any{"sender_query": "github"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	result := value.(*tools.Result)
	if result.Reply != "You have 2 unread emails from github." {
		t.Errorf("reply = %q", result.Reply)
	}
	data := result.Data.(map[string]any)
	if data["count"] != 2 {
		t.Errorf("count = %v", data["count"])
	}
}

func TestSenderCheckActionProviderError(t *testing.T) {
	action := mail.SenderCheckAction(&stubProvider{unreadErr: errors.New("gmail: 503")})

	_, err := action.Invoke(context.Background(), map[string]any{"sender_query": "github"})
	if err == nil {
		t.Fatal("expected error to propagate to the binder")
	}
}

func TestSendAction(t *testing.T) {
	provider := &stubProvider{}
	action := mail.SendAction(provider)

	value, err := action.Invoke(context.Background(), map[string]any{
		"to":      "alice@example.com",
		"subject": "Lunch",
		"body":    "Noon?",
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	result := value.(*tools.Result)
	if result.Reply != "Email successfully sent to alice@example.com." {
		t.Errorf("reply = %q", result.Reply)
	}
	if provider.sentSubject != "Lunch" || provider.sentBody != "Noon?" {
		t.Errorf("sent = %q / %q", provider.sentSubject, provider.sentBody)
	}
	data := result.Data.(map[string]any)
	if data["message_id"] != "msg-123" {
		t.Errorf("message_id = %v", data["message_id"])
	}
}

func TestDescriptorsRegister(t *testing.T) {
	registry := tools.NewRegistry()
	for _, d := range mail.Descriptors() {
		if err := registry.Register(d); err != nil {
			t.Fatalf("register %s: %v", d.Name, err)
		}
	}
	if _, ok := registry.Lookup(mail.ToolSendEmail); !ok {
		t.Error("send_email not registered")
	}
	if _, ok := registry.Lookup(mail.ToolCategorise); !ok {
		t.Error("categorise_email not registered")
	}
}
