// Package httpapi exposes the assistant over HTTP: the command endpoint
// plus direct routes for sending, drafting, and scheduling.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/inboxai/inboxd/common/trace"
	"github.com/inboxai/inboxd/internal/inboxd/calendar"
	"github.com/inboxai/inboxd/internal/inboxd/dispatch"
	"github.com/inboxai/inboxd/internal/inboxd/draft"
	"github.com/inboxai/inboxd/internal/inboxd/mail"
	"github.com/inboxai/inboxd/internal/inboxd/observability"
)

// IdentityHeader names the authenticated caller. The reverse proxy (or the
// gateway process) sets it after authentication; requests without it are
// rejected.
const IdentityHeader = "X-Inboxd-User"

// Server wires the HTTP routes to the dispatcher and the per-identity
// providers.
type Server struct {
	dispatcher *dispatch.Dispatcher
	mailbox    func(identity string) mail.Provider
	scheduler  func(identity string) calendar.Provider
	drafter    *draft.Drafter
}

// Options carries the Server collaborators. All fields are required.
type Options struct {
	Dispatcher *dispatch.Dispatcher
	Mailbox    func(identity string) mail.Provider
	Scheduler  func(identity string) calendar.Provider
	Drafter    *draft.Drafter
}

// New creates a Server.
func New(opts Options) *Server {
	return &Server{
		dispatcher: opts.Dispatcher,
		mailbox:    opts.Mailbox,
		scheduler:  opts.Scheduler,
		drafter:    opts.Drafter,
	}
}

// Handler returns the route mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", s.handleHealth)
	mux.HandleFunc("POST /command", s.withIdentity(s.handleCommand))
	mux.HandleFunc("POST /email/send", s.withIdentity(s.handleSendEmail))
	mux.HandleFunc("POST /email/draft", s.withIdentity(s.handleDraftEmail))
	mux.HandleFunc("POST /meeting/create", s.withIdentity(s.handleCreateMeeting))
	return mux
}

// --- request/response bodies ---

type commandRequest struct {
	Command string `json:"command"`
}

type sendEmailRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type draftRequest struct {
	Intent   string `json:"intent"`
	Receiver string `json:"receiver"`
	Tone     string `json:"tone"`
	Context  string `json:"context"`
}

type meetingRequest struct {
	Title      string   `json:"title"`
	Recipients []string `json:"recipients"`
	Date       string   `json:"date"`
	Time       string   `json:"time"`
	Duration   int      `json:"duration"`
	Agenda     string   `json:"agenda"`
}

// withIdentity rejects requests without the identity header and stamps the
// request context with a fresh trace ID.
func (s *Server) withIdentity(next func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := r.Header.Get(IdentityHeader)
		if identity == "" {
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		ctx := trace.WithTraceID(r.Context(), trace.NewID())
		next(w, r.WithContext(ctx), identity)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "inboxd backend running 🚀"})
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request, identity string) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result := s.dispatcher.Dispatch(r.Context(), identity, req.Command)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSendEmail(w http.ResponseWriter, r *http.Request, identity string) {
	var req sendEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.To == "" {
		writeError(w, http.StatusBadRequest, "to must not be empty")
		return
	}

	messageID, err := s.mailbox(identity).Send(r.Context(), req.To, req.Subject, req.Body)
	if err != nil {
		observability.WithTrace(r.Context()).Error("send email", "identity", identity, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to send email")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"reply": "Email successfully sent to " + req.To + ".",
		"data":  map[string]any{"message_id": messageID},
	})
}

func (s *Server) handleDraftEmail(w http.ResponseWriter, r *http.Request, identity string) {
	var req draftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	drafts := s.drafter.Generate(r.Context(), draft.Request{
		Intent:   req.Intent,
		Receiver: req.Receiver,
		Tone:     req.Tone,
		Context:  req.Context,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{"drafts": drafts},
	})
}

func (s *Server) handleCreateMeeting(w http.ResponseWriter, r *http.Request, identity string) {
	var req meetingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	meeting := calendar.Meeting{
		Title:      req.Title,
		Agenda:     req.Agenda,
		Recipients: req.Recipients,
		Start:      time.Now().UTC(),
		Duration:   calendar.DefaultDuration,
	}
	if meeting.Title == "" {
		meeting.Title = calendar.DefaultTitle
	}
	if req.Duration > 0 {
		meeting.Duration = time.Duration(req.Duration) * time.Minute
	}
	if req.Date != "" && req.Time != "" {
		start, err := time.Parse("2006-01-02T15:04", req.Date+"T"+req.Time)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date or time")
			return
		}
		meeting.Start = start.UTC()
	}

	event, err := s.scheduler(identity).CreateMeeting(r.Context(), meeting)
	if err != nil {
		observability.WithTrace(r.Context()).Error("create meeting", "identity", identity, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to create meeting")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{"meet_link": event.MeetLink},
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
