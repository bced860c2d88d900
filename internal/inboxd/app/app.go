// Package app assembles the inboxd backend: storage, Google clients, the
// classifier, the tool registry, the dispatcher, and the HTTP surface.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/inboxai/inboxd/internal/inboxd/calendar"
	inboxdconfig "github.com/inboxai/inboxd/internal/inboxd/config"
	"github.com/inboxai/inboxd/internal/inboxd/dispatch"
	"github.com/inboxai/inboxd/internal/inboxd/draft"
	"github.com/inboxai/inboxd/internal/inboxd/fastpath"
	"github.com/inboxai/inboxd/internal/inboxd/googleapi"
	"github.com/inboxai/inboxd/internal/inboxd/httpapi"
	"github.com/inboxai/inboxd/internal/inboxd/mail"
	"github.com/inboxai/inboxd/internal/inboxd/nlp"
	"github.com/inboxai/inboxd/internal/inboxd/store"
	"github.com/inboxai/inboxd/internal/inboxd/tools"
)

// Config holds application configuration.
type Config struct {
	// DatabasePath is the SQLite file location.
	DatabasePath string

	// MasterKey is the 32-byte key sealing refresh tokens at rest.
	MasterKey []byte

	// HTTPAddr is the TCP address the API listens on, e.g. ":8080".
	HTTPAddr string

	// Google holds the OAuth client credentials for the token exchange.
	Google googleapi.TokenConfig

	// LLMAPIKey authenticates against the classifier backend.
	LLMAPIKey string

	// File is the optional parsed YAML configuration. When nil, built-in
	// defaults apply throughout.
	File *inboxdconfig.Config

	// Classifier overrides the auto-constructed provider. Used by tests.
	Classifier nlp.Provider

	// Completer overrides the auto-constructed completion client. Used by
	// tests.
	Completer nlp.Completer
}

// App is the assembled application.
type App struct {
	cfg        Config
	store      *store.Store
	Dispatcher *dispatch.Dispatcher
	server     *http.Server
}

// New wires the application together.
func New(ctx context.Context, cfg Config) (*App, error) {
	st, err := store.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("app: open store: %w", err)
	}

	users := st.Users(cfg.MasterKey)
	tokens := googleapi.NewTokenSource(cfg.Google, users)
	gmail := googleapi.NewGmail(googleapi.GmailConfig{}, tokens)
	cal := googleapi.NewCalendar(googleapi.CalendarConfig{}, tokens)

	var (
		persona      string
		historyLimit int
		llm          inboxdconfig.LLM
		extraRules   []fastpath.Rule
	)
	if cfg.File != nil {
		persona = cfg.File.Assistant.Persona
		historyLimit = cfg.File.Assistant.HistoryLimit
		llm = cfg.File.LLM
		extraRules = cfg.File.FastpathRules()
	}

	classifier := cfg.Classifier
	if classifier == nil {
		classifier, err = buildClassifier(ctx, llm, cfg.LLMAPIKey, persona)
		if err != nil {
			st.Close()
			return nil, err
		}
	}

	completer := cfg.Completer
	if completer == nil {
		completer = nlp.NewCompleter(nlp.Config{
			APIKey:  cfg.LLMAPIKey,
			BaseURL: llm.BaseURL,
			Model:   llm.Model,
		})
	}

	summariser := mail.NewSummariser(completer)
	categoriser := mail.NewCategoriser(completer)
	if cfg.File != nil {
		categoriser.Extend(cfg.File.SenderCategories)
	}
	drafter := draft.NewDrafter(completer)

	registry := tools.NewRegistry()
	for _, d := range mail.Descriptors() {
		registry.MustRegister(d)
	}
	registry.MustRegister(calendar.Descriptor())
	registry.MustRegister(draft.Descriptor())

	dispatcher := dispatch.New(dispatch.Options{
		Registry:   registry,
		Matcher:    fastpath.NewMatcher(append(fastpath.DefaultRules(), extraRules...)),
		Classifier: classifier,
		Bind: func(identity string) *tools.Binder {
			actions := mail.Actions(gmail.Mailbox(identity), summariser, categoriser)
			actions[calendar.ToolSchedule] = calendar.ScheduleAction(cal.Scheduler(identity), nil)
			actions[draft.ToolDraftOptions] = draft.Action(drafter)
			return tools.NewBinder(registry, actions)
		},
		Conversations: st,
		HistoryLimit:  historyLimit,
	})

	api := httpapi.New(httpapi.Options{
		Dispatcher: dispatcher,
		Mailbox:    gmail.Mailbox,
		Scheduler:  cal.Scheduler,
		Drafter:    drafter,
	})

	return &App{
		cfg:        cfg,
		store:      st,
		Dispatcher: dispatcher,
		server: &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           api.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

func buildClassifier(ctx context.Context, llm inboxdconfig.LLM, apiKey, persona string) (nlp.Provider, error) {
	if llm.Provider == inboxdconfig.ProviderGemini {
		classifier, err := nlp.NewGemini(ctx, nlp.GeminiConfig{
			APIKey:  apiKey,
			Model:   llm.Model,
			Persona: persona,
		})
		if err != nil {
			return nil, fmt.Errorf("app: gemini classifier: %w", err)
		}
		return classifier, nil
	}
	return nlp.New(nlp.Config{
		APIKey:  apiKey,
		BaseURL: llm.BaseURL,
		Model:   llm.Model,
		Persona: persona,
	}), nil
}

// Run serves HTTP until an interrupt or SIGTERM arrives.
func (a *App) Run() error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", a.cfg.HTTPAddr)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("app: http server: %w", err)
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig)
		return nil
	}
}

// Stop shuts the HTTP server down gracefully and closes the store.
func (a *App) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		slog.Warn("http shutdown", "err", err)
	}
	if err := a.store.Close(); err != nil {
		slog.Warn("close store", "err", err)
	}
}

// Users exposes the user store for OAuth bootstrap flows.
func (a *App) Users() *store.UserStore {
	return a.store.Users(a.cfg.MasterKey)
}
