package main

import (
	"context"
	"fmt"
	"os"

	"github.com/inboxai/inboxd/common/crypto"
	"github.com/inboxai/inboxd/common/environment"
	"github.com/inboxai/inboxd/common/version"
	"github.com/inboxai/inboxd/internal/inboxd/app"
	inboxdconfig "github.com/inboxai/inboxd/internal/inboxd/config"
	"github.com/inboxai/inboxd/internal/inboxd/googleapi"
	"github.com/inboxai/inboxd/internal/inboxd/observability"
)

func main() {
	fmt.Printf("inboxd %s\n", version.Info())

	observability.Setup(
		environment.StringOr("INBOXD_LOG_LEVEL", "info"),
		environment.StringOr("INBOXD_LOG_FORMAT", "json"),
	)

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	backend, err := app.New(context.Background(), cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize inboxd: %v\n", err)
		os.Exit(1)
	}
	defer backend.Stop()

	if err := backend.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running inboxd: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (app.Config, error) {
	masterKeyHex, err := environment.RequiredString("INBOXD_MASTER_KEY")
	if err != nil {
		return app.Config{}, fmt.Errorf("%w\nGenerate a key with: openssl rand -hex 32", err)
	}
	masterKey, err := crypto.ParseMasterKey(masterKeyHex)
	if err != nil {
		return app.Config{}, err
	}

	cfg := app.Config{
		DatabasePath: environment.StringOr("INBOXD_DB_PATH", "./inboxd.db"),
		MasterKey:    masterKey,
		HTTPAddr:     environment.StringOr("INBOXD_HTTP_ADDR", ":8080"),
		Google: googleapi.TokenConfig{
			ClientID:     environment.StringOr("GOOGLE_CLIENT_ID", ""),
			ClientSecret: environment.StringOr("GOOGLE_CLIENT_SECRET", ""),
		},
		LLMAPIKey: environment.StringOr("INBOXD_LLM_API_KEY",
			environment.StringOr("GROQ_API_KEY", "")),
	}

	if path := environment.StringOr("INBOXD_CONFIG", ""); path != "" {
		file, err := inboxdconfig.Load(path)
		if err != nil {
			return app.Config{}, err
		}
		cfg.File = file
	}

	return cfg, nil
}
