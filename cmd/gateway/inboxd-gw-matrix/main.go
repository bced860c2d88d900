// inboxd-gw-matrix runs the assistant with a Matrix room as its
// conversational surface instead of (or alongside) the HTTP API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/inboxai/inboxd/common/crypto"
	"github.com/inboxai/inboxd/common/environment"
	"github.com/inboxai/inboxd/common/version"
	"github.com/inboxai/inboxd/internal/inboxd/app"
	inboxdconfig "github.com/inboxai/inboxd/internal/inboxd/config"
	"github.com/inboxai/inboxd/internal/inboxd/googleapi"
	"github.com/inboxai/inboxd/internal/inboxd/matrixgw"
	"github.com/inboxai/inboxd/internal/inboxd/observability"
)

func main() {
	fmt.Printf("inboxd-gw-matrix %s\n", version.Info())

	observability.Setup(
		environment.StringOr("INBOXD_LOG_LEVEL", "info"),
		environment.StringOr("INBOXD_LOG_FORMAT", "json"),
	)

	appCfg, gwCfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	backend, err := app.New(context.Background(), appCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize backend: %v\n", err)
		os.Exit(1)
	}
	defer backend.Stop()

	gateway, err := matrixgw.New(gwCfg, backend.Dispatcher)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create Matrix gateway: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if err := gateway.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start Matrix gateway: %v\n", err)
		os.Exit(1)
	}
	defer gateway.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
}

func loadConfig() (app.Config, matrixgw.Config, error) {
	masterKeyHex, err := environment.RequiredString("INBOXD_MASTER_KEY")
	if err != nil {
		return app.Config{}, matrixgw.Config{}, err
	}
	masterKey, err := crypto.ParseMasterKey(masterKeyHex)
	if err != nil {
		return app.Config{}, matrixgw.Config{}, err
	}

	appCfg := app.Config{
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
			return app.Config{}, matrixgw.Config{}, err
		}
		appCfg.File = file
	}

	homeserver, err := environment.RequiredString("MATRIX_HOMESERVER")
	if err != nil {
		return app.Config{}, matrixgw.Config{}, err
	}
	userID, err := environment.RequiredString("MATRIX_USER_ID")
	if err != nil {
		return app.Config{}, matrixgw.Config{}, err
	}
	accessToken, err := environment.RequiredString("MATRIX_ACCESS_TOKEN")
	if err != nil {
		return app.Config{}, matrixgw.Config{}, err
	}

	gwCfg := matrixgw.Config{
		Homeserver:  homeserver,
		UserID:      userID,
		AccessToken: accessToken,
		Rooms:       environment.StringSliceOr("MATRIX_ROOMS", nil),
		Identities:  parseIdentities(environment.StringOr("MATRIX_IDENTITIES", "")),
	}
	if len(gwCfg.Rooms) == 0 {
		return app.Config{}, matrixgw.Config{}, fmt.Errorf("MATRIX_ROOMS is required")
	}
	return appCfg, gwCfg, nil
}

// parseIdentities decodes "mxid=email,mxid=email" pairs.
func parseIdentities(raw string) map[string]string {
	if raw == "" {
		return nil
	}
	identities := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		mxid, email, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || mxid == "" || email == "" {
			continue
		}
		identities[mxid] = email
	}
	return identities
}
