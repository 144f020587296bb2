package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	gsheet "google.golang.org/api/sheets/v4"
)

// OAuth credentials for a personal Google account, used when no service
// account is configured. The token is produced once by AuthorizeInstalledApp.
const (
	envOAuthClientJSON = "GOOGLE_OAUTH_CLIENT_JSON"
	envOAuthClientFile = "GOOGLE_OAUTH_CLIENT_FILE"
	envOAuthTokenJSON  = "GOOGLE_OAUTH_TOKEN_JSON"
	envOAuthTokenFile  = "GOOGLE_OAUTH_TOKEN_FILE"
)

var (
	errMissingOAuthClient = errors.New("missing oauth client (set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE)")
	errMissingOAuthToken  = errors.New("missing oauth token (set GOOGLE_OAUTH_TOKEN_JSON or GOOGLE_OAUTH_TOKEN_FILE)")
)

// readEnvOrFile returns the inline value of jsonVar, or the content of the
// file named by fileVar. Both empty yields nil.
func readEnvOrFile(jsonVar, fileVar string) ([]byte, error) {
	if v := strings.TrimSpace(os.Getenv(jsonVar)); v != "" {
		return []byte(v), nil
	}
	path := strings.TrimSpace(os.Getenv(fileVar))
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// OAuthClientConfig reads the OAuth client from the environment.
func OAuthClientConfig() (*oauth2.Config, error) {
	data, err := readEnvOrFile(envOAuthClientJSON, envOAuthClientFile)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, errMissingOAuthClient
	}
	cfg, err := goauth.ConfigFromJSON(data, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	return cfg, nil
}

// oauthTokenSource builds a refreshing token source from the environment.
func oauthTokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	cfg, err := OAuthClientConfig()
	if err != nil {
		return nil, err
	}
	data, err := readEnvOrFile(envOAuthTokenJSON, envOAuthTokenFile)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, errMissingOAuthToken
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("parse oauth token: %w", err)
	}
	return cfg.TokenSource(ctx, &tok), nil
}

// hasOAuthEnv reports whether any OAuth client variable is set.
func hasOAuthEnv() bool {
	return strings.TrimSpace(os.Getenv(envOAuthClientJSON)) != "" ||
		strings.TrimSpace(os.Getenv(envOAuthClientFile)) != ""
}

// AuthorizeInstalledApp runs the installed-app consent flow: it serves the
// redirect on localhost:port, hands the consent URL to show, and returns
// the exchanged token.
func AuthorizeInstalledApp(ctx context.Context, cfg *oauth2.Config, port string, show func(url string)) (*oauth2.Token, error) {
	cfg.RedirectURL = "http://localhost:" + port + "/callback"

	ln, err := net.Listen("tcp", "localhost:"+port)
	if err != nil {
		return nil, fmt.Errorf("listen for oauth callback: %w", err)
	}

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		if msg := r.URL.Query().Get("error"); msg != "" {
			http.Error(w, "OAuth error: "+msg, http.StatusBadRequest)
			errCh <- fmt.Errorf("authorization denied: %s", msg)
			return
		}
		fmt.Fprintln(w, "You may close this window and return to the terminal.")
		codeCh <- r.URL.Query().Get("code")
	})
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() { _ = srv.Serve(ln) }()
	defer srv.Close()

	show(cfg.AuthCodeURL("pmpv", oauth2.AccessTypeOffline))

	select {
	case code := <-codeCh:
		tok, err := cfg.Exchange(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("token exchange: %w", err)
		}
		return tok, nil
	case err := <-errCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SaveToken writes tok as JSON readable only by the owner.
func SaveToken(path string, tok *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open token file: %w", err)
	}
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		f.Close()
		return fmt.Errorf("write token: %w", err)
	}
	return f.Close()
}
