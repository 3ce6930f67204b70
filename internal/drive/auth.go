package drive

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/JohnJocoo/gdrive-dormouse/internal/tokenfile"
)

// DefaultScopes requests read/write access to files the application creates
// or opens, which is all the uploader ever touches.
var DefaultScopes = []string{
	"https://www.googleapis.com/auth/drive.file",
}

const (
	stateTokenBytes  = 16
	callbackShutdown = 5 * time.Second
)

type callbackResult struct {
	code string
	err  error
}

// LoginWithBrowser performs the authorization code + PKCE flow against
// Google's OAuth endpoints: binds a localhost callback server, opens the
// browser, exchanges the resulting code for a token, persists it at
// tokenPath, and returns a tokenSource wrapping it.
func LoginWithBrowser(
	ctx context.Context,
	clientID, clientSecret, tokenPath string,
	openURL func(string) error,
	logger *slog.Logger,
) (*tokenSource, error) {
	cfg := oauthConfig(clientID, clientSecret)

	return doAuthCodeLogin(ctx, tokenPath, cfg, openURL, logger)
}

func doAuthCodeLogin(
	ctx context.Context,
	tokenPath string,
	cfg *oauth2.Config,
	openURL func(string) error,
	logger *slog.Logger,
) (*tokenSource, error) {
	logger.Info("starting browser auth flow", slog.String("path", tokenPath))

	resultCh := make(chan callbackResult, 1)
	mux := http.NewServeMux()

	srv, port, err := startCallbackServer(ctx, mux, resultCh, logger)
	if err != nil {
		return nil, err
	}
	defer shutdownCallbackServer(srv, logger)

	cfg.RedirectURL = fmt.Sprintf("http://localhost:%d", port)

	verifier := oauth2.GenerateVerifier()

	state, err := generateState()
	if err != nil {
		return nil, fmt.Errorf("drive: generating state token: %w", err)
	}

	registerCallbackHandler(mux, state, resultCh)

	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier))

	launchBrowser(authURL, openURL, logger)

	code, err := waitForCallback(ctx, resultCh)
	if err != nil {
		return nil, err
	}

	return exchangeAndSave(ctx, cfg, tokenPath, code, verifier, logger)
}

func startCallbackServer(
	ctx context.Context, mux *http.ServeMux, resultCh chan<- callbackResult, logger *slog.Logger,
) (*http.Server, int, error) {
	lc := net.ListenConfig{}

	listener, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		return nil, 0, fmt.Errorf("drive: binding localhost listener: %w", err)
	}

	tcpAddr, ok := listener.Addr().(*net.TCPAddr)
	if !ok {
		listener.Close()

		return nil, 0, fmt.Errorf("drive: listener address is not TCP")
	}

	port := tcpAddr.Port
	logger.Info("callback server listening", slog.Int("port", port))

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: callbackShutdown}

	go func() {
		if serveErr := srv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			resultCh <- callbackResult{err: fmt.Errorf("drive: callback server error: %w", serveErr)}
		}
	}()

	return srv, port, nil
}

func registerCallbackHandler(mux *http.ServeMux, state string, resultCh chan<- callbackResult) {
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		handleOAuthCallback(w, r, state, resultCh)
	})
}

func handleOAuthCallback(w http.ResponseWriter, r *http.Request, state string, resultCh chan<- callbackResult) {
	if r.URL.Query().Get("state") != state {
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		resultCh <- callbackResult{err: errors.New("drive: OAuth2 state mismatch (possible CSRF)")}

		return
	}

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		desc := r.URL.Query().Get("error_description")
		http.Error(w, "Authorization failed: "+errParam, http.StatusBadRequest)
		resultCh <- callbackResult{err: fmt.Errorf("drive: authorization failed: %s: %s", errParam, desc)}

		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "Missing authorization code", http.StatusBadRequest)
		resultCh <- callbackResult{err: errors.New("drive: callback missing authorization code")}

		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, "<html><body><h1>Authentication successful</h1>"+
		"<p>You can close this window and return to the terminal.</p></body></html>")
	resultCh <- callbackResult{code: code}
}

func shutdownCallbackServer(srv *http.Server, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), callbackShutdown)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("callback server shutdown error", slog.String("error", err.Error()))
	}
}

func launchBrowser(authURL string, openURL func(string) error, logger *slog.Logger) {
	logger.Info("opening browser for authorization")

	if err := openURL(authURL); err != nil {
		logger.Warn("failed to open browser, printing URL", slog.String("error", err.Error()))
		fmt.Fprintf(os.Stderr, "Open this URL in your browser:\n%s\n", authURL)
	}
}

func waitForCallback(ctx context.Context, resultCh <-chan callbackResult) (string, error) {
	select {
	case result := <-resultCh:
		if result.err != nil {
			return "", result.err
		}

		return result.code, nil
	case <-ctx.Done():
		return "", fmt.Errorf("drive: browser auth canceled: %w", ctx.Err())
	}
}

func exchangeAndSave(
	ctx context.Context, cfg *oauth2.Config, tokenPath, code, verifier string, logger *slog.Logger,
) (*tokenSource, error) {
	logger.Info("received authorization code, exchanging for token")

	tok, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("drive: token exchange failed: %w", err)
	}

	logger.Info("token exchange successful", slog.Time("expiry", tok.Expiry))

	if err := tokenfile.Save(tokenPath, tok, nil); err != nil {
		return nil, fmt.Errorf("drive: saving token: %w", err)
	}

	return newTokenSource(ctx, cfg, tok, tokenPath, logger), nil
}

func generateState() (string, error) {
	b := make([]byte, stateTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}

// TokenSourceFromPath loads a saved token and wraps it in a tokenSource that
// auto-refreshes and persists renewed tokens: refreshed tokens are detected
// and persisted explicitly in tokenSource.Token.
func TokenSourceFromPath(ctx context.Context, clientID, clientSecret, tokenPath string, logger *slog.Logger) (*tokenSource, error) {
	tok, _, err := tokenfile.Load(tokenPath)
	if err != nil {
		return nil, err
	}

	if tok == nil {
		return nil, ErrNotLoggedIn
	}

	logger.Info("loaded saved token",
		slog.String("path", tokenPath),
		slog.Time("expiry", tok.Expiry),
	)

	cfg := oauthConfig(clientID, clientSecret)

	return newTokenSource(ctx, cfg, tok, tokenPath, logger), nil
}

// Logout removes the saved token file at the given path. Returns nil if the
// token file does not exist (already logged out).
func Logout(tokenPath string, logger *slog.Logger) error {
	err := os.Remove(tokenPath)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Info("logout: no token file to remove", slog.String("path", tokenPath))

		return nil
	}

	if err != nil {
		return err
	}

	logger.Info("logout: removed token file", slog.String("path", tokenPath))

	return nil
}

func oauthConfig(clientID, clientSecret string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes:       DefaultScopes,
		Endpoint:     google.Endpoint,
	}
}

// tokenSource adapts an oauth2.TokenSource to the drive package's
// TokenSource interface, persisting every refreshed token back to
// tokenPath. Stock golang.org/x/oauth2 has no refresh-completion hook, so
// refreshes are detected by comparing expiry before and after each Token
// call.
type tokenSource struct {
	mu         sync.Mutex
	src        oauth2.TokenSource
	tokenPath  string
	logger     *slog.Logger
	lastExpiry time.Time
}

func newTokenSource(ctx context.Context, cfg *oauth2.Config, tok *oauth2.Token, tokenPath string, logger *slog.Logger) *tokenSource {
	return &tokenSource{
		src:        cfg.TokenSource(ctx, tok),
		tokenPath:  tokenPath,
		logger:     logger,
		lastExpiry: tok.Expiry,
	}
}

// Token returns the current access token, transparently refreshing and
// persisting it if expired.
func (t *tokenSource) Token() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tok, err := t.src.Token()
	if err != nil {
		t.logger.Warn("token acquisition failed", slog.String("error", err.Error()))

		return "", fmt.Errorf("drive: obtaining token: %w", err)
	}

	if !tok.Expiry.Equal(t.lastExpiry) {
		t.logger.Info("token refreshed, persisting", slog.Time("new_expiry", tok.Expiry))

		if err := tokenfile.Save(t.tokenPath, tok, nil); err != nil {
			t.logger.Warn("failed to persist refreshed token", slog.String("error", err.Error()))
		} else {
			t.lastExpiry = tok.Expiry
		}
	}

	return tok.AccessToken, nil
}

// isExpired reports whether the most recently observed token has expired.
func (t *tokenSource) isExpired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return !t.lastExpiry.IsZero() && t.lastExpiry.Before(time.Now())
}

// refresh forces a token acquisition, which transparently refreshes an
// expired token via the wrapped oauth2.TokenSource.
func (t *tokenSource) refresh(_ context.Context) error {
	_, err := t.Token()

	return err
}
