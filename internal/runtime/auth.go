// internal/runtime/auth.go
package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	gc "github.com/joshsymonds/gmail-checker/internal/gmail"
)

// Auth locates the OAuth client secret and the cached token.
type Auth struct {
	SecretPath string
	TokenPath  string
	Prompt     io.Writer // receives the consent URL; nil means os.Stderr
	Logger     *slog.Logger
}

// NewGmailClient builds one read-only Gmail client, running the browser
// consent flow when no usable token is cached.
func NewGmailClient(ctx context.Context, auth Auth) (gc.Client, error) {
	if auth.Logger == nil {
		auth.Logger = DefaultLogger()
	}
	if auth.Prompt == nil {
		auth.Prompt = os.Stderr
	}
	secret, err := os.ReadFile(auth.SecretPath)
	if err != nil {
		return nil, fmt.Errorf("read client secret: %w", err)
	}
	cfg, err := google.ConfigFromJSON(secret, gmail.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse client secret: %w", err)
	}

	ts, err := tokenSource(ctx, cfg, auth)
	if err != nil {
		return nil, err
	}
	svc, err := gmail.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return NewGoogleAPIClient(svc), nil
}

func tokenSource(ctx context.Context, cfg *oauth2.Config, auth Auth) (oauth2.TokenSource, error) {
	tok, err := loadToken(auth.TokenPath)
	if err == nil && (tok.Valid() || tok.RefreshToken != "") {
		ts := &cachingTokenSource{base: cfg.TokenSource(ctx, tok), path: auth.TokenPath, last: tok.AccessToken}
		_, refreshErr := ts.Token()
		if refreshErr == nil {
			return ts, nil
		}
		auth.Logger.WarnContext(ctx, "cached token unusable, re-authorizing", "error", refreshErr)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		auth.Logger.WarnContext(ctx, "ignoring unreadable token cache", "path", auth.TokenPath, "error", err)
	}

	tok, err = tokenFromWeb(ctx, cfg, auth.Prompt)
	if err != nil {
		return nil, fmt.Errorf("authorize: %w", err)
	}
	if err := saveToken(auth.TokenPath, tok); err != nil {
		return nil, err
	}
	return &cachingTokenSource{base: cfg.TokenSource(ctx, tok), path: auth.TokenPath, last: tok.AccessToken}, nil
}

// cachingTokenSource writes refreshed tokens back to disk.
type cachingTokenSource struct {
	base oauth2.TokenSource
	path string

	mu   sync.Mutex
	last string
}

func (c *cachingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := c.base.Token()
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if tok.AccessToken != c.last {
		if err := saveToken(c.path, tok); err != nil {
			return nil, err
		}
		c.last = tok.AccessToken
	}
	return tok, nil
}

func loadToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path) // #nosec G304 - path comes from configuration
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	return tok, nil
}

func saveToken(path string, tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("ensure token dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600) // #nosec G304
	if err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	defer func() { _ = f.Close() }()
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	return nil
}

// tokenFromWeb runs the loopback redirect flow for installed apps.
func tokenFromWeb(ctx context.Context, cfg *oauth2.Config, prompt io.Writer) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("listen for redirect: %w", err)
	}
	redirect := *cfg
	redirect.RedirectURL = "http://" + ln.Addr().String() + "/"
	state := uuid.NewString()

	codes := make(chan string, 1)
	errs := make(chan error, 1)
	srv := &http.Server{
		ReadHeaderTimeout: 10 * time.Second,
		Handler:           callbackHandler(state, codes, errs),
	}
	go func() { _ = srv.Serve(ln) }()
	defer func() { _ = srv.Shutdown(context.Background()) }()

	url := redirect.AuthCodeURL(state, oauth2.AccessTypeOffline)
	fmt.Fprintf(prompt, "Open the following link in your browser to authorize gmail-checker:\n%s\n", url)

	select {
	case code := <-codes:
		tok, err := redirect.Exchange(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("exchange code: %w", err)
		}
		return tok, nil
	case err := <-errs:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func callbackHandler(state string, codes chan<- string, errs chan<- error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}
		if e := q.Get("error"); e != "" {
			http.Error(w, "authorization failed: "+e, http.StatusBadRequest)
			select {
			case errs <- fmt.Errorf("authorization denied: %s", e):
			default:
			}
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}
		fmt.Fprintln(w, "Authorization complete. You can close this window.")
		select {
		case codes <- code:
		default:
		}
	})
}

func DefaultLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
