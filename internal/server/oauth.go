package server

import (
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/desertthunder/qbsync/internal/shared"
	"golang.org/x/oauth2"
)

// OAuthResult is what one callback produced: a token or the reason there is none.
type OAuthResult struct {
	Token *oauth2.Token
	err   error
}

func (o OAuthResult) Error() error { return o.err }

// OAuthHandler serves the redirect URI of an authorization code flow with PKCE.
// It accepts exactly one callback; later requests get 400.
type OAuthHandler struct {
	config   *oauth2.Config
	state    string
	verifier string
	path     string
	handled  atomic.Bool
	results  chan OAuthResult
}

// NewOAuthHandler returns a handler for path ("/callback" when empty). state must be random.
func NewOAuthHandler(config *oauth2.Config, state, path string) *OAuthHandler {
	if path == "" {
		path = "/callback"
	}
	return &OAuthHandler{
		config:   config,
		state:    state,
		verifier: oauth2.GenerateVerifier(),
		path:     path,
		results:  make(chan OAuthResult, 1),
	}
}

// AuthCodeURL returns the consent page the user has to visit.
func (h *OAuthHandler) AuthCodeURL() string {
	return h.config.AuthCodeURL(h.state, oauth2.S256ChallengeOption(h.verifier))
}

func (h *OAuthHandler) Routes() []string { return []string{h.path} }

func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.handled.CompareAndSwap(false, true) {
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}

	token, status, err := h.exchange(r)
	h.results <- OAuthResult{Token: token, err: err}
	close(h.results)

	if err != nil {
		http.Error(w, http.StatusText(status)+": "+err.Error(), status)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, successPage)
}

// exchange validates the callback query and trades the code for a token.
func (h *OAuthHandler) exchange(r *http.Request) (*oauth2.Token, int, error) {
	query := r.URL.Query()
	if query.Get("state") != h.state {
		return nil, http.StatusBadRequest, fmt.Errorf("%w: invalid state parameter", shared.ErrAuthFailed)
	}

	code := query.Get("code")
	if code == "" {
		err := fmt.Errorf("%w: %s", shared.ErrAuthFailed, query.Get("error"))
		if desc := query.Get("error_description"); desc != "" {
			err = fmt.Errorf("%w: %s", err, desc)
		}
		return nil, http.StatusBadRequest, err
	}

	token, err := h.config.Exchange(r.Context(), code, oauth2.VerifierOption(h.verifier))
	if err != nil {
		return nil, http.StatusInternalServerError, fmt.Errorf("%w: token exchange failed: %w", shared.ErrAuthFailed, err)
	}
	return token, http.StatusOK, nil
}

// Result yields exactly one result and is then closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.results
}

const successPage = `<!DOCTYPE html>
<html>
<head>
    <title>qbsync: Spotify connected</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #1DB954; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>✓ Spotify connected</h1>
        <p>The auth cache has been written. You can close this window and return to the terminal.</p>
    </div>
</body>
</html>
`
