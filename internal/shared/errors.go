package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrMissingAuthCache   = fmt.Errorf("spotify auth cache not found")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrNoRefreshToken   = fmt.Errorf("no refresh token available")
	ErrTimeout          = fmt.Errorf("operation timed out")
	ErrLoginFailed      = fmt.Errorf("qobuz login failed")
	ErrCaptcha          = fmt.Errorf("captcha challenge detected")

	// API and service errors
	ErrAPIRequest       = fmt.Errorf("API request failed")
	ErrPlaylistNotFound = fmt.Errorf("playlist not found")
	ErrEmptyPlaylist    = fmt.Errorf("playlist has no tracks")

	// Browser automation errors
	ErrBrowser          = fmt.Errorf("browser automation failed")
	ErrElementNotFound  = fmt.Errorf("element not found")
	ErrPlaylistCreate   = fmt.Errorf("failed to create playlist")
	ErrNoResults        = fmt.Errorf("no search results")
	ErrScreenshotFailed = fmt.Errorf("screenshot failed")
	ErrNoCookies        = fmt.Errorf("no saved cookies")

	// Persistence errors
	ErrRecordNotFound  = fmt.Errorf("record not found")
	ErrHistoryDisabled = fmt.Errorf("run history is disabled")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
