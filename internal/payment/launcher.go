package payment

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Launcher attempts to open a wallet redirect target on the customer's
// device. Implementations report failure so the orchestrator can fall back
// from the deep link to the web URL.
type Launcher interface {
	Open(ctx context.Context, target string) error
}

// RedirectLauncher validates launch targets before handing them to the UI.
// A deep link must carry a non-web scheme; a web URL must be https and
// answer a HEAD probe. Either check failing means the target cannot open.
type RedirectLauncher struct {
	httpClient *http.Client
}

// NewRedirectLauncher constructs the production launcher.
func NewRedirectLauncher() *RedirectLauncher {
	return &RedirectLauncher{
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// Open validates the target.
func (l *RedirectLauncher) Open(ctx context.Context, target string) error {
	if target == "" {
		return fmt.Errorf("payment: empty launch target")
	}
	parsed, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("payment: malformed launch target: %w", err)
	}

	switch parsed.Scheme {
	case "":
		return fmt.Errorf("payment: launch target missing scheme")
	case "http":
		return fmt.Errorf("payment: insecure web launch target")
	case "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
		if err != nil {
			return fmt.Errorf("payment: probe launch target: %w", err)
		}
		resp, err := l.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("payment: launch target unreachable: %w", err)
		}
		resp.Body.Close()
		if resp.StatusCode >= 400 {
			return fmt.Errorf("payment: launch target answered %d", resp.StatusCode)
		}
		return nil
	default:
		// App deep link; the wallet app resolves it on the device.
		return nil
	}
}
