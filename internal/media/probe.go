package media

import (
	"context"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// FSProber checks assets against a filesystem, usually os.DirFS of the
// asset directory.
type FSProber struct {
	FS fs.FS
}

// Exists reports whether assetPath names a regular file.
func (p FSProber) Exists(_ context.Context, assetPath string) bool {
	if !fs.ValidPath(assetPath) {
		return false
	}
	info, err := fs.Stat(p.FS, assetPath)
	return err == nil && info.Mode().IsRegular()
}

// HTTPProber checks assets with HEAD requests against a base URL.
type HTTPProber struct {
	client  *http.Client
	baseURL string
	logger  *slog.Logger
}

// NewHTTPProber creates a prober for assets served under baseURL.
func NewHTTPProber(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPProber {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPProber{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// Exists issues a HEAD request; any 2xx is a hit. Transport errors are misses.
func (p *HTTPProber) Exists(ctx context.Context, assetPath string) bool {
	url := p.baseURL + "/" + assetPath
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Debug("asset probe failed", "url", url, "error", err)
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
