package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/net/html"

	"github.com/brensch/edgarfsn/internal/period"
	"github.com/brensch/edgarfsn/internal/util"
)

// Discover looks for a link to p's archive on the configured index page and
// returns it as an absolute URL. It returns "" when the page has no such link.
// At least one historical period has been published away from the usual path.
func (f *Fetcher) Discover(ctx context.Context, p period.Period) (string, error) {
	index := f.cfg.Archive.IndexURL
	base, err := url.Parse(index)
	if err != nil {
		return "", fmt.Errorf("parse index url %s: %w", index, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, index, nil)
	if err != nil {
		return "", fmt.Errorf("create request for %s: %w", index, err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	body, err := util.DownloadFile(f.client, req)
	if err != nil {
		return "", fmt.Errorf("discover %s: %w", p, err)
	}
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse index html %s: %w", index, err)
	}

	for _, href := range util.ParseLinks(root, p.ArchiveName()) {
		ref, err := url.Parse(href)
		if err != nil {
			f.logger.Debug("Ignoring unparseable link.", "href", href, "error", err)
			continue
		}
		return base.ResolveReference(ref).String(), nil
	}
	return "", nil
}
