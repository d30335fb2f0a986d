package seed

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/brettbedarf/webtree"
	"github.com/brettbedarf/webtree/internal/util"
)

// maxHTTPSeedSize bounds the body read from a remote seed
const maxHTTPSeedSize = 8 << 20

// HTTPClient is the part of [http.Client] an HTTPSource needs
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPSource loads a seed tree with a GET request
type HTTPSource struct {
	URL     string
	Headers map[string]string
	client  HTTPClient
}

// NewHTTPSource validates ref as an absolute http(s) URL
func NewHTTPSource(ref string) (Source, error) {
	return NewHTTPSourceWithClient(ref, http.DefaultClient)
}

// NewHTTPSourceWithClient is [NewHTTPSource] with a custom client
func NewHTTPSourceWithClient(ref string, client HTTPClient) (*HTTPSource, error) {
	ref = strings.TrimSpace(ref)
	u, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("invalid seed URL %q: %w", ref, err)
	}
	switch {
	case u.Scheme != "http" && u.Scheme != "https":
		return nil, fmt.Errorf("seed URL must be http or https: %q", ref)
	case u.Host == "":
		return nil, fmt.Errorf("seed URL has no host: %q", ref)
	case u.User != nil:
		return nil, fmt.Errorf("seed URL must not carry credentials")
	}
	return &HTTPSource{URL: u.String(), client: client}, nil
}

func (h *HTTPSource) Load(ctx context.Context) (webtree.Tree, error) {
	logger := util.GetLogger("seed.HTTPSource")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json, application/yaml;q=0.9")
	for k, v := range h.Headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetching seed %s: unexpected status %s", h.URL, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxHTTPSeedSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxHTTPSeedSize {
		return nil, fmt.Errorf("seed at %s exceeds %d bytes", h.URL, maxHTTPSeedSize)
	}

	t, err := Decode(data, h.format(resp.Header.Get("Content-Type")))
	if err != nil {
		logger.Error().Err(err).Str("url", h.URL).Msg("Failed to decode remote seed")
		return nil, err
	}
	logger.Debug().Str("url", h.URL).Int("entries", t.Count()).Msg("Remote seed loaded")
	return t, nil
}

// format prefers the response content type, then the URL extension, then JSON
func (h *HTTPSource) format(contentType string) Format {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		switch {
		case strings.Contains(mt, "yaml"):
			return YAML
		case strings.Contains(mt, "json"):
			return JSON
		}
	}
	if u, err := url.Parse(h.URL); err == nil {
		if f, err := FormatFromPath(u.Path); err == nil {
			return f
		}
	}
	return JSON
}
