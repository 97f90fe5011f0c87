// Package index fetches the remote HUD index, a small YAML document
// mapping HUD ids to their download sources.
package index

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/tf2hud/hudman/pkg/errors"
	"github.com/tf2hud/hudman/pkg/logging"
	"github.com/tf2hud/hudman/pkg/types"
	"gopkg.in/yaml.v3"
)

// maxIndexBytes bounds how much of an index document we are willing to
// read. An index is a few kilobytes; anything near this limit is wrong.
const maxIndexBytes = 4 << 20

// document is the wire shape of the index file.
type document struct {
	Huds []entry `yaml:"huds"`
}

type entry struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Download string `yaml:"download"`
	Version  string `yaml:"version"`
	Checksum string `yaml:"checksum"`
}

// Client fetches and decodes remote index documents.
type Client struct {
	httpClient *http.Client
}

// New returns a Client with a bounded request timeout.
func New(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Fetch downloads the index document at url and returns its descriptors.
// Entries without an id or a download URL are skipped with a warning.
func (c *Client) Fetch(ctx context.Context, url string) ([]types.HudDescriptor, error) {
	logger := logging.GetLogger("index")
	done := logging.LogOperationStart(logger, "fetch index")
	defer done()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrSourceUnreachable, "invalid index URL %q", url)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrap(ctx.Err(), errors.ErrCancelled, "index fetch cancelled")
		}
		return nil, errors.Wrapf(err, errors.ErrSourceUnreachable, "cannot reach index %q", url)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf(errors.ErrSourceUnreachable, "index %q returned %s", url, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxIndexBytes))
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrSourceUnreachable, "cannot read index %q", url)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, errors.ErrSourceUnreachable, "cannot parse index %q", url)
	}

	descriptors := make([]types.HudDescriptor, 0, len(doc.Huds))
	for _, e := range doc.Huds {
		if e.ID == "" || e.Download == "" {
			logger.Warn().Str("id", e.ID).Msg("Skipping incomplete index entry")
			continue
		}
		name := e.Name
		if name == "" {
			name = e.ID
		}
		descriptors = append(descriptors, types.HudDescriptor{
			ID:       e.ID,
			Name:     name,
			Source:   types.RemoteSource(e.Download),
			Version:  e.Version,
			Checksum: e.Checksum,
		})
	}

	logger.Info().Int("count", len(descriptors)).Str("url", url).Msg("Fetched index")
	return descriptors, nil
}
