// Package pubchem resolves compound names to 3D structures via PUG REST.
// Clean Architecture: Adapter implementing ports.StructureService.
package pubchem

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/0xcro3dile/chemed-go/internal/domain/entities"
	"github.com/0xcro3dile/chemed-go/internal/domain/ports"
)

// DefaultBaseURL is the public PUG REST root.
const DefaultBaseURL = "https://pubchem.ncbi.nlm.nih.gov/rest/pug"

// minSDFLength rejects empty or stub SDF replies.
const minSDFLength = 20

// maxSDFBytes caps how much of an SDF reply is read.
const maxSDFBytes = 8 << 20

// Client implements ports.StructureService.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewClient creates a PubChem client.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

type cidResponse struct {
	IdentifierList struct {
		CID []int64 `json:"CID"`
	} `json:"IdentifierList"`
}

// Lookup resolves name to its first CID and fetches the 3D SDF record.
func (c *Client) Lookup(ctx context.Context, name string) (*entities.Structure, error) {
	cid, err := c.lookupCID(ctx, name)
	if err != nil {
		return nil, err
	}

	sdf, err := c.fetchSDF(ctx, cid)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("fetched structure",
		zap.String("name", name),
		zap.Int64("cid", cid),
		zap.String("size", humanize.Bytes(uint64(len(sdf)))),
	)
	return &entities.Structure{Name: name, CID: cid, SDF: sdf}, nil
}

func (c *Client) lookupCID(ctx context.Context, name string) (int64, error) {
	endpoint := c.baseURL + "/compound/name/" + url.PathEscape(name) + "/cids/JSON"
	resp, err := c.get(ctx, endpoint)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return 0, fmt.Errorf("no CID found for %q: %w", name, ports.ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return 0, fmt.Errorf("PubChem name lookup failed (%d)", resp.StatusCode)
	}

	var body cidResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decoding CID response: %w", err)
	}
	if len(body.IdentifierList.CID) == 0 || body.IdentifierList.CID[0] == 0 {
		return 0, fmt.Errorf("no CID found for %q: %w", name, ports.ErrNotFound)
	}
	return body.IdentifierList.CID[0], nil
}

func (c *Client) fetchSDF(ctx context.Context, cid int64) (string, error) {
	endpoint := c.baseURL + "/compound/cid/" + strconv.FormatInt(cid, 10) + "/SDF?record_type=3d"
	resp, err := c.get(ctx, endpoint)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("3D SDF fetch failed (%d)", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSDFBytes))
	if err != nil {
		return "", fmt.Errorf("reading SDF: %w", err)
	}
	if len(data) < minSDFLength {
		return "", fmt.Errorf("empty SDF returned for CID %d", cid)
	}
	return string(data), nil
}

func (c *Client) get(ctx context.Context, endpoint string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling PubChem: %w", err)
	}
	return resp, nil
}
