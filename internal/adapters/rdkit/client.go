// Package rdkit talks to the RDKit depiction sidecar.
// Clean Architecture: Adapter implementing ports.MoleculeRenderer.
// The sidecar is a small Python service; it can be started as a subprocess.
package rdkit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/0xcro3dile/chemed-go/internal/domain/entities"
)

// Client implements ports.MoleculeRenderer over HTTP.
type Client struct {
	serviceURL string
	client     *http.Client
	logger     *zap.Logger
}

// NewClient creates a client for the service at serviceURL.
func NewClient(serviceURL string, logger *zap.Logger) *Client {
	if serviceURL == "" {
		serviceURL = "http://localhost:5000"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		serviceURL: serviceURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// renderResponse is the service's /render reply.
type renderResponse struct {
	URL   string `json:"url"`
	Name  string `json:"name"`
	Error string `json:"error,omitempty"`
}

// Render asks the service to draw smiles and returns a PNG data URL.
func (c *Client) Render(ctx context.Context, smiles string) (*entities.Rendering, error) {
	endpoint := c.serviceURL + "/render?" + url.Values{"name": {smiles}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling render service: %w", err)
	}
	defer resp.Body.Close()

	var result renderResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response (status %d): %w", resp.StatusCode, err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("render service: %s", result.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("render service returned status %d", resp.StatusCode)
	}
	if result.URL == "" {
		return nil, errors.New("render service returned no image")
	}

	return &entities.Rendering{Name: result.Name, ImageURL: result.URL}, nil
}

// IsServiceHealthy checks if the service is running.
func (c *Client) IsServiceHealthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serviceURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// StartService runs the Python service script as a subprocess bound to ctx
// and waits up to readyTimeout for /health. The returned func stops it.
func (c *Client) StartService(ctx context.Context, script string, readyTimeout time.Duration) (func(), error) {
	if _, err := os.Stat(script); err != nil {
		return nil, fmt.Errorf("render service script: %w", err)
	}

	cmd := exec.CommandContext(ctx, "python3", script)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting render service: %w", err)
	}

	stop := func() {
		if cmd.Process != nil {
			cmd.Process.Kill()
		}
		cmd.Wait()
	}

	deadline := time.Now().Add(readyTimeout)
	for !c.IsServiceHealthy(ctx) {
		if time.Now().After(deadline) {
			stop()
			return nil, fmt.Errorf("render service not healthy after %s", readyTimeout)
		}
		select {
		case <-ctx.Done():
			stop()
			return nil, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}

	c.logger.Info("render service started", zap.String("script", script), zap.Int("pid", cmd.Process.Pid))
	return stop, nil
}
