package datahandler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/ruteri/geodata-registry/api"
	"github.com/ruteri/geodata-registry/geodata"
)

// Client talks to the /api/data endpoints of a geodata server.
type Client struct {
	BaseURL string
	Client  *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  http.DefaultClient,
	}
}

func (c *Client) send(req *http.Request, out any) error {
	if c.Client == nil {
		c.Client = http.DefaultClient
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("could not request %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("could not read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", geodata.ErrFileNotFound, strings.TrimSpace(string(body)))
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("could not parse response: %w", err)
	}
	return nil
}

// Upload sends r as a multipart upload named name.
func (c *Client) Upload(ctx context.Context, name string, r io.Reader) (*geodata.UploadResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("could not read %s: %w", name, err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/data/upload", &buf)
	if err != nil {
		return nil, fmt.Errorf("could not initialize request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var res geodata.UploadResult
	if err := c.send(req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Encrypt(ctx context.Context, file string, useRSA bool) (*geodata.EncryptResult, error) {
	encoded, err := json.Marshal(api.EncryptRequest{File: file, UseRSA: useRSA})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/data/encrypt", bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("could not initialize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var res geodata.EncryptResult
	if err := c.send(req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Files(ctx context.Context) ([]geodata.FileInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/data/files", nil)
	if err != nil {
		return nil, fmt.Errorf("could not initialize request: %w", err)
	}

	var res api.FilesResponse
	if err := c.send(req, &res); err != nil {
		return nil, err
	}
	return res.Files, nil
}
