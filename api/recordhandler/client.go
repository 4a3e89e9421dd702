package recordhandler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ruteri/geodata-registry/api"
	"github.com/ruteri/geodata-registry/interfaces"
)

// Client is a RecordStore backed by a remote geodata server. Error
// responses are mapped back to the record store sentinel errors.
type Client struct {
	BaseURL string
	Client  *http.Client
}

var _ interfaces.RecordStore = (*Client)(nil)

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  http.DefaultClient,
	}
}

// errorFor maps a non-2xx response to an error matching the server's
// status mapping.
func errorFor(status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	switch status {
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", interfaces.ErrDuplicateID, msg)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", interfaces.ErrRecordNotFound, msg)
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s", interfaces.ErrUnauthorized, msg)
	default:
		return fmt.Errorf("server returned %d: %s", status, msg)
	}
}

func (c *Client) do(ctx context.Context, method, path string, caller *interfaces.Identity, in any, out any) error {
	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("could not encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("could not initialize request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if caller != nil {
		req.Header.Set(api.CallerHeader, caller.String())
	}

	if c.Client == nil {
		c.Client = http.DefaultClient
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("could not request %s: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("could not read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return errorFor(resp.StatusCode, respBody)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("could not parse response: %w", err)
	}
	return nil
}

// StoreRecord submits a full store request. The server generates the id
// when req.DataID is empty.
func (c *Client) StoreRecord(ctx context.Context, caller interfaces.Identity, req api.StoreRequest) (*api.StoreResponse, error) {
	var resp api.StoreResponse
	if err := c.do(ctx, http.MethodPost, "/api/blockchain/store", &caller, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Store(ctx context.Context, caller interfaces.Identity, id string, cipherHash string, metadataHash string) error {
	_, err := c.StoreRecord(ctx, caller, api.StoreRequest{
		DataID:       id,
		CipherHash:   cipherHash,
		MetadataHash: metadataHash,
	})
	return err
}

func (c *Client) Retrieve(ctx context.Context, caller interfaces.Identity, id string) (interfaces.Record, error) {
	var resp api.RetrieveResponse
	if err := c.do(ctx, http.MethodGet, "/api/blockchain/retrieve/"+url.PathEscape(id), &caller, nil, &resp); err != nil {
		return interfaces.Record{}, err
	}
	return interfaces.Record{
		ID:           resp.DataID,
		CipherHash:   resp.CipherHash,
		MetadataHash: resp.MetadataHash,
		Timestamp:    resp.Timestamp,
		Owner:        resp.Owner,
	}, nil
}

func (c *Client) UpdateData(ctx context.Context, caller interfaces.Identity, id string, cipherHash string, metadataHash string) error {
	return c.do(ctx, http.MethodPost, "/api/blockchain/update", &caller, api.UpdateRequest{
		DataID:       id,
		CipherHash:   cipherHash,
		MetadataHash: metadataHash,
	}, nil)
}

func (c *Client) GrantAccess(ctx context.Context, caller interfaces.Identity, id string, grantee interfaces.Identity) error {
	return c.do(ctx, http.MethodPost, "/api/blockchain/access/grant", &caller, api.AccessRequest{DataID: id, Address: grantee.String()}, nil)
}

func (c *Client) RevokeAccess(ctx context.Context, caller interfaces.Identity, id string, grantee interfaces.Identity) error {
	return c.do(ctx, http.MethodPost, "/api/blockchain/access/revoke", &caller, api.AccessRequest{DataID: id, Address: grantee.String()}, nil)
}

func (c *Client) CheckAccess(ctx context.Context, id string, who interfaces.Identity) (bool, error) {
	query := url.Values{"data_id": {id}, "address": {who.String()}}
	var resp api.CheckAccessResponse
	if err := c.do(ctx, http.MethodGet, "/api/blockchain/access/check?"+query.Encode(), nil, nil, &resp); err != nil {
		return false, err
	}
	return resp.HasAccess, nil
}

func (c *Client) ListAllIDs(ctx context.Context) ([]string, error) {
	return c.listIDs(ctx, nil, false)
}

func (c *Client) ListMyIDs(ctx context.Context, caller interfaces.Identity) ([]string, error) {
	return c.listIDs(ctx, &caller, true)
}

func (c *Client) listIDs(ctx context.Context, caller *interfaces.Identity, owned bool) ([]string, error) {
	var resp api.DataIDsResponse
	if err := c.do(ctx, http.MethodGet, "/api/blockchain/data?owned="+strconv.FormatBool(owned), caller, nil, &resp); err != nil {
		return nil, err
	}
	return resp.DataIDs, nil
}
