package platform

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rflorenc/pds-migration-workbench/internal/models"
)

// XRPCClient is a Client speaking XRPC over HTTP with a bearer session token.
type XRPCClient struct {
	baseURL     string
	host        string
	accessToken string
	httpClient  *http.Client
}

// NewClient creates an XRPCClient from a Connection.
func NewClient(conn *models.Connection) *XRPCClient {
	transport := &http.Transport{}
	if conn.Insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &XRPCClient{
		baseURL:     conn.BaseURL(),
		host:        conn.Host,
		accessToken: conn.AccessToken,
		httpClient:  &http.Client{Transport: transport},
	}
}

func (c *XRPCClient) Host() string { return c.host }

// call performs one XRPC request. Only transport failures produce an error;
// the HTTP status is always returned alongside the body.
func (c *XRPCClient) call(ctx context.Context, method, nsid string, params url.Values, body io.Reader, contentType string) (int, []byte, error) {
	u := c.baseURL + "/xrpc/" + nsid
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", method, nsid, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("reading %s response: %w", nsid, err)
	}
	return resp.StatusCode, data, nil
}

func (c *XRPCClient) query(ctx context.Context, nsid string, params url.Values) (int, []byte, error) {
	return c.call(ctx, http.MethodGet, nsid, params, nil, "")
}

func (c *XRPCClient) procedure(ctx context.Context, nsid string, payload any) (int, []byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshaling body: %w", err)
	}
	return c.call(ctx, http.MethodPost, nsid, nil, bytes.NewReader(data), "application/json")
}

// decodeOK unmarshals body into dest when status is 2xx.
func decodeOK(nsid string, status int, body []byte, dest any) error {
	if status < 200 || status >= 300 {
		return nil
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("parsing %s response: %w", nsid, err)
	}
	return nil
}

// DescribeServer combines the health endpoint (version) with describeServer
// (capabilities and limits).
func (c *XRPCClient) DescribeServer(ctx context.Context) (*models.ServerConfiguration, error) {
	status, body, err := c.query(ctx, "_health", nil)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("_health: HTTP %d: %s", status, truncate(string(body), 200))
	}
	health, err := ParseHealth(body)
	if err != nil {
		return nil, err
	}

	status, body, err = c.query(ctx, "com.atproto.server.describeServer", nil)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("describeServer: HTTP %d: %s", status, truncate(string(body), 200))
	}
	desc, err := ParseDescribeServer(body)
	if err != nil {
		return nil, err
	}
	return desc.ToServerConfiguration(c.host, health.Version), nil
}

func (c *XRPCClient) Identity(ctx context.Context) (string, error) {
	status, body, err := c.query(ctx, "com.atproto.server.getSession", nil)
	if err != nil {
		return "", err
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return "", fmt.Errorf("getSession: %w", ErrUnauthorized)
	}
	if status < 200 || status >= 300 {
		return "", fmt.Errorf("getSession: HTTP %d: %s", status, truncate(string(body), 200))
	}
	var session struct {
		DID    string `json:"did"`
		Handle string `json:"handle"`
	}
	if err := json.Unmarshal(body, &session); err != nil {
		return "", fmt.Errorf("parsing getSession response: %w", err)
	}
	if session.DID == "" {
		return "", fmt.Errorf("getSession: response missing did")
	}
	return session.DID, nil
}

func (c *XRPCClient) CreateRecord(ctx context.Context, collection, rkey string, value any) (*RecordResponse, error) {
	did, err := c.Identity(ctx)
	if err != nil {
		return nil, err
	}
	payload := map[string]any{
		"repo":       did,
		"collection": collection,
		"record":     value,
	}
	if rkey != "" {
		payload["rkey"] = rkey
	}
	const nsid = "com.atproto.repo.createRecord"
	status, body, err := c.procedure(ctx, nsid, payload)
	if err != nil {
		return nil, err
	}
	resp := &RecordResponse{Response: Response{StatusCode: status}}
	if err := decodeOK(nsid, status, body, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *XRPCClient) DeleteRecord(ctx context.Context, collection, rkey string) (*Response, error) {
	did, err := c.Identity(ctx)
	if err != nil {
		return nil, err
	}
	status, _, err := c.procedure(ctx, "com.atproto.repo.deleteRecord", map[string]any{
		"repo":       did,
		"collection": collection,
		"rkey":       rkey,
	})
	if err != nil {
		return nil, err
	}
	return &Response{StatusCode: status}, nil
}

func (c *XRPCClient) GetProfile(ctx context.Context, actor string) (*ProfileResponse, error) {
	const nsid = "app.bsky.actor.getProfile"
	status, body, err := c.query(ctx, nsid, url.Values{"actor": {actor}})
	if err != nil {
		return nil, err
	}
	resp := &ProfileResponse{Response: Response{StatusCode: status}}
	if resp.OK() {
		var p Profile
		if err := decodeOK(nsid, status, body, &p); err != nil {
			return nil, err
		}
		resp.Profile = &p
	}
	return resp, nil
}

func (c *XRPCClient) GetFollows(ctx context.Context, actor string, limit int, cursor string) (*FollowsResponse, error) {
	const nsid = "app.bsky.graph.getFollows"
	params := url.Values{"actor": {actor}, "limit": {strconv.Itoa(limit)}}
	if cursor != "" {
		params.Set("cursor", cursor)
	}
	status, body, err := c.query(ctx, nsid, params)
	if err != nil {
		return nil, err
	}
	resp := &FollowsResponse{Response: Response{StatusCode: status}}
	if err := decodeOK(nsid, status, body, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *XRPCClient) GetAuthorFeed(ctx context.Context, actor string, limit int) (*FeedResponse, error) {
	const nsid = "app.bsky.feed.getAuthorFeed"
	status, body, err := c.query(ctx, nsid, url.Values{"actor": {actor}, "limit": {strconv.Itoa(limit)}})
	if err != nil {
		return nil, err
	}
	resp := &FeedResponse{Response: Response{StatusCode: status}}
	if resp.OK() {
		var page struct {
			Feed []struct {
				Post Post `json:"post"`
			} `json:"feed"`
		}
		if err := decodeOK(nsid, status, body, &page); err != nil {
			return nil, err
		}
		for _, item := range page.Feed {
			resp.Posts = append(resp.Posts, item.Post)
		}
	}
	return resp, nil
}

func (c *XRPCClient) ExportRepository(ctx context.Context, did string) ([]byte, error) {
	status, body, err := c.query(ctx, "com.atproto.sync.getRepo", url.Values{"did": {did}})
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("getRepo: HTTP %d: %s", status, truncate(string(body), 200))
	}
	return body, nil
}

func (c *XRPCClient) ImportRepository(ctx context.Context, car []byte) (*Response, error) {
	status, _, err := c.call(ctx, http.MethodPost, "com.atproto.repo.importRepo", nil, bytes.NewReader(car), "application/vnd.ipld.car")
	if err != nil {
		return nil, err
	}
	return &Response{StatusCode: status}, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
