package internalhttp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/BearBump/KickSync/internal/integrations/identity"
	"github.com/pkg/errors"
)

type Client struct {
	franchiseBaseURL string
	locationBaseURL  string
	tokens           *TokenSource
	httpc            *http.Client
}

var _ identity.Client = (*Client)(nil)

func New(franchiseBaseURL, locationBaseURL string, tokens *TokenSource) *Client {
	return &Client{
		franchiseBaseURL: strings.TrimRight(franchiseBaseURL, "/"),
		locationBaseURL:  strings.TrimRight(locationBaseURL, "/"),
		tokens:           tokens,
		httpc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) WithTimeout(d time.Duration) *Client {
	if d > 0 {
		c.httpc.Timeout = d
	}
	return c
}

type franchisesResp struct {
	Opcode     int                  `json:"opcode"`
	Franchises []identity.Franchise `json:"franchises"`
}

type regionsResp struct {
	Opcode  int               `json:"opcode"`
	Regions []identity.Region `json:"regions"`
}

func (c *Client) SearchFranchises(ctx context.Context, take int, search string) ([]identity.Franchise, error) {
	var r franchisesResp
	if err := c.get(ctx, c.franchiseBaseURL, "/franchises", take, search, identity.PermissionFranchiseList, &r); err != nil {
		return nil, errors.Wrap(err, "search franchises")
	}
	return r.Franchises, nil
}

func (c *Client) SearchRegions(ctx context.Context, take int, search string) ([]identity.Region, error) {
	var r regionsResp
	if err := c.get(ctx, c.locationBaseURL, "/regions", take, search, identity.PermissionRegionList, &r); err != nil {
		return nil, errors.Wrap(err, "search regions")
	}
	return r.Regions, nil
}

func (c *Client) get(ctx context.Context, baseURL, path string, take int, search string, perm identity.Permission, out any) error {
	token, err := c.tokens.Token(perm)
	if err != nil {
		return err
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return errors.Wrap(err, "parse base url")
	}
	u.Path = strings.TrimRight(u.Path, "/") + path

	q := u.Query()
	q.Set("take", strconv.Itoa(take))
	q.Set("search", search)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("identity http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode")
	}
	return nil
}
