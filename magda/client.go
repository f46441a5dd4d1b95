package magda

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-hclog"
)

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNotFound         = errors.New("not found")
	ErrRequestFailed    = errors.New("authorization api request failed")
)

// Client talks to the Magda authorization API.  It is safe for concurrent
// use; all fields are read-only after NewClient.
type Client struct {
	baseURL   string
	jwtSecret []byte
	userID    string
	client    *http.Client
	logger    hclog.Logger
}

// NewClient creates an authorization API client.  baseURL is the API root
// (e.g. http://localhost:6104/v0), jwtSecret signs the X-Magda-Session
// header and userID is the service account the plugin acts as.
func NewClient(baseURL, jwtSecret, userID string, timeout time.Duration, logger hclog.Logger) (*Client, error) {
	const op = "magda.NewClient"
	if baseURL == "" {
		return nil, fmt.Errorf("%s: auth api base URL is empty: %w", op, ErrInvalidParameter)
	}
	if jwtSecret == "" {
		return nil, fmt.Errorf("%s: jwt secret is empty: %w", op, ErrInvalidParameter)
	}
	if userID == "" {
		return nil, fmt.Errorf("%s: service user id is empty: %w", op, ErrInvalidParameter)
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Client{
		baseURL:   baseURL,
		jwtSecret: []byte(jwtSecret),
		userID:    userID,
		client: &http.Client{
			Timeout:   timeout,
			Transport: cleanhttp.DefaultPooledTransport(),
		},
		logger: logger,
	}, nil
}

// LookupUser finds the user previously created for the given provider key
// and subject id.  Returns ErrNotFound when no such user exists yet.
func (c *Client) LookupUser(ctx context.Context, source, sourceID string) (*User, error) {
	const op = "Client.LookupUser"
	q := url.Values{}
	q.Set("source", source)
	q.Set("sourceId", sourceID)
	var user User
	if err := c.do(ctx, http.MethodGet, "/private/users/lookup?"+q.Encode(), nil, &user); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &user, nil
}

// CreateUser creates a new Magda user and returns the stored record,
// including its assigned id.
func (c *Client) CreateUser(ctx context.Context, user User) (*User, error) {
	const op = "Client.CreateUser"
	var created User
	if err := c.do(ctx, http.MethodPost, "/private/users", user, &created); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &created, nil
}

// CreateOrGetUser returns the existing user matching the given record's
// source and source id, creating it when absent.
func (c *Client) CreateOrGetUser(ctx context.Context, user User) (*User, bool, error) {
	const op = "Client.CreateOrGetUser"
	existing, err := c.LookupUser(ctx, user.Source, user.SourceID)
	switch {
	case err == nil:
		return existing, false, nil
	case errors.Is(err, ErrNotFound):
		created, err := c.CreateUser(ctx, user)
		if err != nil {
			return nil, false, fmt.Errorf("%s: %w", op, err)
		}
		return created, true, nil
	default:
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
}

// GetOrgUnitsByName returns all org units with exactly the given name.
func (c *Client) GetOrgUnitsByName(ctx context.Context, name string) ([]OrgUnit, error) {
	const op = "Client.GetOrgUnitsByName"
	q := url.Values{}
	q.Set("orgUnitsName", name)
	var nodes []OrgUnit
	if err := c.do(ctx, http.MethodGet, "/public/orgUnits?"+q.Encode(), nil, &nodes); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return nodes, nil
}

// GetRootOrgUnit returns the root node of the org hierarchy.
func (c *Client) GetRootOrgUnit(ctx context.Context) (*OrgUnit, error) {
	const op = "Client.GetRootOrgUnit"
	var root OrgUnit
	if err := c.do(ctx, http.MethodGet, "/public/orgUnits/root", nil, &root); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &root, nil
}

// CreateOrgUnit creates a new org unit under the given parent.
func (c *Client) CreateOrgUnit(ctx context.Context, parentID string, node OrgUnit) (*OrgUnit, error) {
	const op = "Client.CreateOrgUnit"
	if parentID == "" {
		return nil, fmt.Errorf("%s: parent org unit id is empty: %w", op, ErrInvalidParameter)
	}
	var created OrgUnit
	path := fmt.Sprintf("/public/orgUnits/%s/insert", url.PathEscape(parentID))
	if err := c.do(ctx, http.MethodPost, path, node, &created); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &created, nil
}

// AddUserRoles grants the given roles to a user.
func (c *Client) AddUserRoles(ctx context.Context, userID string, roleIDs []string) error {
	const op = "Client.AddUserRoles"
	if userID == "" {
		return fmt.Errorf("%s: user id is empty: %w", op, ErrInvalidParameter)
	}
	if len(roleIDs) == 0 {
		return nil
	}
	path := fmt.Sprintf("/public/users/%s/roles", url.PathEscape(userID))
	if err := c.do(ctx, http.MethodPost, path, roleIDs, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// do runs one signed request against the authorization API and decodes the
// JSON response into out (when non-nil).
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("unable to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("unable to build request: %w", err)
	}
	token, err := c.sessionToken()
	if err != nil {
		return err
	}
	req.Header.Set("X-Magda-Session", token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("authorization api request", "method", method, "path", path)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s %s returned %d: %s", ErrRequestFailed, method, path, resp.StatusCode, detail)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: unable to decode response: %v", ErrRequestFailed, err)
	}
	return nil
}

// sessionToken builds the short-lived JWT Magda's internal APIs expect in
// the X-Magda-Session header.
func (c *Client) sessionToken() (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"userId": c.userID,
		"iat":    now.Unix(),
		"exp":    now.Add(2 * time.Minute).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("unable to sign session token: %w", err)
	}
	return token, nil
}
