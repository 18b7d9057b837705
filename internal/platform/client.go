// Package platform talks to the platform REST API for identity, project
// membership and skill lookups.
package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kiranshivaraju/jobstore/internal/access"
)

// Sentinel errors for platform API failures.
var (
	ErrPlatformUnreachable = errors.New("platform api unreachable")
	ErrPlatformQueryError  = errors.New("platform api query error")
	ErrPlatformTimeout     = errors.New("platform api timeout")
)

// HTTPClient implements the identity, membership and skill lookups over HTTP.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPClient creates a new platform API client.
func NewHTTPClient(baseURL, token string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

// ResolveUserID maps an external user id onto the internal user id.
func (c *HTTPClient) ResolveUserID(ctx context.Context, externalID string) (string, error) {
	u := fmt.Sprintf("%s/users?%s", c.baseURL, url.Values{"externalId": {externalID}}.Encode())

	resp, err := c.get(ctx, u)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrPlatformQueryError, resp.StatusCode)
	}

	var users []platformUser
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		return "", fmt.Errorf("decoding users response: %w", err)
	}
	for _, usr := range users {
		if usr.ID != "" {
			return usr.ID, nil
		}
	}
	return "", fmt.Errorf("%w: %s", access.ErrUnknownUser, externalID)
}

// IsMember reports whether userID belongs to the project.
func (c *HTTPClient) IsMember(ctx context.Context, userID string, projectID int64) (bool, error) {
	u := fmt.Sprintf("%s/projects/%s/members/%s", c.baseURL,
		strconv.FormatInt(projectID, 10), url.PathEscape(userID))
	return c.exists(ctx, u)
}

// SkillExists reports whether the skill id is known to the platform.
func (c *HTTPClient) SkillExists(ctx context.Context, skillID string) (bool, error) {
	return c.exists(ctx, fmt.Sprintf("%s/skills/%s", c.baseURL, url.PathEscape(skillID)))
}

// exists treats 200 as present and 404 as absent.
func (c *HTTPClient) exists(ctx context.Context, u string) (bool, error) {
	resp, err := c.get(ctx, u)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("%w: status %d", ErrPlatformQueryError, resp.StatusCode)
	}
}

func (c *HTTPClient) get(ctx context.Context, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyError(err)
	}
	return resp, nil
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrPlatformTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrPlatformTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrPlatformUnreachable, err)
}

type platformUser struct {
	ID         string `json:"id"`
	ExternalID string `json:"externalId"`
}

// Compile-time checks that HTTPClient serves the lookups it is wired into.
var (
	_ access.IdentityResolver  = (*HTTPClient)(nil)
	_ access.MembershipChecker = (*HTTPClient)(nil)
)
