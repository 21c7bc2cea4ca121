package plannerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"planboard-backend/internal/models"
)

// A Client performs typed calls against a planboard server.
type Client struct {
	http     *http.Client
	endpoint *url.URL

	mu     sync.RWMutex
	bearer string
}

// NewDefaultClient returns a new Client with default HTTP client.
func NewDefaultClient(endpoint string) (*Client, error) {
	return NewClient(http.DefaultClient, endpoint)
}

// NewClient returns a new Client.
func NewClient(c *http.Client, endpoint string) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, errors.Wrap(err, "could not parse endpoint")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}
	return &Client{http: c, endpoint: u}, nil
}

// BearerToken returns the token sent with every request.
func (c *Client) BearerToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bearer
}

// SetBearerToken sets the token sent with every request.
func (c *Client) SetBearerToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bearer = token
}

// Login authenticates and keeps the returned token for later calls.
func (c *Client) Login(ctx context.Context, username, password string) (*models.LoginResponse, error) {
	var login models.LoginResponse
	err := c.do(ctx, http.MethodPost, "/api/login", nil, models.LoginRequest{Username: username, Password: password}, &login)
	if err != nil {
		return nil, err
	}
	c.SetBearerToken(login.Token)
	return &login, nil
}

func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/api/logout", nil, nil, nil); err != nil {
		return err
	}
	c.SetBearerToken("")
	return nil
}

func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodPost, "/api/register", nil, req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodGet, "/api/user", nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) ChangePassword(ctx context.Context, current, password string) error {
	return c.do(ctx, http.MethodPost, "/api/user/password", nil, models.ChangePasswordRequest{CurrentPassword: current, Password: password}, nil)
}

func (c *Client) List(ctx context.Context, opts models.ListOptions) ([]*models.ContentItem, error) {
	query := url.Values{}
	if opts.Stage != "" {
		query.Set("stage", string(opts.Stage))
	}
	if opts.ContentType != "" {
		query.Set("type", string(opts.ContentType))
	}
	if opts.Sort != "" {
		query.Set("sort", opts.Sort)
	}

	var items []*models.ContentItem
	if err := c.do(ctx, http.MethodGet, "/api/contents", query, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Client) Board(ctx context.Context, sortBy string) (models.Board, error) {
	query := url.Values{}
	if sortBy != "" {
		query.Set("sort", sortBy)
	}

	var board models.Board
	if err := c.do(ctx, http.MethodGet, "/api/contents/board", query, nil, &board); err != nil {
		return nil, err
	}
	return board, nil
}

// Calendar returns scheduled items grouped by day. Empty bounds are open.
func (c *Client) Calendar(ctx context.Context, from, to string) ([]models.CalendarDay, error) {
	query := url.Values{}
	if from != "" {
		query.Set("from", from)
	}
	if to != "" {
		query.Set("to", to)
	}

	var days []models.CalendarDay
	if err := c.do(ctx, http.MethodGet, "/api/contents/calendar", query, nil, &days); err != nil {
		return nil, err
	}
	return days, nil
}

func (c *Client) Get(ctx context.Context, id int64) (*models.ContentItem, error) {
	var item models.ContentItem
	if err := c.do(ctx, http.MethodGet, contentPath(id), nil, nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *Client) Create(ctx context.Context, req models.CreateContentRequest) (*models.ContentItem, error) {
	var item models.ContentItem
	if err := c.do(ctx, http.MethodPost, "/api/contents", nil, req, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *Client) Update(ctx context.Context, id int64, req models.UpdateContentRequest) (*models.ContentItem, error) {
	var item models.ContentItem
	if err := c.do(ctx, http.MethodPatch, contentPath(id), nil, req, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *Client) UpdateStage(ctx context.Context, id int64, stage models.Stage) (*models.ContentItem, error) {
	var item models.ContentItem
	if err := c.do(ctx, http.MethodPatch, contentPath(id)+"/stage", nil, models.UpdateStageRequest{Stage: string(stage)}, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, contentPath(id), nil, nil, nil)
}

// WebSocketURL returns the push channel address derived from the endpoint.
func (c *Client) WebSocketURL() string {
	u := *c.endpoint
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = path.Join(u.Path, "/ws")
	u.RawQuery = ""
	return u.String()
}

func contentPath(id int64) string {
	return "/api/contents/" + strconv.FormatInt(id, 10)
}

func (c *Client) do(ctx context.Context, method, p string, query url.Values, payload, out any) error {
	u := *c.endpoint
	u.Path = path.Join(u.Path, p)
	u.RawQuery = query.Encode()

	//
	// Build request
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return errors.Wrap(err, "could not serialize payload")
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return errors.Wrap(err, "could not build request")
	}
	req.Header.Add("Accept", "application/json")
	if payload != nil {
		req.Header.Add("Content-Type", "application/json")
	}
	if bearer := c.BearerToken(); bearer != "" {
		req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", bearer))
	}

	//
	// Perform request
	res, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "could not perform request")
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		return parseAPIError(res.Body, res.StatusCode)
	}

	//
	// Process response
	if out == nil || res.StatusCode == http.StatusNoContent {
		return nil
	}
	if ct := res.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		return errors.Errorf("unexpected content type %q", ct)
	}
	return errors.Wrap(json.NewDecoder(res.Body).Decode(out), "could not parse response")
}
