// Package coreapi reads organizational reference data from the directory service.
package coreapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spec-kit/timeoff-service/internal/domain"
)

const (
	usersPath       = "api/users"
	departmentsPath = "api/departments"
	gradesPath      = "api/grades"

	maxErrorBody = 512
)

// Client fetches users, departments and grades over HTTP.
type Client struct {
	baseURL *url.URL
	http    *http.Client
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("core api %s: unexpected status %d: %s", e.Path, e.StatusCode, e.Body)
}

// NewClient builds a client rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse core api url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("core api url %q must be absolute", baseURL)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{baseURL: parsed, http: &http.Client{Timeout: timeout}}, nil
}

func (c *Client) FetchUsers(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	if err := c.getJSON(ctx, usersPath, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *Client) FetchDepartments(ctx context.Context) ([]domain.Department, error) {
	var departments []domain.Department
	if err := c.getJSON(ctx, departmentsPath, &departments); err != nil {
		return nil, err
	}
	return departments, nil
}

// FetchGrades returns grades as published upstream; IsManagerGrade is left unset.
func (c *Client) FetchGrades(ctx context.Context) ([]domain.Grade, error) {
	var grades []domain.Grade
	if err := c.getJSON(ctx, gradesPath, &grades); err != nil {
		return nil, err
	}
	return grades, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	endpoint := c.baseURL.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("core api %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Path: path, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
