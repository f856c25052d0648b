/*
This file is part of Fleet Rollout.

Copyright (C) 2025-2026 The Fleet Rollout Authors.
*/

// Package controlplane contains the client of the control plane API,
// which owns the tenant instances, the deployment jobs and the hosts
package controlplane

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"time"

	"github.com/avast/retry-go/v4"

	apiv1 "github.com/fleetrollout/fleet-rollout/api/v1"
	"github.com/fleetrollout/fleet-rollout/pkg/management/log"
	"github.com/fleetrollout/fleet-rollout/pkg/management/url"
	"github.com/fleetrollout/fleet-rollout/pkg/versions"
)

const (
	// DefaultTimeout bounds every request to the control plane
	DefaultTimeout = 30 * time.Second

	readAttempts = 3
	readDelay    = 200 * time.Millisecond
)

// StatusError is returned when the control plane answers with an
// unexpected HTTP status
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// IsNotFound is true when err is a 404 answer
func IsNotFound(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound
}

func isRetriable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= http.StatusInternalServerError
	}
	return !errors.Is(err, context.Canceled)
}

// Client talks to the control plane API. It implements the
// InstanceSource, DeploymentTrigger, NodeRepository and
// ComponentDeployer collaborators of the controllers.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

// NewClient creates a new Client for the control plane at baseURL
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{},
		timeout:    timeout,
	}
}

type versionMessage struct {
	Version versions.Version `json:"version"`
}

type cancelMessage struct {
	Kind   apiv1.ChangeKind `json:"kind"`
	Reason string           `json:"reason"`
}

// ListInstances implements controllers.InstanceSource
func (c *Client) ListInstances(ctx context.Context) ([]apiv1.TenantInstance, error) {
	var result []apiv1.TenantInstance
	err := c.read(ctx, url.PathInstances, &result)
	return result, err
}

// Cancel implements controllers.DeploymentTrigger
func (c *Client) Cancel(ctx context.Context, id apiv1.InstanceID, kind apiv1.ChangeKind, reason string) error {
	return c.do(ctx, http.MethodPost, path(url.PathInstanceCancel, string(id)),
		cancelMessage{Kind: kind, Reason: reason}, nil)
}

// ForceChange implements controllers.DeploymentTrigger
func (c *Client) ForceChange(ctx context.Context, id apiv1.InstanceID, version versions.Version) error {
	return c.do(ctx, http.MethodPost, path(url.PathInstanceForce, string(id)),
		versionMessage{Version: version}, nil)
}

// ListNodes implements controllers.NodeRepository
func (c *Client) ListNodes(ctx context.Context, zone apiv1.ZoneName, component string) ([]apiv1.Node, error) {
	var result []apiv1.Node
	err := c.read(ctx, path(url.PathZoneNodes, string(zone), component), &result)
	return result, err
}

// WantedVersion implements controllers.NodeRepository. A component
// which was never deployed has no wanted version.
func (c *Client) WantedVersion(
	ctx context.Context,
	zone apiv1.ZoneName,
	component string,
) (versions.Version, error) {
	return c.readVersion(ctx, path(url.PathZoneWanted, string(zone), component))
}

// WantedOSVersion implements controllers.NodeRepository
func (c *Client) WantedOSVersion(
	ctx context.Context,
	zone apiv1.ZoneName,
	nodeType apiv1.NodeType,
) (versions.Version, error) {
	return c.readVersion(ctx, path(url.PathZoneOS, string(zone), string(nodeType)))
}

// UpgradeOS implements controllers.NodeRepository
func (c *Client) UpgradeOS(
	ctx context.Context,
	zone apiv1.ZoneName,
	nodeType apiv1.NodeType,
	target apiv1.VersionTarget,
) error {
	return c.do(ctx, http.MethodPut, path(url.PathZoneOS, string(zone), string(nodeType)), target, nil)
}

// Deploy implements controllers.ComponentDeployer
func (c *Client) Deploy(
	ctx context.Context,
	zone apiv1.ZoneName,
	component string,
	target apiv1.VersionTarget,
) error {
	return c.do(ctx, http.MethodPost, path(url.PathZoneDeploy, string(zone), component), target, nil)
}

func (c *Client) readVersion(ctx context.Context, requestPath string) (versions.Version, error) {
	var result versionMessage
	err := c.read(ctx, requestPath, &result)
	if IsNotFound(err) {
		return versions.Version{}, nil
	}
	return result.Version, err
}

// read runs an idempotent GET request, retrying transient failures
func (c *Client) read(ctx context.Context, requestPath string, response interface{}) error {
	return retry.Do(
		func() error {
			return c.do(ctx, http.MethodGet, requestPath, nil, response)
		},
		retry.Context(ctx),
		retry.Attempts(readAttempts),
		retry.Delay(readDelay),
		retry.DelayType(retry.FixedDelay),
		retry.RetryIf(isRetriable),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(attempt uint, err error) {
			log.FromContext(ctx).Debug("Retrying control plane request",
				"path", requestPath, "attempt", attempt, "error", err.Error())
		}),
	)
}

func (c *Client) do(
	ctx context.Context,
	method, requestPath string,
	request, response interface{},
) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if request != nil {
		js, err := json.Marshal(request)
		if err != nil {
			return err
		}
		body = bytes.NewReader(js)
	}

	req, err := http.NewRequestWithContext(ctx, method, url.Join(c.baseURL, requestPath), body)
	if err != nil {
		return err
	}
	if request != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := url.DoWithHTTPFallback(c.httpClient, req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		message, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{
			Method:     method,
			Path:       requestPath,
			StatusCode: resp.StatusCode,
			Body:       string(bytes.TrimSpace(message)),
		}
	}

	if response == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(response)
}

// path fills a path template escaping every element
func path(template string, elements ...string) string {
	escaped := make([]interface{}, 0, len(elements))
	for _, element := range elements {
		escaped = append(escaped, neturl.PathEscape(element))
	}
	return fmt.Sprintf(template, escaped...)
}
