/*
This file is part of Fleet Rollout.

Copyright (C) 2025-2026 The Fleet Rollout Authors.
*/

// Package url holds the constants for webserver routing, both for the
// endpoints served by the manager and for the control plane API it calls
package url

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/fleetrollout/fleet-rollout/pkg/management/log"
)

const (
	// StatusPort is the port of the manager web server
	StatusPort int = 8000

	// PathHealth is the URL path for Health State
	PathHealth string = "/healthz"

	// PathMetrics is the URL path for Metrics
	PathMetrics string = "/metrics"

	// PathUpgradesPerMinute is the URL path to read and change the
	// instance upgrade rate
	PathUpgradesPerMinute string = "/rollout/upgrades-per-minute"
)

// Control plane API paths
const (
	// PathInstances lists the tenant instances
	PathInstances string = "/api/v1/instances"

	// PathInstanceCancel cancels a change of an instance
	PathInstanceCancel string = "/api/v1/instances/%s/cancel"

	// PathInstanceForce forces a platform change of an instance
	PathInstanceForce string = "/api/v1/instances/%s/force"

	// PathZoneNodes lists the nodes of a component in a zone
	PathZoneNodes string = "/api/v1/zones/%s/components/%s/nodes"

	// PathZoneWanted is the version wanted for a component in a zone
	PathZoneWanted string = "/api/v1/zones/%s/components/%s/wanted"

	// PathZoneDeploy deploys a component in a zone
	PathZoneDeploy string = "/api/v1/zones/%s/components/%s/deploy"

	// PathZoneOS is the OS version wanted for a node type in a zone
	PathZoneOS string = "/api/v1/zones/%s/node-types/%s/os"
)

// Local builds an http request pointing to localhost
func Local(path string, port int) string {
	return build("http", fmt.Sprintf("localhost:%d", port), path)
}

// Join appends a path to a base URL like "https://control-plane:8443/"
func Join(base, path string) string {
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(path, "/")
}

func build(scheme, host, path string) string {
	return fmt.Sprintf("%s://%s/%s", scheme, host, strings.TrimPrefix(path, "/"))
}

// DoWithHTTPFallback perform a http.Request. In case of a HTTPS request returning ErrSchemeMismatch,
// it retries it using plain HTTP
func DoWithHTTPFallback(client *http.Client, req *http.Request) (*http.Response, error) {
	resp, err := client.Do(req)
	if req.URL.Scheme == "https" && errors.Is(err, http.ErrSchemeMismatch) {
		ctx := req.Context()
		contextLog := log.FromContext(ctx)
		reqHTTP := req.Clone(ctx)
		reqHTTP.URL.Scheme = "http"
		if req.GetBody != nil {
			if reqHTTP.Body, err = req.GetBody(); err != nil {
				return nil, err
			}
		}
		contextLog.Warning("Downgrading HTTPS connection to HTTP", "URL", reqHTTP.URL)
		resp, err = client.Do(reqHTTP)
	}
	return resp, err
}
