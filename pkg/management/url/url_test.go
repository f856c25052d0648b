/*
This file is part of Fleet Rollout.

Copyright (C) 2025-2026 The Fleet Rollout Authors.
*/

package url

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("URL building", func() {
	It("builds local URLs", func() {
		Expect(Local(PathHealth, StatusPort)).To(Equal("http://localhost:8000/healthz"))
		Expect(Local("rollout/upgrades-per-minute", 9000)).
			To(Equal("http://localhost:9000/rollout/upgrades-per-minute"))
	})

	It("joins paths to a base URL", func() {
		Expect(Join("https://control-plane:8443/", PathInstances)).
			To(Equal("https://control-plane:8443/api/v1/instances"))
		Expect(Join("https://control-plane:8443", fmt.Sprintf(PathZoneOS, "prod.a", "proxy"))).
			To(Equal("https://control-plane:8443/api/v1/zones/prod.a/node-types/proxy/os"))
	})
})

var _ = Describe("HTTP fallback", func() {
	It("downgrades HTTPS requests sent to a plain HTTP server, keeping the body", func() {
		var received string
		server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			received = string(body)
		}))
		defer server.Close()

		target := strings.Replace(server.URL, "http://", "https://", 1)
		req, err := http.NewRequest(http.MethodPost, target, strings.NewReader(`{"version":"7.2.0"}`))
		Expect(err).ToNot(HaveOccurred())

		resp, err := DoWithHTTPFallback(server.Client(), req)
		Expect(err).ToNot(HaveOccurred())
		Expect(resp.Body.Close()).To(Succeed())
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(received).To(Equal(`{"version":"7.2.0"}`))
	})
})
