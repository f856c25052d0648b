/*
This file is part of Fleet Rollout.

Copyright (C) 2025-2026 The Fleet Rollout Authors.
*/

package configparser

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// FakeData is an example of the configuration structure
// that can be used with this configparser
type FakeData struct {
	// Zones is a list of zones, to check list handling
	Zones []string `json:"zones" env:"ZONES"`

	// Interval is how often something is done
	Interval time.Duration `json:"interval" env:"INTERVAL"`

	// Rate is how many things are done per minute
	Rate float64 `json:"rate" env:"RATE"`

	// Parallelism is how many things are done together
	Parallelism int `json:"parallelism" env:"PARALLELISM"`

	// Backend is the name of a backend
	Backend string `json:"backend" env:"BACKEND"`

	// Enabled toggles the feature
	Enabled bool `json:"enabled" env:"ENABLED"`
}

var defaults = FakeData{
	Zones:       []string{"prod.a", "prod.b"},
	Interval:    time.Minute,
	Rate:        0.5,
	Parallelism: 1,
	Backend:     "local",
}

var _ = Describe("Data test suite", func() {
	It("correctly splits and trims lists", func() {
		list := splitAndTrim("string, with space , inside\t")
		Expect(list).To(Equal([]string{"string", "with space", "inside"}))
	})

	It("uses defaults when nothing is set", func() {
		config := &FakeData{}
		ReadConfigMapFrom(config, &defaults, nil, MapEnvironment{})
		Expect(*config).To(Equal(defaults))
	})

	It("loads values from a map", func() {
		config := &FakeData{}
		ReadConfigMapFrom(config, &defaults, map[string]string{
			"ZONES":       "prod.c, prod.d",
			"INTERVAL":    "90s",
			"RATE":        "2.5",
			"PARALLELISM": "4",
			"BACKEND":     "lease",
			"ENABLED":     "true",
		}, MapEnvironment{})
		Expect(config.Zones).To(Equal([]string{"prod.c", "prod.d"}))
		Expect(config.Interval).To(Equal(90 * time.Second))
		Expect(config.Rate).To(Equal(2.5))
		Expect(config.Parallelism).To(Equal(4))
		Expect(config.Backend).To(Equal("lease"))
		Expect(config.Enabled).To(BeTrue())
	})

	It("prefers the environment over the map", func() {
		config := &FakeData{}
		ReadConfigMapFrom(config, &defaults,
			map[string]string{"BACKEND": "lease"},
			MapEnvironment{"BACKEND": "local-override"})
		Expect(config.Backend).To(Equal("local-override"))
	})

	It("reads the process environment", func() {
		GinkgoT().Setenv("PARALLELISM", "7")
		config := &FakeData{}
		ReadConfigMap(config, &defaults, nil)
		Expect(config.Parallelism).To(Equal(7))
	})

	It("resets to the default value if the format is not correct", func() {
		config := &FakeData{}
		ReadConfigMapFrom(config, &defaults, nil, MapEnvironment{
			"INTERVAL":    "3600mins",
			"PARALLELISM": "unknown",
			"RATE":        "fast",
		})
		Expect(config.Interval).To(Equal(time.Minute))
		Expect(config.Parallelism).To(Equal(1))
		Expect(config.Rate).To(Equal(0.5))
	})
})
