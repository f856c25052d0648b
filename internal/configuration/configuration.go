/*
This file is part of Fleet Rollout.

Copyright (C) 2025-2026 The Fleet Rollout Authors.
*/

// Package configuration contains the configuration of the rollout
// manager, reading it from environment variables and from an optional
// configuration file
package configuration

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/thoas/go-funk"
	"gopkg.in/yaml.v3"

	"github.com/fleetrollout/fleet-rollout/pkg/configparser"
	"github.com/fleetrollout/fleet-rollout/pkg/management/log"
	"github.com/fleetrollout/fleet-rollout/pkg/ratewindow"
)

const (
	// LockBackendLocal serializes the jobs inside this process only
	LockBackendLocal = "local"

	// LockBackendLease serializes the jobs across every replica using
	// Kubernetes leases
	LockBackendLease = "lease"

	// DefaultTopologyFile is the default location of the topology document
	DefaultTopologyFile = "/etc/fleet-rollout/topology.yaml"
)

var (
	// ErrUnknownLockBackend is raised when the lock backend is not supported
	ErrUnknownLockBackend = errors.New("unknown lock backend")

	// ErrLeaseNamespaceEmpty is raised when leases are used without a namespace
	ErrLeaseNamespaceEmpty = errors.New("lease namespace must be set when using the lease lock backend")

	// ErrInvalidRate is raised when the upgrade rate is negative, not a
	// number or too high
	ErrInvalidRate = errors.New("invalid upgrades per minute")

	// ErrInvalidInterval is raised when a job interval is not positive
	ErrInvalidInterval = errors.New("job intervals must be positive")
)

// Data is the struct containing the configuration of the rollout manager.
// Usually the rollout manager itself will use the Current variable.
type Data struct {
	// InstanceUpgraderInterval is how often tenant instances are scheduled
	InstanceUpgraderInterval time.Duration `json:"instanceUpgraderInterval" env:"INSTANCE_UPGRADER_INTERVAL"`

	// SystemUpgraderInterval is how often the platform rollout advances
	SystemUpgraderInterval time.Duration `json:"systemUpgraderInterval" env:"SYSTEM_UPGRADER_INTERVAL"`

	// OSUpgraderInterval is how often the operating system rollout advances
	OSUpgraderInterval time.Duration `json:"osUpgraderInterval" env:"OS_UPGRADER_INTERVAL"`

	// UpgradesPerMinute is the initial fleet upgrade rate
	UpgradesPerMinute float64 `json:"upgradesPerMinute" env:"UPGRADES_PER_MINUTE"`

	// DefaultMajorVersion is the newest major accepted by instances
	// without an own limit. 0 means no limit.
	DefaultMajorVersion int `json:"defaultMajorVersion" env:"DEFAULT_MAJOR_VERSION"`

	// LockTimeout is how long a job waits for its lock before
	// skipping the run
	LockTimeout time.Duration `json:"lockTimeout" env:"LOCK_TIMEOUT"`

	// LockBackend is either "local" or "lease"
	LockBackend string `json:"lockBackend" env:"LOCK_BACKEND"`

	// LeaseNamespace is the namespace of the leases
	LeaseNamespace string `json:"leaseNamespace" env:"LEASE_NAMESPACE"`

	// LeaseDuration is how long a lease is valid without renewals
	LeaseDuration time.Duration `json:"leaseDuration" env:"LEASE_DURATION"`

	// TopologyFile is the path of the zone and component topology
	TopologyFile string `json:"topologyFile" env:"TOPOLOGY_FILE"`

	// ConfidenceDSN is the connection string of the confidence database
	ConfidenceDSN string `json:"confidenceDSN" env:"CONFIDENCE_DSN"`

	// ConfidenceSchema is the schema holding the confidence tables
	ConfidenceSchema string `json:"confidenceSchema" env:"CONFIDENCE_SCHEMA"`

	// ControlPlaneURL is the base URL of the control plane API
	ControlPlaneURL string `json:"controlPlaneURL" env:"CONTROLPLANE_URL"`

	// ControlPlaneTimeout bounds every control plane request
	ControlPlaneTimeout time.Duration `json:"controlPlaneTimeout" env:"CONTROLPLANE_TIMEOUT"`

	// MaxParallelZones is how many zones of a step are processed together
	MaxParallelZones int `json:"maxParallelZones" env:"MAX_PARALLEL_ZONES"`

	// DisabledJobs is a comma separated list of jobs not to be scheduled
	DisabledJobs []string `json:"disabledJobs" env:"DISABLED_JOBS"`
}

// Current is the configuration used by the rollout manager
var Current = NewConfiguration()

// newDefaultConfig creates a configuration holding the defaults
func newDefaultConfig() *Data {
	return &Data{
		InstanceUpgraderInterval: time.Minute,
		SystemUpgraderInterval:   5 * time.Minute,
		OSUpgraderInterval:       10 * time.Minute,
		UpgradesPerMinute:        1,
		LockTimeout:              10 * time.Second,
		LockBackend:              LockBackendLocal,
		LeaseDuration:            30 * time.Second,
		TopologyFile:             DefaultTopologyFile,
		ConfidenceSchema:         "public",
		ControlPlaneTimeout:      30 * time.Second,
		MaxParallelZones:         1,
	}
}

// NewConfiguration create a new rollout manager configuration containing
// the default values
func NewConfiguration() *Data {
	return newDefaultConfig()
}

// ReadConfigMap reads the configuration from the environment and the passed map
func (config *Data) ReadConfigMap(data map[string]string) {
	configparser.ReadConfigMap(config, newDefaultConfig(), data)
}

// ReadConfigFile reads a flat YAML document of configuration keys,
// with the environment taking precedence. An empty path reads the
// environment only.
func (config *Data) ReadConfigFile(path string) error {
	data := make(map[string]string)
	if path != "" {
		content, err := os.ReadFile(path) // #nosec
		if err != nil {
			return fmt.Errorf("while reading the configuration file: %w", err)
		}
		if err := yaml.Unmarshal(content, &data); err != nil {
			return fmt.Errorf("while parsing the configuration file %s: %w", path, err)
		}
		log.Debug("Configuration file loaded", "path", path, "keys", len(data))
	}

	config.ReadConfigMap(data)
	return nil
}

// Validate checks the consistency of the configuration
func (config *Data) Validate() error {
	switch config.LockBackend {
	case LockBackendLocal:
	case LockBackendLease:
		if config.LeaseNamespace == "" {
			return ErrLeaseNamespaceEmpty
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownLockBackend, config.LockBackend)
	}

	if !ratewindow.ValidRate(config.UpgradesPerMinute) {
		return fmt.Errorf("%w: %v, must be between 0 and %d",
			ErrInvalidRate, config.UpgradesPerMinute, ratewindow.MaxRatePerMinute)
	}

	if config.InstanceUpgraderInterval <= 0 ||
		config.SystemUpgraderInterval <= 0 ||
		config.OSUpgraderInterval <= 0 {
		return ErrInvalidInterval
	}

	return nil
}

// IsJobEnabled is true when the job with the passed name should be scheduled
func (config *Data) IsJobEnabled(name string) bool {
	return !funk.ContainsString(config.DisabledJobs, name)
}

// GetDefaultMajorVersion is the default major version limit, 0 when
// there is no limit
func (config *Data) GetDefaultMajorVersion() uint64 {
	if config.DefaultMajorVersion < 0 {
		return 0
	}
	return uint64(config.DefaultMajorVersion)
}
