/*
This file is part of Fleet Rollout.

Copyright (C) 2025-2026 The Fleet Rollout Authors.
*/

// Package controller implement the command used to start the rollout manager
package controller

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/fleetrollout/fleet-rollout/controllers"
	"github.com/fleetrollout/fleet-rollout/internal/configuration"
	"github.com/fleetrollout/fleet-rollout/internal/topology"
	"github.com/fleetrollout/fleet-rollout/pkg/confidence/sqlstore"
	"github.com/fleetrollout/fleet-rollout/pkg/controlplane"
	"github.com/fleetrollout/fleet-rollout/pkg/lock"
	"github.com/fleetrollout/fleet-rollout/pkg/maintainer"
	"github.com/fleetrollout/fleet-rollout/pkg/management/log"
	"github.com/fleetrollout/fleet-rollout/pkg/management/url"
	"github.com/fleetrollout/fleet-rollout/pkg/reconciler/rolling"
	"github.com/fleetrollout/fleet-rollout/pkg/versions"
)

const (
	// DefaultReadTimeout is the default read timeout of the web server
	DefaultReadTimeout = 30 * time.Second

	// DefaultReadHeaderTimeout is the default read header timeout of the web server
	DefaultReadHeaderTimeout = 3 * time.Second

	shutdownTimeout = 5 * time.Second
)

var setupLog = log.WithName("setup")

// RunController is the main procedure of the rollout manager. It runs
// the maintenance jobs and the web server until the context is done.
func RunController(ctx context.Context, configFile, bindAddress string) error {
	setupLog.Info("Starting the rollout manager",
		"version", versions.ManagerVersion,
		"build", versions.Info)

	config := configuration.Current
	if err := config.ReadConfigFile(configFile); err != nil {
		return err
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	fleetTopology, err := topology.Load(config.TopologyFile)
	if err != nil {
		return err
	}
	setupLog.Info("Topology loaded",
		"zones", fleetTopology.Zones(),
		"components", len(fleetTopology.Components))

	db, err := sqlstore.Open(config.ConfidenceDSN)
	if err != nil {
		return err
	}
	defer func() {
		_ = db.Close()
	}()
	store := sqlstore.NewStore(db, config.ConfidenceSchema)
	controlPlane := controlplane.NewClient(config.ControlPlaneURL, config.ControlPlaneTimeout)

	locker, err := newLocker(config)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := maintainer.NewMetrics(registry)

	instanceUpgrader := controllers.NewInstanceUpgrader(
		store, controlPlane, controlPlane,
		config.InstanceUpgraderInterval,
		controllers.WithUpgradesPerMinute(config.UpgradesPerMinute),
		controllers.WithDefaultMajorVersion(config.GetDefaultMajorVersion()),
	)
	jobs := []maintainer.Job{
		instanceUpgrader,
		controllers.NewSystemUpgrader(
			store, store, controlPlane, controlPlane,
			fleetTopology.ZoneSteps, fleetTopology.Components,
			rolling.WithMaxParallelZones(config.MaxParallelZones)),
		controllers.NewOSUpgrader(
			store, controlPlane,
			fleetTopology.ZoneSteps, fleetTopology.Components,
			rolling.WithMaxParallelZones(config.MaxParallelZones)),
	}

	scheduler := maintainer.NewScheduler()
	for _, m := range newMaintainers(config, jobs, locker, metrics) {
		scheduler.Register(m)
	}

	server := &http.Server{
		Addr:              bindAddress,
		Handler:           newServeMux(registry, instanceUpgrader),
		ReadTimeout:       DefaultReadTimeout,
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		setupLog.Info("Starting the web server", "address", bindAddress)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("web server failed: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	group.Go(func() error {
		return scheduler.Start(ctx)
	})

	return group.Wait()
}

// newMaintainers wraps every enabled job in a Maintainer running on
// the configured interval
func newMaintainers(
	config *configuration.Data,
	jobs []maintainer.Job,
	locker lock.Locker,
	metrics *maintainer.Metrics,
) []*maintainer.Maintainer {
	intervals := map[string]time.Duration{
		controllers.InstanceUpgraderName: config.InstanceUpgraderInterval,
		controllers.SystemUpgraderName:   config.SystemUpgraderInterval,
		controllers.OSUpgraderName:       config.OSUpgraderInterval,
	}

	result := make([]*maintainer.Maintainer, 0, len(jobs))
	for _, job := range jobs {
		if !config.IsJobEnabled(job.Name()) {
			setupLog.Info("Maintenance job disabled", "job", job.Name())
			continue
		}
		interval, ok := intervals[job.Name()]
		if !ok {
			interval = config.InstanceUpgraderInterval
		}
		result = append(result, maintainer.New(job, interval, locker, config.LockTimeout, metrics))
	}
	return result
}

// newLocker creates the lock backend serializing the maintenance jobs
func newLocker(config *configuration.Data) (lock.Locker, error) {
	switch config.LockBackend {
	case configuration.LockBackendLease:
		restConfig, err := ctrl.GetConfig()
		if err != nil {
			return nil, fmt.Errorf("while loading the Kubernetes configuration: %w", err)
		}
		kubeClient, err := client.New(restConfig, client.Options{Scheme: clientgoscheme.Scheme})
		if err != nil {
			return nil, fmt.Errorf("while creating the Kubernetes client: %w", err)
		}
		return lock.NewLeaseLocker(kubeClient, config.LeaseNamespace, replicaIdentity(), config.LeaseDuration), nil
	default:
		return lock.NewLocal(), nil
	}
}

// replicaIdentity is the lease holder identity of this replica
func replicaIdentity() string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "fleet-rollout"
	}
	return hostname + "_" + uuid.NewString()
}

// newServeMux builds the router of the web server
func newServeMux(registry *prometheus.Registry, instanceUpgrader *controllers.InstanceUpgrader) *http.ServeMux {
	serveMux := http.NewServeMux()
	serveMux.HandleFunc(url.PathHealth, healthProbeHandler)
	serveMux.Handle(url.PathMetrics, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	serveMux.Handle(url.PathUpgradesPerMinute, controllers.NewRateHandler(instanceUpgrader))
	return serveMux
}

// healthProbeHandler is used to implement the liveness probe handler
func healthProbeHandler(w http.ResponseWriter, _ *http.Request) {
	_, _ = fmt.Fprint(w, "OK")
}
