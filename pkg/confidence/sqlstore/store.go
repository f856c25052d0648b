/*
This file is part of Fleet Rollout.

Copyright (C) 2025-2026 The Fleet Rollout Authors.
*/

// Package sqlstore reads the version confidence and the system targets
// from a PostgreSQL database
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	apiv1 "github.com/fleetrollout/fleet-rollout/api/v1"
	"github.com/fleetrollout/fleet-rollout/controllers"
	"github.com/fleetrollout/fleet-rollout/pkg/management/log"
	"github.com/fleetrollout/fleet-rollout/pkg/versions"
)

const (
	// DefaultSchema is the schema holding the rollout tables
	DefaultSchema = "public"

	targetKindController = "controller"
	targetKindOS         = "os"
)

// Store is a VersionStatusSource and a TargetSource backed by the
// version_status and system_target tables
type Store struct {
	db     *sql.DB
	schema string
}

// Open connects to the database identified by the passed DSN
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("while opening the confidence database: %w", err)
	}
	return db, nil
}

// NewStore creates a new Store reading the tables in the passed schema
func NewStore(db *sql.DB, schema string) *Store {
	if schema == "" {
		schema = DefaultSchema
	}
	return &Store{db: db, schema: schema}
}

func (s *Store) table(name string) string {
	return pq.QuoteIdentifier(s.schema) + "." + pq.QuoteIdentifier(name)
}

// VersionStatus implements controllers.VersionStatusSource. Rows with
// an invalid version or confidence are ignored.
func (s *Store) VersionStatus(ctx context.Context) (apiv1.VersionStatus, error) {
	contextLogger := log.FromContext(ctx)

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT version, confidence FROM %s", s.table("version_status")))
	if err != nil {
		return apiv1.VersionStatus{}, fmt.Errorf("while reading the version status: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var entries []apiv1.VersionStatusEntry
	for rows.Next() {
		var rawVersion, rawConfidence string
		if err := rows.Scan(&rawVersion, &rawConfidence); err != nil {
			return apiv1.VersionStatus{}, err
		}

		version, err := versions.Parse(rawVersion)
		if err != nil {
			contextLogger.Warning("Ignoring version status row", "version", rawVersion, "error", err.Error())
			continue
		}
		confidence, err := apiv1.ParseConfidence(rawConfidence)
		if err != nil {
			contextLogger.Warning("Ignoring version status row", "version", rawVersion, "error", err.Error())
			continue
		}

		entries = append(entries, apiv1.VersionStatusEntry{Version: version, Confidence: confidence})
	}
	if rows.Err() != nil {
		return apiv1.VersionStatus{}, rows.Err()
	}

	return apiv1.NewVersionStatus(entries...), nil
}

// ControllerVersion implements controllers.TargetSource
func (s *Store) ControllerVersion(ctx context.Context) (versions.Version, error) {
	target, err := s.target(ctx, targetKindController)
	if err != nil {
		return versions.Version{}, err
	}
	return target.Version, nil
}

// OSTarget implements controllers.TargetSource
func (s *Store) OSTarget(ctx context.Context) (*apiv1.VersionTarget, error) {
	target, err := s.target(ctx, targetKindOS)
	if err != nil {
		return nil, err
	}
	return &target, nil
}

func (s *Store) target(ctx context.Context, kind string) (apiv1.VersionTarget, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT version, downgrade FROM %s WHERE kind = $1", s.table("system_target")),
		kind)

	var rawVersion string
	var downgrade bool
	err := row.Scan(&rawVersion, &downgrade)
	if errors.Is(err, sql.ErrNoRows) || isUndefinedTable(err) {
		return apiv1.VersionTarget{}, controllers.ErrNoTarget
	}
	if err != nil {
		return apiv1.VersionTarget{}, fmt.Errorf("while reading the %s target: %w", kind, err)
	}

	version, err := versions.Parse(rawVersion)
	if err != nil {
		return apiv1.VersionTarget{}, fmt.Errorf("invalid %s target: %w", kind, err)
	}
	return apiv1.VersionTarget{Version: version, Downgrade: downgrade}, nil
}

// isUndefinedTable is true when err is the PostgreSQL error raised
// when querying a missing table
func isUndefinedTable(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "42P01"
}
