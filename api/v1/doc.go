/*
This file is part of Fleet Rollout.

Copyright (C) 2025-2026 The Fleet Rollout Authors.
*/

// Package v1 contains the data model shared by the rollout jobs: version
// confidence, upgrade policies, tenant instances and the zone topology
package v1
