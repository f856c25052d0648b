/*
This file is part of Fleet Rollout.

Copyright (C) 2025-2026 The Fleet Rollout Authors.
*/

package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/fleetrollout/fleet-rollout/pkg/management/log"
	"github.com/fleetrollout/fleet-rollout/pkg/ratewindow"
)

// RateSetting is the body exchanged by the upgrade rate endpoint
type RateSetting struct {
	UpgradesPerMinute float64 `json:"upgradesPerMinute"`
}

// RateHandler reads and changes the upgrade rate of an InstanceUpgrader
type RateHandler struct {
	upgrader *InstanceUpgrader
}

// NewRateHandler creates a new RateHandler
func NewRateHandler(upgrader *InstanceUpgrader) *RateHandler {
	return &RateHandler{upgrader: upgrader}
}

// ServeHTTP implements http.Handler
func (h *RateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.writeRate(w)
	case http.MethodPut:
		var setting RateSetting
		if err := json.NewDecoder(r.Body).Decode(&setting); err != nil {
			http.Error(w, fmt.Sprintf("invalid rate: %v", err), http.StatusBadRequest)
			return
		}
		if !ratewindow.ValidRate(setting.UpgradesPerMinute) {
			http.Error(w, fmt.Sprintf("the upgrade rate must be between 0 and %d",
				ratewindow.MaxRatePerMinute), http.StatusBadRequest)
			return
		}

		log.Info("Changing the instance upgrade rate",
			"previous", h.upgrader.UpgradesPerMinute(),
			"upgradesPerMinute", setting.UpgradesPerMinute)
		h.upgrader.SetUpgradesPerMinute(setting.UpgradesPerMinute)
		h.writeRate(w)
	default:
		w.Header().Set("Allow", "GET, PUT")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *RateHandler) writeRate(w http.ResponseWriter) {
	js, err := json.Marshal(RateSetting{UpgradesPerMinute: h.upgrader.UpgradesPerMinute()})
	if err != nil {
		log.Error(err, "while marshalling the upgrade rate")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(js)
}
