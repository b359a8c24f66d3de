package model

// This module defines implementation neutral status snapshot data structures
// published by the running sites for observers

import (
	"encoding/json"
)

type StripStatus struct {
	Name       string `json:"name"`
	Addr       string `json:"addr"`
	State      string `json:"state"`
	Connected  bool   `json:"connected"`
	QueueDepth int    `json:"queueDepth"`
	Sent       uint64 `json:"sent"`
	Drops      uint64 `json:"drops"`
	Connects   uint64 `json:"connects"`
}

type SiteStatus struct {
	Name          string        `json:"name"`
	TargetFPS     int           `json:"targetFps"`
	ActualFPS     float64       `json:"actualFps"`
	SpareMs       int64         `json:"spareMs"`
	Effect        string        `json:"effect"`
	EffectMinutes int64         `json:"effectMinutes"`
	Overruns      uint64        `json:"overruns"`
	Strips        []StripStatus `json:"strips"`
}

// DeepCopy returns a deep copy of the status made using json marshaling
func (status *SiteStatus) DeepCopy() (cpy *SiteStatus) {
	cpy = &SiteStatus{}

	byt, _ := json.Marshal(status)
	json.Unmarshal(byt, cpy)
	return cpy
}
