package models

import "time"

// BoxLocation is one entry of a box's location history
type BoxLocation struct {
	StartTimeMs int64  `json:"start_time_ms"`
	Code        string `json:"location_code"`
}

// Box is the registry entry for an OPQ Box
type Box struct {
	BoxID               string        `json:"box_id"`
	Name                string        `json:"name,omitempty"`
	Description         string        `json:"description,omitempty"`
	CalibrationConstant float64       `json:"calibration_constant"`
	Locations           []BoxLocation `json:"locations,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
}
