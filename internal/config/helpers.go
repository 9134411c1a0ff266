package config

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Logging.Level == "debug" && c.Logging.Format == "console"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Logging.Level == "info" && c.Logging.Format == "json"
}

// UseMongo reports whether a MongoDB trend store is configured
func (c *Config) UseMongo() bool {
	return c.Mongo.URI != ""
}

// GetAdminAddress returns the ingest admin HTTP listen address
func (c *Config) GetAdminAddress() string {
	return fmt.Sprintf("%s:%d", c.Ingest.Host, c.Ingest.HTTPPort)
}

// Location returns the calendar used for rollups
// Supports formats:
//   - IANA timezone names: "Pacific/Honolulu", "America/New_York", "UTC"
//   - Offset format: "+09:00", "-10:00", "+00:00"
func (c *TrendsConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}

	// Try parsing as IANA timezone name first
	loc, err := time.LoadLocation(c.Timezone)
	if err == nil {
		return loc, nil
	}

	// Try parsing as offset format (+09:00, -05:00, etc.)
	loc, err = parseOffsetTimezone(c.Timezone)
	if err == nil {
		return loc, nil
	}

	return nil, fmt.Errorf("invalid trends.timezone: %s", c.Timezone)
}

// GetLocation returns the rollup calendar, falling back to UTC when invalid
func (c *TrendsConfig) GetLocation() *time.Location {
	loc, err := c.Location()
	if err != nil {
		return time.UTC
	}
	return loc
}

var offsetPattern = regexp.MustCompile(`^([+-])(\d{2}):(\d{2})$`)

// parseOffsetTimezone parses timezone offset format like "+09:00", "-05:00"
func parseOffsetTimezone(offset string) (*time.Location, error) {
	matches := offsetPattern.FindStringSubmatch(offset)
	if len(matches) != 4 {
		return nil, fmt.Errorf("invalid offset format: %s", offset)
	}

	sign := 1
	if matches[1] == "-" {
		sign = -1
	}

	hours, err := strconv.Atoi(matches[2])
	if err != nil {
		return nil, fmt.Errorf("invalid hours: %s", matches[2])
	}

	minutes, err := strconv.Atoi(matches[3])
	if err != nil {
		return nil, fmt.Errorf("invalid minutes: %s", matches[3])
	}

	offsetSeconds := sign * (hours*3600 + minutes*60)
	return time.FixedZone(offset, offsetSeconds), nil
}
