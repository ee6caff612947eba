// Package config loads the viewer configuration file. Every field is optional; getters fall back to
// the built-in defaults for anything the file omits.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Carmen-Shannon/oxy-globe/common"
)

// DefaultConfigPath is where the viewer looks for its configuration when none is given.
const DefaultConfigPath = "globe.json"

// Default values used when the configuration omits a field.
const (
	DefaultLatitude          = 42.92
	DefaultLongitude         = -122.10
	DefaultAltitude          = 25000.0
	DefaultElevationResource = "data/craterlake-elev-16bit-30m.tif"
	DefaultImageryResource   = "data/craterlake-imagery-30m.tif"
	DefaultWorkerCount       = 1
	DefaultTickRate          = 60.0
)

const maxFileSize = 1 * 1024 * 1024 // 1MB

// GlobeConfig is the root of globe.json.
type GlobeConfig struct {
	InitialView *ViewConfig     `json:"initial_view,omitempty"`
	Resources   *ResourceConfig `json:"resources,omitempty"`

	FetchTimeout *string  `json:"fetch_timeout,omitempty"` // duration string like "30s"; "0" disables
	WorkerCount  *int     `json:"worker_count,omitempty"`
	TickRate     *float64 `json:"tick_rate,omitempty"`
	MarkerRoles  []string `json:"marker_roles,omitempty"`
}

// ViewConfig is the camera position at startup.
type ViewConfig struct {
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Altitude  *float64 `json:"altitude,omitempty"` // meters above the surface
}

// ResourceConfig names the resources imported by the shell's two import actions.
type ResourceConfig struct {
	Elevation *string `json:"elevation,omitempty"`
	Imagery   *string `json:"imagery,omitempty"`
}

// EmptyGlobeConfig returns a GlobeConfig with every field unset, so every getter returns its default.
func EmptyGlobeConfig() *GlobeConfig {
	return &GlobeConfig{}
}

// LoadGlobeConfig loads a GlobeConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
// Fields omitted from the file retain their default values, so partial configs are safe.
func LoadGlobeConfig(path string) (*GlobeConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyGlobeConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads path if it exists and returns the defaults otherwise.
// Any other failure (bad JSON, invalid values) is returned.
func LoadOrDefault(path string) (*GlobeConfig, error) {
	if _, err := os.Stat(filepath.Clean(path)); os.IsNotExist(err) {
		return EmptyGlobeConfig(), nil
	}
	return LoadGlobeConfig(path)
}

// Validate checks that the configuration values are valid.
func (c *GlobeConfig) Validate() error {
	if v := c.InitialView; v != nil {
		if v.Latitude != nil && (*v.Latitude < -90 || *v.Latitude > 90) {
			return fmt.Errorf("initial_view.latitude must be between -90 and 90, got %f", *v.Latitude)
		}
		if v.Longitude != nil && (*v.Longitude < -180 || *v.Longitude > 180) {
			return fmt.Errorf("initial_view.longitude must be between -180 and 180, got %f", *v.Longitude)
		}
		if v.Altitude != nil && *v.Altitude <= 0 {
			return fmt.Errorf("initial_view.altitude must be positive, got %f", *v.Altitude)
		}
	}

	if r := c.Resources; r != nil {
		if r.Elevation != nil && *r.Elevation == "" {
			return fmt.Errorf("resources.elevation must not be empty")
		}
		if r.Imagery != nil && *r.Imagery == "" {
			return fmt.Errorf("resources.imagery must not be empty")
		}
	}

	if c.FetchTimeout != nil && *c.FetchTimeout != "" {
		d, err := time.ParseDuration(*c.FetchTimeout)
		if err != nil {
			return fmt.Errorf("invalid fetch_timeout '%s': %w", *c.FetchTimeout, err)
		}
		if d < 0 {
			return fmt.Errorf("fetch_timeout must be non-negative, got %s", d)
		}
	}

	if c.WorkerCount != nil && *c.WorkerCount < 1 {
		return fmt.Errorf("worker_count must be at least 1, got %d", *c.WorkerCount)
	}

	if c.TickRate != nil && *c.TickRate <= 0 {
		return fmt.Errorf("tick_rate must be positive, got %f", *c.TickRate)
	}

	for _, name := range c.MarkerRoles {
		if _, err := common.ParseLayerRole(name); err != nil {
			return fmt.Errorf("invalid marker_roles entry: %w", err)
		}
	}
	return nil
}

// GetInitialView returns the startup camera location; Altitude is the eye altitude in meters.
func (c *GlobeConfig) GetInitialView() common.GeoPoint {
	v := common.Deref(c.InitialView, ViewConfig{})
	return common.GeoPoint{
		Latitude:  common.Deref(v.Latitude, DefaultLatitude),
		Longitude: common.Deref(v.Longitude, DefaultLongitude),
		Altitude:  common.Deref(v.Altitude, DefaultAltitude),
	}
}

// GetElevationResource returns the resource imported by the elevation action.
// An empty name set in code falls back to the default like an omitted one.
func (c *GlobeConfig) GetElevationResource() string {
	r := common.Deref(c.Resources, ResourceConfig{})
	return common.Coalesce(common.Deref(r.Elevation, ""), DefaultElevationResource)
}

// GetImageryResource returns the resource imported by the imagery action.
func (c *GlobeConfig) GetImageryResource() string {
	r := common.Deref(c.Resources, ResourceConfig{})
	return common.Coalesce(common.Deref(r.Imagery, ""), DefaultImageryResource)
}

// GetFetchTimeout parses and returns the FetchTimeout. Zero means no timeout.
func (c *GlobeConfig) GetFetchTimeout() time.Duration {
	raw := common.Deref(c.FetchTimeout, "")
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0
	}
	return d
}

// GetWorkerCount returns the import worker pool size.
func (c *GlobeConfig) GetWorkerCount() int {
	return common.Deref(c.WorkerCount, DefaultWorkerCount)
}

// GetTickRate returns the owner loop tick rate in ticks per second.
func (c *GlobeConfig) GetTickRate() float64 {
	return common.Deref(c.TickRate, DefaultTickRate)
}

// GetMarkerRoles returns the roles that pin layers above imported data. Defaults to the marker role.
// Unparseable entries are skipped; Validate reports them.
func (c *GlobeConfig) GetMarkerRoles() []common.LayerRole {
	if len(c.MarkerRoles) == 0 {
		return []common.LayerRole{common.RoleMarker}
	}
	roles := make([]common.LayerRole, 0, len(c.MarkerRoles))
	for _, name := range c.MarkerRoles {
		if r, err := common.ParseLayerRole(name); err == nil {
			roles = append(roles, r)
		}
	}
	return roles
}
