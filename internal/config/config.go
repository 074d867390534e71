package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"indoornav/internal/mapping"
	"indoornav/internal/mosquitto"
	"indoornav/internal/position"
	"indoornav/internal/routing"
	"indoornav/internal/storage"
)

type Beacon struct {
	ID string  `yaml:"id"`
	X  float64 `yaml:"x"`
	Y  float64 `yaml:"y"`
}

type Map struct {
	FloorPlan      string  `yaml:"floor_plan"`
	Nodes          string  `yaml:"nodes"`
	OriginX        float64 `yaml:"origin_x"`
	OriginY        float64 `yaml:"origin_y"`
	MetersPerPixel float64 `yaml:"meters_per_pixel"`
	SnapRadius     float64 `yaml:"snap_radius"`
}

type Signal struct {
	ReferencePower   float64       `yaml:"reference_power"`
	PathLossExponent float64       `yaml:"path_loss_exponent"`
	Window           int           `yaml:"window"`
	MaxAge           time.Duration `yaml:"max_age"`
}

type Filter struct {
	InitialCovariance float64 `yaml:"initial_covariance"`
	MeasurementNoise  float64 `yaml:"measurement_noise"`
}

type Routing struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
	Retries int           `yaml:"retries"`
}

type MQTT struct {
	Broker   string   `yaml:"broker"`
	ClientID string   `yaml:"client_id"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	Topics   []string `yaml:"topics"`
	QoS      byte     `yaml:"qos"`
}

type Tracker struct {
	Interval time.Duration `yaml:"interval"`
}

type Demo struct {
	Waypoints [][2]float64 `yaml:"waypoints"`
	Noise     float64      `yaml:"noise"`
}

// Site is the static description of one mapped space.
type Site struct {
	Beacons []Beacon `yaml:"beacons"`
	Map     Map      `yaml:"map"`
	Signal  Signal   `yaml:"signal"`
	Filter  Filter   `yaml:"filter"`
	Routing Routing  `yaml:"routing"`
	MQTT    MQTT     `yaml:"mqtt"`
	Tracker Tracker  `yaml:"tracker"`
	Demo    Demo     `yaml:"demo"`
}

// Default returns a site with every tuning constant set.
func Default() Site {
	return Site{
		Map: Map{
			OriginX:        mapping.DefaultOriginX,
			OriginY:        mapping.DefaultOriginY,
			MetersPerPixel: mapping.DefaultMetersPerPixel,
			SnapRadius:     mapping.DefaultSnapRadius,
		},
		Signal: Signal{
			ReferencePower:   position.DefaultReferencePower,
			PathLossExponent: position.DefaultPathLossExp,
			Window:           storage.DefaultWindow,
		},
		Filter: Filter{
			InitialCovariance: position.DefaultInitialCovariance,
			MeasurementNoise:  position.DefaultMeasurementNoise,
		},
		Routing: Routing{
			Timeout: 10 * time.Second,
			Retries: 2,
		},
		MQTT: MQTT{
			Broker: "tcp://localhost:1883",
			Topics: []string{"beacons/#"},
		},
		Tracker: Tracker{Interval: time.Second},
		Demo:    Demo{Noise: 2},
	}
}

// Load reads a YAML site file over the defaults. Relative asset paths are
// resolved against the file's directory.
func Load(path string) (*Site, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	site, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	dir := filepath.Dir(path)
	site.Map.FloorPlan = resolve(dir, site.Map.FloorPlan)
	site.Map.Nodes = resolve(dir, site.Map.Nodes)
	return site, nil
}

func resolve(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

func Parse(data []byte) (*Site, error) {
	site := Default()
	if err := yaml.Unmarshal(data, &site); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &site, nil
}

// ApplyEnv overrides broker settings from MOSQUITTO_* variables.
func (s *Site) ApplyEnv(getenv func(string) string) {
	if v := getenv("MOSQUITTO_BROKER"); v != "" {
		s.MQTT.Broker = v
	} else if port := getenv("MOSQUITTO_INTERNAL_PORT"); port != "" {
		s.MQTT.Broker = "tcp://mosquitto:" + port
	}
	if v := getenv("MOSQUITTO_USER"); v != "" {
		s.MQTT.Username = v
	}
	if v := getenv("MOSQUITTO_PASSWORD"); v != "" {
		s.MQTT.Password = v
	}
	if v := getenv("MOSQUITTO_TOPIC"); v != "" {
		s.MQTT.Topics = []string{v}
	}
	if v := getenv("ROUTING_URL"); v != "" {
		s.Routing.URL = v
	}
}

func (s *Site) Validate() error {
	var errs []error
	if len(s.Beacons) < position.MinBeacons {
		errs = append(errs, fmt.Errorf("need at least %d beacons, have %d", position.MinBeacons, len(s.Beacons)))
	}
	seen := make(map[string]bool, len(s.Beacons))
	for i, b := range s.Beacons {
		if b.ID == "" {
			errs = append(errs, fmt.Errorf("beacon %d: empty id", i))
			continue
		}
		if seen[b.ID] {
			errs = append(errs, fmt.Errorf("beacon %s: duplicate id", b.ID))
		}
		seen[b.ID] = true
	}
	if s.Map.FloorPlan == "" {
		errs = append(errs, errors.New("map.floor_plan is required"))
	}
	if s.Map.Nodes == "" {
		errs = append(errs, errors.New("map.nodes is required"))
	}
	if s.Map.MetersPerPixel <= 0 {
		errs = append(errs, errors.New("map.meters_per_pixel must be positive"))
	}
	if s.Signal.PathLossExponent <= 0 {
		errs = append(errs, errors.New("signal.path_loss_exponent must be positive"))
	}
	if s.Signal.Window <= 0 {
		errs = append(errs, errors.New("signal.window must be positive"))
	}
	if s.Filter.InitialCovariance <= 0 || s.Filter.MeasurementNoise <= 0 {
		errs = append(errs, errors.New("filter covariances must be positive"))
	}
	if s.Tracker.Interval <= 0 {
		errs = append(errs, errors.New("tracker.interval must be positive"))
	}
	if s.Routing.Timeout <= 0 {
		errs = append(errs, errors.New("routing.timeout must be positive"))
	}
	return errors.Join(errs...)
}

// BeaconCoords is the beacon table keyed by id.
func (s *Site) BeaconCoords() map[string][2]float64 {
	out := make(map[string][2]float64, len(s.Beacons))
	for _, b := range s.Beacons {
		out[b.ID] = [2]float64{b.X, b.Y}
	}
	return out
}

func (s *Site) BeaconIDs() []string {
	ids := make([]string, 0, len(s.Beacons))
	for _, b := range s.Beacons {
		ids = append(ids, b.ID)
	}
	return ids
}

// PositionConfig builds the pipeline configuration. minimizer may be nil.
func (s *Site) PositionConfig(minimizer position.Minimizer) position.Config {
	return position.Config{
		PathLoss: position.PathLoss{
			RefPower: s.Signal.ReferencePower,
			Exponent: s.Signal.PathLossExponent,
		},
		Window:            s.Signal.Window,
		InitialCovariance: s.Filter.InitialCovariance,
		MeasurementNoise:  s.Filter.MeasurementNoise,
		MaxAge:            s.Signal.MaxAge,
		Minimizer:         minimizer,
	}
}

func (s *Site) RoutingConfig() routing.Config {
	return routing.Config{
		URL:     s.Routing.URL,
		Timeout: s.Routing.Timeout,
		Retries: s.Routing.Retries,
	}
}

func (s *Site) MQTTConfig() mosquitto.Config {
	return mosquitto.Config{
		Broker:   s.MQTT.Broker,
		ClientId: s.MQTT.ClientID,
		Username: s.MQTT.Username,
		Password: s.MQTT.Password,
		Topics:   s.MQTT.Topics,
		QoS:      s.MQTT.QoS,
	}
}
