package main

import (
	"github.com/gopher2/trunk-decoder/internal/config"
)

// loadAndOverrideConfig loads the YAML config and applies the CLI
// overlays that mirror it: repeated -key flags append to key_specs,
// -mqtt-publish/-geoip-db force those sub-configs on, matching
// service-config knobs one for one.
func loadAndOverrideConfig(path string, extraKeys []string, mqttPublish bool, geoipDB string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	cfg.Keys.Specs = append(cfg.Keys.Specs, extraKeys...)
	if mqttPublish {
		cfg.MQTT.Enabled = true
	}
	if geoipDB != "" {
		cfg.GeoIP.DatabasePath = geoipDB
	}
	return cfg, nil
}
