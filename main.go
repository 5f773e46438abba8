package main

import (
	"flag"
	"log"
)

func main() {
	configFile := flag.String("config", "config.yaml", "Path to configuration file")
	batchDir := flag.String("batch", "", "Directory of capture files to decode and exit, instead of running the HTTP service")
	batchOutExt := flag.String("batch-ext", ".bin", "File extension (including the dot) identifying capture files in -batch mode")
	var keySpecs stringSliceFlag
	flag.Var(&keySpecs, "key", "KEYID:HEX key specification; repeatable")
	mqttPublish := flag.Bool("mqtt-publish", false, "Publish job events to the configured MQTT broker in batch mode")
	geoipDB := flag.String("geoip-db", "", "Path to a MaxMind GeoIP2 database for enriching HTTP-uploaded jobs; batch mode does no GeoIP lookup")
	flag.Parse()

	cfg, err := loadAndOverrideConfig(*configFile, keySpecs, *mqttPublish, *geoipDB)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	svc, err := newService(cfg)
	if err != nil {
		log.Fatalf("service: %v", err)
	}
	defer svc.Close()

	if *batchDir != "" {
		if err := runBatch(svc, *batchDir, *batchOutExt); err != nil {
			log.Fatalf("batch: %v", err)
		}
		return
	}

	if err := svc.Run(); err != nil {
		log.Fatalf("service: %v", err)
	}
}

// stringSliceFlag accumulates repeated -flag values.
type stringSliceFlag []string

func (s *stringSliceFlag) String() string { return "" }

func (s *stringSliceFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}
