// Package geoip resolves an uploader's IP address to a country using a
// MaxMind GeoIP2 database, for enriching ingestion job metadata.
package geoip

import (
	"fmt"
	"net"
	"sync"

	"github.com/oschwald/geoip2-golang"
)

// Service looks up country-of-origin for an IP address. The zero value
// is disabled — Lookup always fails — so callers can embed a Service
// unconditionally and only call Open when a database path is configured.
type Service struct {
	db      *geoip2.Reader
	mu      sync.RWMutex
	enabled bool
}

// Result is the subset of a GeoIP2 record the ingestion pipeline cares
// about.
type Result struct {
	CountryCode string
	CountryName string
}

// Open loads the database at path. An empty path returns a disabled
// Service and no error, since GeoIP enrichment is optional.
func Open(path string) (*Service, error) {
	if path == "" {
		return &Service{}, nil
	}
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geoip: open database at %s: %w", path, err)
	}
	return &Service{db: db, enabled: true}, nil
}

// Enabled reports whether a database was successfully loaded.
func (s *Service) Enabled() bool {
	return s != nil && s.enabled
}

// Lookup resolves ipStr to a country. It fails if the service is
// disabled, the address does not parse, or the database has no record.
func (s *Service) Lookup(ipStr string) (Result, error) {
	if !s.Enabled() {
		return Result{}, fmt.Errorf("geoip: service not enabled")
	}

	ip := net.ParseIP(ipStr)
	if ip == nil {
		return Result{}, fmt.Errorf("geoip: invalid IP address %q", ipStr)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	record, err := s.db.Country(ip)
	if err != nil {
		return Result{}, fmt.Errorf("geoip: country lookup for %s: %w", ipStr, err)
	}

	name := record.Country.IsoCode
	if n, ok := record.Country.Names["en"]; ok && n != "" {
		name = n
	}
	return Result{CountryCode: record.Country.IsoCode, CountryName: name}, nil
}

// Close releases the underlying database, if one was opened.
func (s *Service) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
