package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"hotel-plan-finder/internal/filter"
	"hotel-plan-finder/internal/models"

	"gopkg.in/yaml.v3"
)

// Hotel is one property to scan, with globals already merged in
type Hotel struct {
	AcmID      string            `yaml:"acm_id" json:"acm_id"`
	Name       string            `yaml:"name" json:"name"`
	Sites      []string          `yaml:"sites" json:"sites"`
	Filters    []string          `yaml:"filters" json:"filters"`
	Conditions models.Conditions `yaml:"conditions" json:"conditions"`
	Enabled    bool              `yaml:"enabled" json:"enabled"`
}

// ScansSite reports whether the hotel should be scanned on site.
// An empty site list selects every site.
func (h Hotel) ScansSite(site string) bool {
	if len(h.Sites) == 0 {
		return true
	}
	for _, s := range h.Sites {
		if s == site {
			return true
		}
	}
	return false
}

// Globals are the filters and conditions shared by every hotel
type Globals struct {
	Filters    []string          `yaml:"filters"`
	Conditions models.Conditions `yaml:"conditions"`
}

type hotelEntry struct {
	AcmID      string             `yaml:"acm_id"`
	Name       string             `yaml:"name"`
	Sites      []string           `yaml:"sites"`
	Filters    []string           `yaml:"filters"`
	Conditions *models.Conditions `yaml:"conditions"`
	Enabled    *bool              `yaml:"enabled"`
}

type hotelsFile struct {
	Globals Globals      `yaml:"globals"`
	Hotels  []hotelEntry `yaml:"hotels"`
}

// HotelList is the resolved hotel configuration
type HotelList struct {
	Globals Globals
	Hotels  []Hotel
}

// Conditions returns the merged conditions of every hotel keyed by property ID
func (l *HotelList) Conditions() map[string]models.Conditions {
	m := make(map[string]models.Conditions, len(l.Hotels))
	for _, h := range l.Hotels {
		m[h.AcmID] = h.Conditions
	}
	return m
}

// Enabled returns the hotels that should be scanned
func (l *HotelList) Enabled() []Hotel {
	hotels := make([]Hotel, 0, len(l.Hotels))
	for _, h := range l.Hotels {
		if h.Enabled {
			hotels = append(hotels, h)
		}
	}
	return hotels
}

// LoadHotels reads the hotel list file
func LoadHotels(path string) (*HotelList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read hotels file: %w", err)
	}
	return ParseHotels(data)
}

// ParseHotels decodes a hotel list. Each hotel's filters are the global
// filters followed by its own; its conditions are the global conditions
// overlaid by the values it sets. Filter names are checked here so a typo
// fails at startup rather than on every scan.
func ParseHotels(data []byte) (*HotelList, error) {
	var file hotelsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse hotels file: %w", err)
	}

	list := &HotelList{Globals: file.Globals}
	seen := make(map[string]bool, len(file.Hotels))

	for i, entry := range file.Hotels {
		if entry.AcmID == "" {
			return nil, fmt.Errorf("hotel %d: acm_id is required", i)
		}
		if seen[entry.AcmID] {
			return nil, fmt.Errorf("hotel %s: listed twice", entry.AcmID)
		}
		seen[entry.AcmID] = true

		filters := make([]string, 0, len(file.Globals.Filters)+len(entry.Filters))
		filters = append(filters, file.Globals.Filters...)
		filters = append(filters, entry.Filters...)
		if _, err := filter.Encode(filters); err != nil {
			var unknown *filter.UnknownFilterError
			if errors.As(err, &unknown) {
				return nil, fmt.Errorf("hotel %s: %w (known filters: %s)", entry.AcmID, err, strings.Join(filter.Registered(), ", "))
			}
			return nil, fmt.Errorf("hotel %s: %w", entry.AcmID, err)
		}

		conditions := file.Globals.Conditions
		if entry.Conditions != nil {
			conditions = conditions.Merge(*entry.Conditions)
		}

		enabled := true
		if entry.Enabled != nil {
			enabled = *entry.Enabled
		}

		name := entry.Name
		if name == "" {
			name = entry.AcmID
		}

		list.Hotels = append(list.Hotels, Hotel{
			AcmID:      entry.AcmID,
			Name:       name,
			Sites:      entry.Sites,
			Filters:    filters,
			Conditions: conditions,
			Enabled:    enabled,
		})
	}

	return list, nil
}
