// Package catalog describes the satellites passrelay can track: their
// category, downlink frequency, operating mode, and orbital elements.
package catalog

import (
	"maps"
	"slices"
	"strings"
	"time"
)

// Category groups satellites by how useful their passes are operationally.
type Category string

const (
	CategoryWeather     Category = "weather"
	CategoryPolar       Category = "polar"
	CategoryStation     Category = "station"
	CategoryAmateur     Category = "amateur"
	CategorySpecialized Category = "specialized"
	CategoryOther       Category = "other"
)

// Categories lists every category in a stable order.
var Categories = []Category{
	CategoryWeather,
	CategoryPolar,
	CategoryStation,
	CategoryAmateur,
	CategorySpecialized,
	CategoryOther,
}

// Elements are the two-line orbital elements of one satellite.
type Elements struct {
	NoradID int
	Line1   string
	Line2   string
	Epoch   time.Time
}

// Age reports how old the element set is at time now.
func (e Elements) Age(now time.Time) time.Duration {
	return now.Sub(e.Epoch)
}

// Satellite is an immutable description of one trackable satellite. The
// catalog is replaced wholesale whenever elements are refreshed.
type Satellite struct {
	Name      string
	Category  Category
	Frequency float64 // downlink frequency in Hz
	Mode      string
	Elements  Elements
}

var amateurPrefixes = []string{"AO-", "SO-", "FO-", "XW-"}

func isAmateur(upper string) bool {
	for _, p := range amateurPrefixes {
		if strings.Contains(upper, p) {
			return true
		}
	}
	return false
}

// Categorize derives a category from a satellite's common name.
func Categorize(name string) Category {
	upper := strings.ToUpper(name)
	switch {
	case strings.Contains(upper, "NOAA"):
		return CategoryWeather
	case strings.Contains(upper, "METEOR"):
		return CategoryPolar
	case upper == "ISS" || strings.Contains(upper, "ISS (ZARYA)"):
		return CategoryStation
	case isAmateur(upper):
		return CategoryAmateur
	case strings.Contains(upper, "GOES"):
		return CategorySpecialized
	default:
		return CategoryOther
	}
}

// Mode returns the operating mode a satellite's downlink uses.
func Mode(name string) string {
	upper := strings.ToUpper(name)
	switch {
	case strings.Contains(upper, "NOAA"):
		return "apt"
	case strings.Contains(upper, "METEOR"):
		return "lrpt"
	case strings.Contains(upper, "ISS"):
		if strings.Contains(upper, "APRS") {
			return "aprs"
		}
		return "voice"
	case isAmateur(upper):
		return "linear"
	default:
		return "unknown"
	}
}

// Frequency looks up a downlink frequency in Hz. Exact names win, then
// substring matches either way, then a per-family default. Unknown
// satellites get 0.
func Frequency(name string, table map[string]float64) float64 {
	if f, ok := table[name]; ok {
		return f
	}
	for _, known := range slices.Sorted(maps.Keys(table)) {
		if strings.Contains(name, known) || strings.Contains(known, name) {
			return table[known]
		}
	}

	upper := strings.ToUpper(name)
	switch {
	case strings.Contains(upper, "NOAA"):
		return 137.5e6
	case strings.Contains(upper, "METEOR"):
		return 137.1e6
	case strings.Contains(upper, "ISS"):
		return 145.8e6
	case isAmateur(upper):
		return 145.9e6
	default:
		return 0
	}
}
