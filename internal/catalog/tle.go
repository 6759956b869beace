package catalog

import (
	"fmt"
	"slices"
	"strings"

	"github.com/akhenakh/sgp4"
)

// Entry is one named element set as read from 3-line TLE text.
type Entry struct {
	Name     string
	Elements Elements
}

// ParseTLEText extracts every well-formed name/line1/line2 triple from bulk
// TLE text as served by CelesTrak. Malformed groups are returned in the
// error slice and otherwise skipped.
func ParseTLEText(raw string) ([]Entry, []error) {
	var (
		entries []Entry
		errs    []error
	)

	var lines []string
	for _, l := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		if l = strings.TrimRight(l, " \t"); strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}

	for i := 0; i+2 < len(lines); {
		name := strings.TrimSpace(lines[i])
		l1 := strings.TrimSpace(lines[i+1])
		l2 := strings.TrimSpace(lines[i+2])

		el, err := ParseElements(l1, l2)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			// Resync on the next line rather than skipping a whole group.
			i++
			continue
		}
		entries = append(entries, Entry{Name: name, Elements: el})
		i += 3
	}

	return entries, errs
}

// ParseElements validates a TLE line pair, checksums included, and
// decodes its catalog number and epoch.
func ParseElements(line1, line2 string) (Elements, error) {
	tle, err := sgp4.ParseTLE(line1 + "\n" + line2)
	if err != nil {
		return Elements{}, err
	}
	return Elements{
		NoradID: tle.SatelliteNumber,
		Line1:   line1,
		Line2:   line2,
		Epoch:   tle.EpochTime(),
	}, nil
}

// Selection decides which discovered satellites are loaded: an explicit name
// list when non-empty, otherwise every satellite whose category is enabled.
type Selection struct {
	Names       []string
	Categories  map[string]bool
	Frequencies map[string]float64
}

// Build turns parsed entries into the tracked satellite set. Duplicate names
// (the same bird listed in several CelesTrak groups) keep the newest epoch.
// The result is sorted by name.
func (s Selection) Build(entries []Entry) []Satellite {
	byName := make(map[string]Satellite)
	for _, e := range entries {
		cat := Categorize(e.Name)
		if len(s.Names) > 0 {
			if !slices.Contains(s.Names, e.Name) {
				continue
			}
		} else if !s.Categories[string(cat)] {
			continue
		}

		if prev, ok := byName[e.Name]; ok && !e.Elements.Epoch.After(prev.Elements.Epoch) {
			continue
		}
		byName[e.Name] = Satellite{
			Name:      e.Name,
			Category:  cat,
			Frequency: Frequency(e.Name, s.Frequencies),
			Mode:      Mode(e.Name),
			Elements:  e.Elements,
		}
	}

	sats := make([]Satellite, 0, len(byName))
	for _, sat := range byName {
		sats = append(sats, sat)
	}
	slices.SortFunc(sats, func(a, b Satellite) int { return strings.Compare(a.Name, b.Name) })
	return sats
}
