package catalog

import (
	"testing"
	"time"
)

const (
	issLine1 = "1 25544U 98067A   25045.18032407  .00016717  00000+0  30099-3 0  9996"
	issLine2 = "2 25544  51.6412 193.5765 0003457 126.2851 233.8519 15.49874301495057"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		name string
		want Category
	}{
		{"NOAA 19", CategoryWeather},
		{"METEOR-M2 3", CategoryPolar},
		{"ISS (ZARYA)", CategoryStation},
		{"ISS", CategoryStation},
		{"AO-91", CategoryAmateur},
		{"SO-50", CategoryAmateur},
		{"GOES 16", CategorySpecialized},
		{"STARLINK-1007", CategoryOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Categorize(tt.name); got != tt.want {
				t.Errorf("Categorize(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestMode(t *testing.T) {
	tests := map[string]string{
		"NOAA 15":     "apt",
		"METEOR-M 2":  "lrpt",
		"ISS (ZARYA)": "voice",
		"ISS-APRS":    "aprs",
		"FO-29":       "linear",
		"HUBBLE":      "unknown",
	}
	for name, want := range tests {
		if got := Mode(name); got != want {
			t.Errorf("Mode(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestFrequency(t *testing.T) {
	table := map[string]float64{
		"NOAA 19":     137.1e6,
		"ISS (ZARYA)": 145.8e6,
	}
	tests := []struct {
		name string
		want float64
	}{
		{"NOAA 19", 137.1e6},        // exact
		{"ISS (ZARYA)", 145.8e6},    // exact
		{"NOAA 19 [+]", 137.1e6},    // substring
		{"NOAA 20", 137.5e6},        // family default
		{"AO-7", 145.9e6},           // amateur default
		{"TIANGONG", 0},             // unknown
	}
	for _, tt := range tests {
		if got := Frequency(tt.name, table); got != tt.want {
			t.Errorf("Frequency(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestParseElements(t *testing.T) {
	el, err := ParseElements(issLine1, issLine2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if el.NoradID != 25544 {
		t.Errorf("NoradID = %d, want 25544", el.NoradID)
	}
	want := time.Date(2025, 2, 14, 4, 19, 40, 0, time.UTC)
	if d := el.Epoch.Sub(want); d < -time.Second || d > time.Second {
		t.Errorf("Epoch = %v, want ~%v", el.Epoch, want)
	}
}

func TestParseElementsRejectsMalformed(t *testing.T) {
	tests := []struct {
		name   string
		l1, l2 string
	}{
		{"short line1", issLine1[:60], issLine2},
		{"short line2", issLine1, issLine2[:10]},
		{"swapped", issLine2, issLine1},
		{"bad checksum line1", issLine1[:68] + "3", issLine2},
		{"bad checksum line2", issLine1, issLine2[:68] + "8"},
		{"mismatched catalog numbers", issLine1, "2 25545" + issLine2[7:]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseElements(tt.l1, tt.l2); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestParseTLETextResyncs(t *testing.T) {
	raw := "GARBAGE\nISS (ZARYA)\n" + issLine1 + "\n" + issLine2 + "\n\n"
	entries, errs := ParseTLEText(raw)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].Name != "ISS (ZARYA)" {
		t.Errorf("name = %q", entries[0].Name)
	}
	if len(errs) == 0 {
		t.Error("expected the garbage group to be reported")
	}
}

func TestSelectionBuild(t *testing.T) {
	older, _ := ParseElements(
		"1 25544U 98067A   24100.50000000  .00016717  00000-0  10270-3 0  9009",
		"2 25544  51.6400 100.0000 0001000   0.0000   0.0000 15.50000000    01",
	)
	newer, _ := ParseElements(issLine1, issLine2)

	entries := []Entry{
		{Name: "ISS (ZARYA)", Elements: older},
		{Name: "ISS (ZARYA)", Elements: newer},
		{Name: "GOES 16", Elements: newer},
	}

	t.Run("categories", func(t *testing.T) {
		sel := Selection{Categories: map[string]bool{"station": true, "specialized": false}}
		sats := sel.Build(entries)
		if len(sats) != 1 {
			t.Fatalf("got %d satellites, want 1", len(sats))
		}
		if !sats[0].Elements.Epoch.Equal(newer.Epoch) {
			t.Errorf("kept epoch %v, want newest %v", sats[0].Elements.Epoch, newer.Epoch)
		}
		if sats[0].Mode != "voice" {
			t.Errorf("mode = %q", sats[0].Mode)
		}
	})

	t.Run("explicit names", func(t *testing.T) {
		sel := Selection{Names: []string{"GOES 16"}}
		sats := sel.Build(entries)
		if len(sats) != 1 || sats[0].Name != "GOES 16" {
			t.Fatalf("got %+v, want only GOES 16", sats)
		}
	})
}
