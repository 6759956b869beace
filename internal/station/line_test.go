package station

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/large-farva/passrelay/internal/config"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		line     string
		code     string
		duration time.Duration
		err      error
	}{
		{"103", "103", 0, nil},
		{" 107:600\r", "107", 600 * time.Second, nil},
		{"105: 30", "105", 30 * time.Second, nil},
		{"107:abc", "107", 0, ErrMalformed},
		{"107:-5", "107", 0, ErrMalformed},
		{"107:0", "107", 0, ErrMalformed},
		{":600", "", 0, ErrMalformed},
		{"", "", 0, ErrMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			req, err := ParseLine(tt.line)
			if !errors.Is(err, tt.err) {
				t.Fatalf("err = %v, want %v", err, tt.err)
			}
			if req.Code != tt.code || req.Duration != tt.duration {
				t.Errorf("got %+v", req)
			}
		})
	}
}

func TestRespondTruncates(t *testing.T) {
	out := strings.Repeat("a", 80) + "\nsecond line"
	got := Respond("103_ACK", out, 50)
	if got != "103_ACK:"+strings.Repeat("a", 50) {
		t.Errorf("got %q", got)
	}
	if got := Respond("103_ACK", "up 1\nday", 50); got != "103_ACK:up 1 day" {
		t.Errorf("newlines kept: %q", got)
	}
}

func TestRespondIsASCII(t *testing.T) {
	tests := []struct {
		tag, out, want string
	}{
		{"UNKNOWN_CODE", "10\uFFFD3", "UNKNOWN_CODE:10?3"},
		{"103_ACK", "temp 45°C\r\n", "103_ACK:temp 45?C  "},
		{"103_ACK", "caf\xe9", "103_ACK:caf?"},
	}
	for _, tt := range tests {
		if got := Respond(tt.tag, tt.out, 50); got != tt.want {
			t.Errorf("Respond(%q) = %q, want %q", tt.out, got, tt.want)
		}
	}
}

func TestDefaultTable(t *testing.T) {
	table := DefaultTable()
	if got := strings.Join(table.Codes(), ","); got != "103,104,105,106,107,108" {
		t.Errorf("codes = %s", got)
	}
	for _, code := range table.Codes() {
		c, _ := table.Lookup(code)
		if c.Kind == KindCapture && !strings.Contains(c.Cmdline, "{output}") {
			t.Errorf("%s: capture command never writes its output file", code)
		}
	}
	if c, _ := table.Lookup("104"); c.Kind != KindShutdown {
		t.Errorf("104 is %v, want shutdown", c.Kind)
	}
}

func TestExpand(t *testing.T) {
	c, _ := DefaultTable().Lookup("105")
	cmdline, name, path := c.expand("20250301_120000", "/rec")
	if name != "noaa15_20250301_120000.wav" || path != "/rec/noaa15_20250301_120000.wav" {
		t.Errorf("name %q path %q", name, path)
	}
	if !strings.HasSuffix(cmdline, "'/rec/noaa15_20250301_120000.wav' rate 11025") {
		t.Errorf("cmdline = %q", cmdline)
	}
}

func TestTableFromConfig(t *testing.T) {
	table, err := TableFromConfig([]config.CommandConfig{
		{Code: "201", Kind: "exec", Command: "df -h /"},
		{Code: "202", Kind: "capture", Command: "rec {output}", Response: "202_REC", OutputFile: "rec_{timestamp}.wav"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if c, _ := table.Lookup("201"); c.Tag != "201_ACK" || c.Kind != KindExec {
		t.Errorf("201 = %+v", c)
	}
	if _, ok := table.Lookup("103"); ok {
		t.Error("configured table should replace the defaults")
	}

	bad := [][]config.CommandConfig{
		{{Code: "1", Kind: "launch"}},
		{{Code: "1", Kind: "capture", Command: "x"}},
		{{Code: "1", Kind: "exec"}, {Code: "1", Kind: "exec"}},
		{{Code: "1:2", Kind: "exec"}},
	}
	for i, cmds := range bad {
		if _, err := TableFromConfig(cmds); err == nil {
			t.Errorf("case %d: expected an error", i)
		}
	}
}
