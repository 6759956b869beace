// Package station is the recording side of passrelay. It reads command
// lines from the power controller, drives a single-recording-at-a-time
// capture pipeline, and hands finished recordings to the upload dispatcher.
package station

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/large-farva/passrelay/internal/config"
)

// Kind selects how a command code is handled.
type Kind int

const (
	// KindExec runs a short command synchronously and replies with its output.
	KindExec Kind = iota
	// KindCapture starts a timed capture pipeline.
	KindCapture
	// KindShutdown clears any capture and powers the station down.
	KindShutdown
)

func (k Kind) String() string {
	switch k {
	case KindExec:
		return "exec"
	case KindCapture:
		return "capture"
	case KindShutdown:
		return "shutdown"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func parseKind(s string) (Kind, error) {
	switch s {
	case "exec":
		return KindExec, nil
	case "capture":
		return KindCapture, nil
	case "shutdown":
		return KindShutdown, nil
	}
	return 0, fmt.Errorf("unknown command kind %q", s)
}

// Command is one row of the command table.
type Command struct {
	Code    string
	Kind    Kind
	Cmdline string
	// Tag prefixes every response line for this code.
	Tag string
	// Output is the capture file name template; {timestamp} is replaced
	// with the session start time. Only used by KindCapture.
	Output string
}

// Table maps command codes to commands. It is built once at startup and
// never modified.
type Table map[string]Command

// Lookup returns the command for code.
func (t Table) Lookup(code string) (Command, bool) {
	c, ok := t[code]
	return c, ok
}

// Codes returns every code in ascending order.
func (t Table) Codes() []string {
	codes := make([]string, 0, len(t))
	for c := range t {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

const rtlAPT = "rtl_fm -f %s -s 60k -g 40 -p 55 -E wav -E deemp -F 9 - | sox -t raw -e signed -c 1 -b 16 -r 60000 - %s rate 11025"

// DefaultTable is the command table of the reference station: an uptime
// query, shutdown, the three NOAA APT birds, and the ISS voice downlink.
func DefaultTable() Table {
	return Table{
		"103": {Code: "103", Kind: KindExec, Cmdline: "uptime", Tag: "103_ACK"},
		"104": {Code: "104", Kind: KindShutdown, Tag: "104_ACK"},
		"105": {
			Code: "105", Kind: KindCapture, Tag: "105_NOAA15",
			Cmdline: fmt.Sprintf(rtlAPT, "137.62M", "{output}"),
			Output:  "noaa15_{timestamp}.wav",
		},
		"106": {
			Code: "106", Kind: KindCapture, Tag: "106_NOAA18",
			Cmdline: fmt.Sprintf(rtlAPT, "137.9125M", "{output}"),
			Output:  "noaa18_{timestamp}.wav",
		},
		"107": {
			Code: "107", Kind: KindCapture, Tag: "107_NOAA19",
			Cmdline: fmt.Sprintf(rtlAPT, "137.10M", "{output}"),
			Output:  "noaa19_{timestamp}.wav",
		},
		"108": {
			Code: "108", Kind: KindCapture, Tag: "108_ISS",
			Cmdline: "rtl_fm -f 145.80M -s 48k -g 40 -p 55 - | sox -t raw -e signed -c 1 -b 16 -r 48000 - {output}",
			Output:  "iss_{timestamp}.wav",
		},
	}
}

// TableFromConfig builds the command table from [[recorder.commands]],
// falling back to DefaultTable when none are configured.
func TableFromConfig(cmds []config.CommandConfig) (Table, error) {
	if len(cmds) == 0 {
		return DefaultTable(), nil
	}
	t := make(Table, len(cmds))
	for _, c := range cmds {
		kind, err := parseKind(c.Kind)
		if err != nil {
			return nil, fmt.Errorf("command %s: %w", c.Code, err)
		}
		if _, dup := t[c.Code]; dup {
			return nil, fmt.Errorf("command %s defined twice", c.Code)
		}
		if strings.ContainsAny(c.Code, ":\n") {
			return nil, fmt.Errorf("command %s: code must not contain ':' or newlines", c.Code)
		}
		if kind == KindCapture && c.OutputFile == "" {
			return nil, fmt.Errorf("command %s: capture commands need output_file", c.Code)
		}
		tag := c.Response
		if tag == "" {
			tag = c.Code + "_ACK"
		}
		t[c.Code] = Command{Code: c.Code, Kind: kind, Cmdline: c.Command, Tag: tag, Output: c.OutputFile}
	}
	return t, nil
}

// expand fills the {timestamp} and {output} placeholders of a capture
// command. It returns the command line and the output file name.
func (c Command) expand(timestamp, dir string) (cmdline, filename, path string) {
	filename = strings.ReplaceAll(c.Output, "{timestamp}", timestamp)
	path = filepath.Join(dir, filename)
	cmdline = strings.ReplaceAll(c.Cmdline, "{timestamp}", timestamp)
	cmdline = strings.ReplaceAll(cmdline, "{output}", shellQuote(path))
	return cmdline, filename, path
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
