package predict

import (
	"bufio"
	"context"
	"io"
	"log"
	"net"
	"testing"
	"time"

	"github.com/large-farva/passrelay/internal/config"
)

// fakeGPSD answers one connection with the given report lines after the
// client's WATCH command.
func fakeGPSD(t *testing.T, lines ...string) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		if _, err := bufio.NewReader(conn).ReadString(';'); err != nil {
			return
		}
		for _, l := range lines {
			io.WriteString(conn, l+"\n")
		}
		time.Sleep(200 * time.Millisecond)
	}()
	return ln.Addr().String()
}

func TestObserverFromGPSD(t *testing.T) {
	tests := []struct {
		name string
		tpv  string
		want Observer
	}{
		{"altMSL", `{"class":"TPV","mode":3,"lat":51.5,"lon":-0.12,"altHAE":80,"altMSL":35}`, Observer{Lat: 51.5, Lon: -0.12, Alt: 35}},
		{"legacy alt", `{"class":"TPV","mode":3,"lat":51.5,"lon":-0.12,"alt":35}`, Observer{Lat: 51.5, Lon: -0.12, Alt: 35}},
		{"2d fix", `{"class":"TPV","mode":2,"lat":48.1,"lon":11.6}`, Observer{Lat: 48.1, Lon: 11.6}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr := fakeGPSD(t,
				`{"class":"VERSION","release":"3.25"}`,
				`{"class":"TPV","mode":1}`,
				tt.tpv,
			)
			obs, err := ObserverFromGPSD(context.Background(), addr, 2*time.Second)
			if err != nil {
				t.Fatal(err)
			}
			if obs != tt.want {
				t.Errorf("observer = %+v, want %+v", obs, tt.want)
			}
		})
	}
}

func TestResolveObserverFallsBack(t *testing.T) {
	addr := fakeGPSD(t, `{"class":"TPV","mode":1}`)
	cfg := config.ObserverConfig{Latitude: 40.7, Longitude: -73.9, Altitude: 10, UseGPSD: true, GPSDHost: addr}

	obs := ResolveObserver(context.Background(), cfg, log.New(io.Discard, "", 0))
	if obs.Lat != 40.7 || obs.Lon != -73.9 || obs.Alt != 10 {
		t.Errorf("observer = %+v, want configured position", obs)
	}
}
