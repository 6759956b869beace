package predict

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/large-farva/passrelay/internal/config"
)

// tpvReport is the subset of a gpsd TPV JSON object we need. gpsd 3.20
// split alt into altHAE and altMSL; older daemons only send alt.
type tpvReport struct {
	Class  string   `json:"class"`
	Mode   int      `json:"mode"`
	Lat    float64  `json:"lat"`
	Lon    float64  `json:"lon"`
	AltMSL *float64 `json:"altMSL"`
	Alt    float64  `json:"alt"`
}

func (r tpvReport) altitude() float64 {
	if r.AltMSL != nil {
		return *r.AltMSL
	}
	return r.Alt
}

// ObserverFromGPSD connects to gpsd, enables JSON watch mode, and reads TPV
// reports until a 2D or 3D fix arrives or the timeout elapses.
func ObserverFromGPSD(ctx context.Context, addr string, timeout time.Duration) (Observer, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return Observer{}, fmt.Errorf("gpsd connect: %w", err)
	}
	defer conn.Close()

	deadline, _ := ctx.Deadline()
	if err := conn.SetDeadline(deadline); err != nil {
		return Observer{}, fmt.Errorf("gpsd set deadline: %w", err)
	}

	if _, err := fmt.Fprint(conn, `?WATCH={"enable":true,"json":true};`); err != nil {
		return Observer{}, fmt.Errorf("gpsd watch: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var report tpvReport
		if err := json.Unmarshal(scanner.Bytes(), &report); err != nil {
			continue
		}
		if report.Class == "TPV" && report.Mode >= 2 {
			return Observer{Lat: report.Lat, Lon: report.Lon, Alt: report.altitude()}, nil
		}
	}

	if err := scanner.Err(); err != nil {
		return Observer{}, fmt.Errorf("gpsd read: %w", err)
	}
	return Observer{}, fmt.Errorf("gpsd: no fix obtained within %v", timeout)
}

// ResolveObserver returns the station position. With use_gpsd set it asks
// gpsd first and falls back to the configured coordinates.
func ResolveObserver(ctx context.Context, cfg config.ObserverConfig, logger *log.Logger) Observer {
	if cfg.UseGPSD {
		obs, err := ObserverFromGPSD(ctx, cfg.GPSDHost, 10*time.Second)
		if err == nil {
			logger.Printf("predict: location from gpsd: %.4f, %.4f, %.0fm", obs.Lat, obs.Lon, obs.Alt)
			return obs
		}
		logger.Printf("predict: gpsd failed (%v), falling back to config", err)
	}
	return Observer{Lat: cfg.Latitude, Lon: cfg.Longitude, Alt: cfg.Altitude}
}
