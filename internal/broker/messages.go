package broker

// Control-channel messages sent from trackerd to the recording station.

// PowerOn is the advisory prepare signal sent to the power controller.
type PowerOn struct {
	Command          string `json:"command"`
	Reason           string `json:"reason"`
	Code             int    `json:"code"`
	ScheduledTime    string `json:"scheduled_time"`
	DurationEstimate int    `json:"duration_estimate"`
}

// PassParams is the capture window for one pass.
type PassParams struct {
	ID           string  `json:"id"`
	Satellite    string  `json:"satellite"`
	Category     string  `json:"category"`
	Frequency    float64 `json:"frequency"`
	Mode         string  `json:"mode"`
	StartTime    string  `json:"start_time"`
	EndTime      string  `json:"end_time"`
	MaxElevation float64 `json:"max_elevation"`
	Duration     float64 `json:"duration"`
}

// SchedulePass is the authoritative capture request.
type SchedulePass struct {
	Command string     `json:"command"`
	Pass    PassParams `json:"pass"`
}

const (
	CommandPowerOn      = "power_on"
	CommandSchedulePass = "schedule_pass"
)
