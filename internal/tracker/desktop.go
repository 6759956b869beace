package tracker

import "github.com/gen2brain/beeep"

// Desktop shows notifications through the host's notification daemon.
type Desktop struct {
	Icon string
}

// NewDesktop sets the application name notifications are shown under.
func NewDesktop(appName, icon string) *Desktop {
	beeep.AppName = appName //nolint:reassign // beeep only exposes the app name as a package variable.
	return &Desktop{Icon: icon}
}

func (d *Desktop) Notify(title, body string) error {
	return beeep.Notify(title, body, d.Icon)
}
