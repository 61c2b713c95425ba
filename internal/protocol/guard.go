package protocol

// RestoreGuard captures the device's logging / GPS-mouse-mode outputs before
// a verb changes them, and puts them back on every exit path (success,
// error, or panic) via Close. Callers open it right after reading Status
// and defer Close unconditionally:
//
//	guard := NewRestoreGuard(client, status)
//	defer guard.Close()
type RestoreGuard struct {
	client       *Client
	logging      bool
	gpsMouseMode bool
	armed        bool
}

// NewRestoreGuard records st's current mode outputs for later restoration.
func NewRestoreGuard(client *Client, st Status) *RestoreGuard {
	return &RestoreGuard{
		client:       client,
		logging:      st.GPSReceive,
		gpsMouseMode: st.GPSMouseMode,
		armed:        true,
	}
}

// Disarm marks the guard as satisfied without restoring, so a later Close
// sends nothing and the device keeps its current mode.
func (g *RestoreGuard) Disarm() {
	g.armed = false
}

// Close restores the captured mode outputs if the guard is still armed. It
// reports the restore command's own error, since a failed restoration
// leaves the device's logging state wrong for the next session and the
// caller needs to know.
func (g *RestoreGuard) Close() error {
	if !g.armed {
		return nil
	}
	g.armed = false
	return g.client.SetMode(g.logging, g.gpsMouseMode)
}
