//go:build !linux

package migration

// SystemProbe falls back to optimistic readings where kernel metrics are not
// wired up. Only the network check is live.
type SystemProbe struct {
	dir string
}

func NewSystemProbe(dir string) *SystemProbe {
	return &SystemProbe{dir: dir}
}

func (p *SystemProbe) MemoryPressure() float64   { return 0 }
func (p *SystemProbe) AvailableDiskBytes() int64 { return -1 }
func (p *SystemProbe) IsForegrounded() bool      { return true }
func (p *SystemProbe) HasNetwork() bool          { return hasRoutableInterface() }
