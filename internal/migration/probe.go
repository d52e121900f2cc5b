package migration

import (
	"net"
)

// ResourceProbe reports on the host the migration runs on. The monitor backs
// off when any signal says the host is under stress.
type ResourceProbe interface {
	// MemoryPressure returns the process's resident memory as a fraction of
	// physical memory, 0 to 1.
	MemoryPressure() float64
	// AvailableDiskBytes returns free space in the working directory, or a
	// negative value when unknown.
	AvailableDiskBytes() int64
	IsForegrounded() bool
	HasNetwork() bool
}

// StaticProbe returns fixed readings. The zero value reports no memory
// pressure, no disk, and no network, so use NewStaticProbe for a calm host.
type StaticProbe struct {
	Memory     float64
	DiskBytes  int64
	Foreground bool
	NetworkUp  bool
}

// NewStaticProbe returns a probe describing an idle, healthy host.
func NewStaticProbe() *StaticProbe {
	return &StaticProbe{Memory: 0.1, DiskBytes: 1 << 40, Foreground: true, NetworkUp: true}
}

func (p *StaticProbe) MemoryPressure() float64   { return p.Memory }
func (p *StaticProbe) AvailableDiskBytes() int64 { return p.DiskBytes }
func (p *StaticProbe) IsForegrounded() bool      { return p.Foreground }
func (p *StaticProbe) HasNetwork() bool          { return p.NetworkUp }

// memoryFraction is used/total clamped to [0, 1]. Unknown totals read as 0.
func memoryFraction(used, total uint64) float64 {
	if total == 0 {
		return 0
	}
	if used >= total {
		return 1
	}
	return float64(used) / float64(total)
}

// hasRoutableInterface reports whether any non-loopback interface is up with
// an address assigned.
func hasRoutableInterface() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err == nil && len(addrs) > 0 {
			return true
		}
	}
	return false
}
