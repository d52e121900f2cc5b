//go:build linux

package migration

import (
	"bytes"
	"os"
	"strconv"

	"github.com/spf13/afero"
	"golang.org/x/sys/unix"
)

// SystemProbe reads live process and host metrics from the kernel.
type SystemProbe struct {
	dir string
	fs  afero.Fs // procfs reads
}

// NewSystemProbe returns a probe that measures free disk under dir.
func NewSystemProbe(dir string) *SystemProbe {
	if dir == "" {
		dir = os.TempDir()
	}
	return &SystemProbe{dir: dir, fs: afero.NewOsFs()}
}

// MemoryPressure is the process's resident set as a fraction of physical
// memory. Page cache and other processes do not count.
func (p *SystemProbe) MemoryPressure() float64 {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0
	}
	total := uint64(info.Totalram) * uint64(info.Unit)
	rss, err := p.residentBytes()
	if err != nil {
		return 0
	}
	return memoryFraction(rss, total)
}

// residentBytes reads the resident page count from /proc/self/statm.
func (p *SystemProbe) residentBytes() (uint64, error) {
	data, err := afero.ReadFile(p.fs, "/proc/self/statm")
	if err != nil {
		return 0, err
	}
	fields := bytes.Fields(data)
	if len(fields) < 2 {
		return 0, strconv.ErrSyntax
	}
	pages, err := strconv.ParseUint(string(fields[1]), 10, 64)
	if err != nil {
		return 0, err
	}
	return pages * uint64(unix.Getpagesize()), nil
}

func (p *SystemProbe) AvailableDiskBytes() int64 {
	var st unix.Statfs_t
	if err := unix.Statfs(p.dir, &st); err != nil {
		return -1
	}
	return int64(st.Bavail) * int64(st.Bsize)
}

// IsForegrounded reports whether the process owns its terminal. A process with
// no controlling terminal is treated as foregrounded.
func (p *SystemProbe) IsForegrounded() bool {
	pgrp, err := unix.IoctlGetInt(int(os.Stdin.Fd()), unix.TIOCGPGRP)
	if err != nil {
		return true
	}
	return pgrp == unix.Getpgrp()
}

func (p *SystemProbe) HasNetwork() bool {
	return hasRoutableInterface()
}
