//go:build windows

package osdep

import (
	"golang.org/x/sys/windows"
)

// ResourceUsage returns user and system CPU time of the OS process, in
// nanoseconds.
func ResourceUsage() (int64, int64) {
	var creation, exit, kernel, user windows.Filetime
	err := windows.GetProcessTimes(windows.CurrentProcess(), &creation, &exit, &kernel, &user)
	if err != nil {
		return 0, 0
	}
	return filetimeDuration(user), filetimeDuration(kernel)
}

// MaxRSS is not supported on windows.
func MaxRSS() int64 {
	return 0
}

// filetime durations are counted in 100ns intervals
func filetimeDuration(ft windows.Filetime) int64 {
	return (int64(ft.HighDateTime)<<32 | int64(ft.LowDateTime)) * 100
}
