//go:build linux

package timing

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// LinuxRTC talks to an I²C real-time clock exposed by the kernel as a
// /dev/rtcN character device, the standard Linux RTC subsystem interface
// for I²C parts like the DS3231/PCF8523 common on rehearsal-room hardware.
type LinuxRTC struct {
	path string
}

// NewLinuxRTC opens no file handle up front; ReadTime/SetTime open, ioctl,
// and close per call so a transient I/O failure never leaves a stale
// descriptor behind.
func NewLinuxRTC(devicePath string) *LinuxRTC {
	if devicePath == "" {
		devicePath = "/dev/rtc0"
	}
	return &LinuxRTC{path: devicePath}
}

func (r *LinuxRTC) ReadTime(ctx context.Context) (time.Time, error) {
	f, err := os.OpenFile(r.path, os.O_RDONLY, 0)
	if err != nil {
		return time.Time{}, fmt.Errorf("timing: open %s: %w", r.path, err)
	}
	defer f.Close()

	rt, err := unix.IoctlGetRTCTime(int(f.Fd()))
	if err != nil {
		return time.Time{}, fmt.Errorf("timing: ioctl RTC_RD_TIME: %w", err)
	}

	return time.Date(
		int(rt.Year)+1900, time.Month(rt.Mon+1), int(rt.Mday),
		int(rt.Hour), int(rt.Min), int(rt.Sec), 0, time.UTC,
	), nil
}

func (r *LinuxRTC) SetTime(ctx context.Context, t time.Time) error {
	f, err := os.OpenFile(r.path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("timing: open %s: %w", r.path, err)
	}
	defer f.Close()

	t = t.UTC()
	rt := &unix.RTCTime{
		Sec:  int32(t.Second()),
		Min:  int32(t.Minute()),
		Hour: int32(t.Hour()),
		Mday: int32(t.Day()),
		Mon:  int32(t.Month() - 1),
		Year: int32(t.Year() - 1900),
	}

	if err := unix.IoctlSetRTCTime(int(f.Fd()), rt); err != nil {
		return fmt.Errorf("timing: ioctl RTC_SET_TIME: %w", err)
	}
	return nil
}
