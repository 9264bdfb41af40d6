package timing

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// RTCDevice is the I²C real-time clock peripheral. ReadTime and SetTime
// are the only two operations the timing service needs; the concrete
// implementation in rtc_linux.go talks to /dev/rtcN.
type RTCDevice interface {
	ReadTime(ctx context.Context) (time.Time, error)
	SetTime(ctx context.Context, t time.Time) error
}

// NTPClient performs a single round-trip time query. sntp.go implements
// this against a real SNTP server; tests substitute a canned response.
type NTPClient interface {
	Query(ctx context.Context) (time.Time, error)
}

const (
	healthPollInterval  = 60 * time.Second
	failuresUntilDegrade = 3
	syncTimeout          = time.Second
)

// RTCHealthy reports the cached health state maintained by RunHealthMonitor
// (or, before the first poll, by NewService's optimistic default).
func (s *Service) RTCHealthy() bool {
	return s.health.Load()
}

// RunHealthMonitor polls the RTC every 60 seconds until ctx is canceled. It
// must run outside the hot path (e.g. a housekeeping goroutine started at
// boot); it is the only writer of the cached health flag.
func (s *Service) RunHealthMonitor(ctx context.Context, logger *log.Logger) {
	if s.rtc == nil {
		s.health.Store(false)
		return
	}

	ticker := time.NewTicker(healthPollInterval)
	defer ticker.Stop()

	// Poll once immediately so health reflects reality before the first
	// tick, rather than waiting a full interval.
	s.pollRTCOnce(ctx, logger)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pollRTCOnce(ctx, logger)
		}
	}
}

func (s *Service) pollRTCOnce(ctx context.Context, logger *log.Logger) {
	readCtx, cancel := context.WithTimeout(ctx, healthPollInterval/2)
	defer cancel()

	t, err := s.rtc.ReadTime(readCtx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.consecutiveFailures++
		if logger != nil {
			logger.Warn("rtc read failed", "consecutive_failures", s.consecutiveFailures, "err", err)
		}
		if s.consecutiveFailures >= failuresUntilDegrade {
			s.health.Store(false)
		}
		return
	}

	s.consecutiveFailures = 0
	s.health.Store(true)
	s.haveRTCRead = true
	s.lastRTCSeconds = t.Unix()
	s.lastRTCReadMonoUS = s.source.NowUS()
}

// SyncRTC attempts, for up to ~1 second, to set the RTC from a network time
// source. It returns nil on success. Failure of the network query or of
// the RTC write is reported as an error; timing.TimestampUS is unaffected
// either way.
func (s *Service) SyncRTC(ctx context.Context) error {
	if s.ntp == nil {
		return ErrTimeSourceUnavailable
	}

	syncCtx, cancel := context.WithTimeout(ctx, syncTimeout)
	defer cancel()

	wall, err := s.ntp.Query(syncCtx)
	if err != nil {
		return err
	}

	nowUS := s.source.NowUS()

	s.mu.Lock()
	s.lastSyncOK = true
	s.lastSyncOffsetUS = wall.UnixMicro() - int64(nowUS)
	s.mu.Unlock()

	if s.rtc != nil {
		if err := s.rtc.SetTime(syncCtx, wall); err != nil {
			return ErrRTCIOFailure
		}
	}

	return nil
}

// WallClockUS returns the best available wall-clock estimate in Unix
// microseconds. ok is false, with err set to ErrTimeSourceUnavailable,
// when neither a healthy RTC nor a prior successful network sync exists.
func (s *Service) WallClockUS() (us uint64, ok bool, err error) {
	nowUS := s.source.NowUS()

	s.mu.Lock()
	defer s.mu.Unlock()

	// health is optimistic ahead of the first poll (see NewService); only
	// trust the RTC branch once pollRTCOnce has actually populated
	// lastRTCSeconds/lastRTCReadMonoUS, or this would hand out a bogus
	// ~1970 wall clock with ok=true.
	if s.health.Load() && s.haveRTCRead {
		elapsed := nowUS - s.lastRTCReadMonoUS
		return uint64(s.lastRTCSeconds)*1_000_000 + elapsed, true, nil
	}

	if s.lastSyncOK {
		return uint64(int64(nowUS) + s.lastSyncOffsetUS), true, nil
	}

	return 0, false, ErrTimeSourceUnavailable
}
