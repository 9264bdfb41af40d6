// Command metronome boots the core pipeline: timing service, configuration
// store, audio detection, BPM estimation, and output controller. It is the
// thin wiring layer spec.md §1 calls out as outside the core's own scope —
// it constructs collaborators and hands off to the runtime, nothing more.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/tapsync/metronome/internal/audio"
	"github.com/tapsync/metronome/internal/bpm"
	"github.com/tapsync/metronome/internal/config"
	"github.com/tapsync/metronome/internal/fanout"
	"github.com/tapsync/metronome/internal/metrics"
	"github.com/tapsync/metronome/internal/output"
	"github.com/tapsync/metronome/internal/timing"
)

func main() {
	configDir := pflag.String("config-dir", "/var/lib/metronome", "directory holding the persisted configuration store")
	rtcDevice := pflag.String("rtc-device", "/dev/rtc0", "I2C real-time clock character device")
	midiAddr := pflag.String("midi-addr", "239.0.0.1:5004", "RTP-MIDI control port destination")
	metricsAddr := pflag.String("metrics-addr", ":9090", "address to serve Prometheus metrics on")
	synthetic := pflag.Bool("synthetic-audio", false, "drive the audio pipeline from a synthetic waveform instead of hardware capture")
	logLevel := pflag.String("log-level", "info", "debug, info, warn, or error")
	pflag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	if lvl, err := log.ParseLevel(*logLevel); err == nil {
		logger.SetLevel(lvl)
	}

	if err := run(*configDir, *rtcDevice, *midiAddr, *metricsAddr, *synthetic, logger); err != nil {
		logger.Fatal("metronome exited", "err", err)
	}
}

func run(configDir, rtcDevice, midiAddr, metricsAddr string, synthetic bool, logger *log.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clockSource := timing.NewMonotonicSource()
	// RTC open/ioctl failures surface per call (via the health monitor),
	// not at construction; a missing device degrades rather than halts.
	rtc := timing.NewLinuxRTC(rtcDevice)
	sntp := timing.NewSNTPClient("")
	clock := timing.NewService(clockSource, rtc, sntp)
	go clock.RunHealthMonitor(ctx, logger.With("component", "timing"))

	backend, err := config.NewFileBackend(configDir)
	if err != nil {
		return err
	}
	store := config.NewStore(backend, clock.TimestampUS, logger.With("component", "config"))
	if err := store.Init(); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	m := metrics.New()
	m.MustRegister(reg)

	detector := audio.NewDetector(audioConfigFrom(store.GetAudio()))
	estimator := bpm.NewEstimator(bpmConfigFrom(store.GetBPM()), logger.With("component", "bpm"))

	sender, err := output.DialUDPSender(midiAddr)
	if err != nil {
		return err
	}
	defer sender.Close()
	scheduler := output.NewScheduler(sender, clock.TimestampUS, 0x6d65_7472)

	relayLine, err := output.OpenRelayLine("gpiochip0", 17)
	var relay *output.RelayController
	if err != nil {
		logger.Warn("relay gpio unavailable, running without relay output", "err", err)
	} else {
		relay = output.NewRelayController(relayLine, relayConfigFrom(store.GetOutput()))
		defer relay.Shutdown()
	}

	beatBus := fanout.NewBus[audio.BeatEvent]()
	telemetryBus := fanout.NewBus[audio.Telemetry]()
	bpmBus := fanout.NewRateLimited(fanout.NewBus[bpm.Update](), 500*time.Millisecond)

	detector.OnBeat(func(e audio.BeatEvent) {
		m.BeatsDetected.Inc()
		m.AGCLevel.Set(float64(e.AGCLevelDB))
		beatBus.Publish(e)
		estimator.AddTap(e.TimestampUS)
	})
	detector.OnTelemetry(func(t audio.Telemetry) {
		telemetryBus.Publish(t)
	})
	estimator.OnUpdate(func(u bpm.Update) {
		m.BPMCurrent.Set(u.BPM)
		if u.Stable {
			m.BPMStable.Set(1)
		} else {
			m.BPMStable.Set(0)
		}
		if u.Corrected {
			m.CorrectionsFired.Inc()
		}
		scheduler.SetBPM(u.BPM)
		_ = bpmBus.Publish(u)
	})

	store.OnChange(func(e config.ChangeEvent) {
		switch e.Section {
		case "audio":
			detector.SetConfig(audioConfigFrom(store.GetAudio()))
		case "bpm":
			estimator.SetConfig(bpmConfigFrom(store.GetBPM()))
		case "output":
			scheduler.SetPPQN(store.GetOutput().MIDIPPQN)
			if relay != nil {
				relay.SetConfig(relayConfigFrom(store.GetOutput()))
			}
		}
	})

	if synthetic {
		startSyntheticCapture(ctx, detector, clock)
	}

	scheduler.StartSync(clock.TimestampUS())

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: metricsAddr, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server stopped", "err", err)
		}
	}()

	hotPathLoop(ctx, clock, scheduler, relay)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// hotPathLoop is the single-threaded cooperative loop from spec.md §5: on
// every pass it advances the MIDI scheduler and the relay state machine.
// The real ADC drain (for hardware capture) happens the same way, pulled
// into this loop via the sample ring; omitted here since the synthetic
// source pushes straight through the detector for simplicity in the
// reference boot sequence.
func hotPathLoop(ctx context.Context, clock *timing.Service, scheduler *output.Scheduler, relay *output.RelayController) {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := clock.TimestampUS()
			scheduler.Tick(now)
			if relay != nil {
				relay.Tick(now)
			}
		}
	}
}

func startSyntheticCapture(ctx context.Context, detector *audio.Detector, clock *timing.Service) {
	ring := audio.NewSampleRing()
	wave := func(i uint64) uint16 { return 2048 }
	src := audio.NewSyntheticSource(16000, wave, clock.TimestampUS)
	src.Start(ctx, ring)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if s, ok := ring.Pop(); ok {
					detector.ProcessSample(s.Value, s.TimestampUS)
				}
			}
		}
	}()
}

func audioConfigFrom(s config.AudioSection) audio.Config {
	return audio.Config{
		ThresholdMargin: s.ThresholdMargin,
		DebounceUS:      uint64(s.DebounceMS) * 1000,
		NominalGainDB:   s.NominalGainDB,
		KickOnlyMode:    s.KickOnlyMode,
	}
}

func bpmConfigFrom(s config.BPMSection) bpm.Config {
	return bpm.Config{
		MinBPM:                    s.MinBPM,
		MaxBPM:                    s.MaxBPM,
		StabilityThresholdPercent: s.StabilityThresholdPercent,
		CorrectionEnabled:         s.CorrectionEnabled,
	}
}

func relayConfigFrom(s config.OutputSection) output.RelayConfig {
	return output.RelayConfig{
		Enabled:    s.RelayEnabled,
		PulseUS:    uint64(s.RelayPulseMS) * 1000,
		WatchdogUS: uint64(s.RelayWatchdogMS) * 1000,
		DebounceUS: uint64(s.RelayDebounceMS) * 1000,
	}
}
