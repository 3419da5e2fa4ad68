package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ladapp/lad/pkg/chargelimit"
	"github.com/ladapp/lad/pkg/config"
	"github.com/ladapp/lad/pkg/display"
	"github.com/ladapp/lad/pkg/events"
	"github.com/ladapp/lad/pkg/peripheral"
	"github.com/ladapp/lad/pkg/powerscheme"
	"github.com/ladapp/lad/pkg/probe"
	"github.com/ladapp/lad/pkg/utils/osver"
	"github.com/ladapp/lad/pkg/version"
)

// environmentReader is the probe surface used by the HTTP handlers.
type environmentReader interface {
	Read() probe.Sample
	BatteryStatus() (probe.BatteryStatus, error)
	FanSpeeds() (map[string]uint64, error)
}

type deviceLister interface {
	Devices() ([]peripheral.DeviceRecord, error)
}

type chargeInfo interface {
	Manufacturer() (string, error)
	Strategy() (chargelimit.Strategy, bool)
	IsSupported() bool
	Instructions() string
}

type baselineKeeper interface {
	Baseline() powerscheme.Baseline
	ResetBaseline() error
}

var (
	conf         config.Config
	hub          *events.EventHub
	orch         *Orchestrator
	env          environmentReader
	monitors     display.Enumerator
	peripherals  deviceLister
	charger      chargeInfo
	baselines    baselineKeeper
	logBuffer    = NewLogBuffer(logBufferSize)
	pollRecorder = NewTimeSeriesRecorder(60, 2*time.Second)

	// serverDone is closed when the daemon starts shutting down.
	serverDone = make(chan struct{})
	// shutdownRequested is signalled by POST /shutdown.
	shutdownRequested = make(chan struct{}, 1)
	stopOnce          sync.Once
)

func setupRoutes(metrics *Metrics) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logrus.StandardLogger()))
	router.GET("/config", getConfig)
	router.GET("/status", getStatus)
	router.GET("/readiness", getReadiness)
	router.PUT("/battery-guard", setBatteryGuard)
	router.GET("/battery-guard/instructions", getBatteryGuardInstructions)
	router.POST("/reapply", postReapply)
	router.POST("/eject", postEject)
	router.POST("/safety-revert", postSafetyRevert)
	router.GET("/devices", getDevices)
	router.GET("/screens", getScreens)
	router.GET("/battery", getBattery)
	router.GET("/fans", getFans)
	router.GET("/baseline", getBaseline)
	router.DELETE("/baseline", deleteBaseline)
	router.GET("/logs", getLogs)
	router.GET("/events", getEvents)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.POST("/shutdown", postShutdown)
	router.GET("/version", getVersion)

	return router
}

func postShutdown(c *gin.Context) {
	select {
	case shutdownRequested <- struct{}{}:
	default:
	}
	c.IndentedJSON(http.StatusCreated, "shutting down, reverting all settings")
}

// startup records the running version, clears the first-run flag and seeds
// the power baselines from the live system when the config has none.
func startup(power *powerscheme.Controller) {
	if conf.FirstRun() {
		logrus.Info("CONFIG: first run")
		conf.SetFirstRun(false)
	}
	if last := conf.LastVersion(); last != version.Version {
		if last != "" {
			logrus.Infof("CONFIG: upgraded from %s to %s", last, version.Version)
		}
		conf.SetLastVersion(version.Version)
	}
	if err := conf.Save(); err != nil {
		logrus.Errorf("CONFIG: failed to save config: %v", err)
	}

	power.SeedBaseline()
}

func Run(configPath string, unixSocketPath string, allowNonRoot bool) error {
	defer RecoverCrash("Startup Error")

	var err error
	conf, err = config.NewFile(configPath)
	if err != nil {
		logrus.Fatalf("failed to parse config during startup: %v", err)
	}
	logrus.WithFields(conf.(*config.File).LogrusFields()).Infof("config loaded")
	if v, ok := osver.Get(); ok {
		logrus.WithField("build", v.Build).Infof("running on Windows %s", v)
	}

	setCrashLogDir(filepath.Dir(configPath))
	logrus.AddHook(logBuffer)
	log := logrus.StandardLogger()

	hub = events.NewEventHub()
	metrics := NewMetrics()

	disp := display.New(log)
	prb := probe.NewNative(disp, hub, log)
	power := powerscheme.New(configBaselineStore{conf: conf, log: log}, powerscheme.Options{LiveFallback: conf.LiveBaselineFallback()}, log)
	periph := peripheral.New(power, log)
	charge := chargelimit.New(log)

	env, monitors, peripherals, charger, baselines = prb, disp, periph, charge, power

	startup(power)

	orch = NewOrchestrator(Dependencies{
		Env:        prb,
		Power:      power,
		Display:    disp,
		Peripheral: periph,
		Charge:     charge,
		Guard:      conf,
		Hub:        hub,
		Metrics:    metrics,
		Log:        log,
	}, Options{ResumeDelay: conf.ResumeDelay()})
	setLive(orch)
	defer clearLive()

	// The machine may already be docked.
	orch.Evaluate()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := &http.Server{
		Handler: setupRoutes(metrics),
	}

	// A stale socket from a crashed daemon blocks Listen.
	if err := os.Remove(unixSocketPath); err != nil && !os.IsNotExist(err) {
		logrus.Warnf("failed to remove stale socket %s: %v", unixSocketPath, err)
	}
	l, err := net.Listen("unix", unixSocketPath)
	if err != nil {
		logrus.Fatal(err)
	}

	if conf.AllowNonRootAccess() || allowNonRoot {
		logrus.Infof("non-root access is allowed, changing permissions of %s to 0777", unixSocketPath)
		err = os.Chmod(unixSocketPath, 0777)
		if err != nil {
			logrus.Fatal(err)
		}
	}

	// Serve HTTP on unix socket
	go func() {
		defer RecoverCrash("HTTP Server")
		logrus.Infof("http server listening on %s", l.Addr().String())
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatal(err)
		}
	}()

	// Listen to power, display and hotkey notifications.
	go func() {
		defer RecoverCrash("Notification Listener")
		err := listenNotifications(notifyHandlers{
			suspend:        orch.OnSuspend,
			resume:         orch.OnResume,
			powerChanged:   func() { prb.Poll() },
			displayChanged: func() { prb.Poll() },
			hotkey:         func() { _ = orch.SafetyRevert() },
		})
		if err != nil {
			logrus.Errorf("failed to listen to system notifications: %v", err)
		}
	}()

	p := &poller{
		source:   prb,
		policy:   orch,
		resumer:  orch,
		recorder: pollRecorder,
		interval: conf.PollInterval,
		log:      log,
	}
	go func() {
		defer RecoverCrash("Poll Loop")
		logrus.Debugln("poll loop starts")
		p.run(ctx)
		logrus.Debugln("poll loop stopped")
	}()

	j, err := newJobs(prb, metrics, log)
	if err != nil {
		logrus.Errorf("failed to schedule background jobs: %v", err)
	} else {
		j.start()
	}

	watchConfig(ctx, configPath, power)

	// Handle common process-killing signals, so we can gracefully shut down:
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-sigc:
		logrus.Infof("caught signal \"%s\": shutting down.", sig)
	case <-shutdownRequested:
		logrus.Info("shutdown requested by client")
	}

	cancel()
	if j != nil {
		logrus.Info("stopping background jobs")
		j.stop()
	}

	stopOnce.Do(func() { close(serverDone) })
	logrus.Info("shutting down http server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = srv.Shutdown(shutdownCtx)
	if err != nil {
		logrus.Errorf("failed to shutdown http server: %v", err)
	}
	shutdownCancel()

	logrus.Info("stopping listening notifications")
	stopListeningNotifications()

	report := orch.RevertAll()
	if n := report.Failed(); n > 0 {
		logrus.Warnf("exit revert finished with %d failed step(s)", n)
	}
	orch.Close()

	if err := os.Remove(unixSocketPath); err != nil && !os.IsNotExist(err) {
		logrus.Warnf("failed to remove socket %s: %v", unixSocketPath, err)
	}

	logrus.Info("exiting")
	return nil
}

// watchConfig reloads the config file when it changes on disk.
func watchConfig(ctx context.Context, configPath string, power *powerscheme.Controller) {
	w, err := config.NewWatcher(configPath)
	if err != nil {
		logrus.Warnf("CONFIG: hot reload disabled: %v", err)
		return
	}

	changed := make(chan struct{}, 1)
	go w.Run(ctx, changed)
	go func() {
		defer RecoverCrash("Config Watcher")
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case <-changed:
				if err := conf.Load(); err != nil {
					logrus.Errorf("CONFIG: failed to reload config: %v", err)
					continue
				}
				power.SetOptions(powerscheme.Options{LiveFallback: conf.LiveBaselineFallback()})
				logrus.WithFields(conf.(*config.File).LogrusFields()).Info("CONFIG: config reloaded")
			}
		}
	}()
}
