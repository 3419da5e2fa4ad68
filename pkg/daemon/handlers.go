package daemon

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ladapp/lad/pkg/config"
	"github.com/ladapp/lad/pkg/display"
	"github.com/ladapp/lad/pkg/powerscheme"
	"github.com/ladapp/lad/pkg/probe"
	"github.com/ladapp/lad/pkg/types"
	"github.com/ladapp/lad/pkg/version"
)

func getConfig(c *gin.Context) {
	fc, err := config.NewRawFileConfigFromConfig(conf)
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	c.IndentedJSON(http.StatusOK, fc)
}

func getStatus(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, types.StatusResponse{
		Status:      orch.Status(),
		RecentPolls: pollRecorder.GetRecordsIn(time.Minute),
		Version:     version.Version,
	})
}

func getReadiness(c *gin.Context) {
	s := env.Read()
	c.IndentedJSON(http.StatusOK, types.Readiness{
		Ready:            s.Ready(),
		OnAC:             s.OnAC,
		ExternalMonitors: s.ExternalCount,
		ActiveMonitors:   s.ActiveMonitors,
	})
}

func setBatteryGuard(c *gin.Context) {
	var enabled bool
	if err := c.BindJSON(&enabled); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	conf.SetBatteryHealthGuardEnabled(enabled)
	if err := conf.Save(); err != nil {
		logrus.Errorf("saveConfig failed: %v", err)
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	msg, err := orch.SetBatteryGuard(enabled)
	if err != nil {
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	c.IndentedJSON(http.StatusCreated, msg)
}

func getBatteryGuardInstructions(c *gin.Context) {
	info := types.GuardInfo{
		Enabled:      conf.BatteryHealthGuardEnabled(),
		Supported:    charger.IsSupported(),
		Instructions: charger.Instructions(),
	}
	if m, err := charger.Manufacturer(); err == nil {
		info.Manufacturer = m
	}
	if s, ok := charger.Strategy(); ok {
		info.Method = s.Label
	}
	c.IndentedJSON(http.StatusOK, info)
}

func postReapply(c *gin.Context) {
	report := orch.Reapply()
	if report == nil {
		c.IndentedJSON(http.StatusServiceUnavailable, "daemon is shutting down")
		return
	}
	c.IndentedJSON(http.StatusCreated, report)
}

func postEject(c *gin.Context) {
	c.IndentedJSON(http.StatusCreated, orch.QuickEject())
}

func postSafetyRevert(c *gin.Context) {
	if err := orch.SafetyRevert(); err != nil {
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	c.IndentedJSON(http.StatusCreated, "display topology restored to extended")
}

func getDevices(c *gin.Context) {
	devices, err := peripherals.Devices()
	if err != nil {
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	c.IndentedJSON(http.StatusOK, devices)
}

func getScreens(c *gin.Context) {
	mons, err := monitors.Monitors()
	if err != nil {
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	if c.Query("format") == "json" {
		c.IndentedJSON(http.StatusOK, mons)
		return
	}
	c.IndentedJSON(http.StatusOK, display.ScreenInfo(mons, probe.IsInternal))
}

func getBattery(c *gin.Context) {
	st, err := env.BatteryStatus()
	if err != nil {
		c.IndentedJSON(http.StatusNotFound, err.Error())
		_ = c.AbortWithError(http.StatusNotFound, err)
		return
	}
	c.IndentedJSON(http.StatusOK, st)
}

func getFans(c *gin.Context) {
	speeds, err := env.FanSpeeds()
	if err != nil {
		logrus.Debugf("failed to read fan speeds: %v", err)
	}
	c.IndentedJSON(http.StatusOK, speeds)
}

func getBaseline(c *gin.Context) {
	b := baselines.Baseline()
	res := types.Baseline{HibernateTimeout: b.HibernateTimeout}
	if b.Scheme != nil {
		s := b.Scheme.String()
		res.PowerScheme = &s
		res.PowerSchemeName = powerscheme.SchemeName(*b.Scheme)
	}
	c.IndentedJSON(http.StatusOK, res)
}

func deleteBaseline(c *gin.Context) {
	if err := baselines.ResetBaseline(); err != nil {
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	logrus.Warn("POWER: baselines cleared, restores are refused until new values are captured")
	c.IndentedJSON(http.StatusCreated, "baselines cleared")
}

func getLogs(c *gin.Context) {
	n := 0
	if raw := c.Query("lines"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			err := fmt.Errorf("lines must be a non-negative integer, got %q", raw)
			c.IndentedJSON(http.StatusBadRequest, err.Error())
			_ = c.AbortWithError(http.StatusBadRequest, err)
			return
		}
		n = v
	}
	lines := logBuffer.Lines(n)
	if lines == nil {
		lines = []string{}
	}
	c.IndentedJSON(http.StatusOK, lines)
}

// getEvents streams hub events as server-sent events until the client goes
// away.
func getEvents(c *gin.Context) {
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	ctx := c.Request.Context()
	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()

	c.SSEvent("hello", version.Version)
	c.Writer.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case <-serverDone:
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			c.SSEvent(ev.Name, string(ev.Data))
			c.Writer.Flush()
		case <-keepalive.C:
			c.SSEvent("ping", strconv.FormatInt(time.Now().Unix(), 10))
			c.Writer.Flush()
		}
	}
}

func getVersion(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, version.Version)
}
