// Command sensor-node reports debounced digital inputs and temperature/humidity
// readings over MQTT and accepts simple commands.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/sensor-node/internal/command"
	"github.com/sweeney/sensor-node/internal/comms"
	"github.com/sweeney/sensor-node/internal/config"
	"github.com/sweeney/sensor-node/internal/conn"
	"github.com/sweeney/sensor-node/internal/gpio"
	"github.com/sweeney/sensor-node/internal/input"
	"github.com/sweeney/sensor-node/internal/link"
	"github.com/sweeney/sensor-node/internal/minmax"
	"github.com/sweeney/sensor-node/internal/mqtt"
	"github.com/sweeney/sensor-node/internal/rtc"
	"github.com/sweeney/sensor-node/internal/sensor"
	"github.com/sweeney/sensor-node/internal/status"
	"github.com/sweeney/sensor-node/internal/web"
)

const linkPoll = 500 * time.Millisecond

func main() {
	configPath := flag.String("config", "", "YAML config file (default: search ./sensor-node.yaml, /etc/sensor-node/config.yaml)")
	broker := flag.String("broker", "", "MQTT broker address (overrides config)")
	httpAddr := flag.String("http", "", "HTTP status address, empty to disable (overrides config)")
	wsBroker := flag.String("ws-broker", "", `MQTT websocket URL for live UI ("=broker" derives from broker, "off" disables)`)
	printState := flag.Bool("print-state", false, "Print current input state and exit")

	flag.Parse()

	path, err := config.FindConfig(*configPath)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}

	// Only flags given on the command line override the file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "broker":
			cfg.MQTT.Broker = *broker
		case "http":
			cfg.HTTP.Addr = *httpAddr
		case "ws-broker":
			cfg.MQTT.WSBroker = *wsBroker
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("fatal: invalid config: %v", err)
	}
	if path != "" {
		log.Printf("config: loaded %s", path)
	}

	if err := run(cfg, *printState); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg *config.Config, printState bool) error {
	channels := cfg.Channels()

	var inputs gpio.Inputs
	if len(channels) > 0 {
		in, err := gpio.NewRealInputs(cfg.GPIO.Chip, channels)
		if err != nil {
			return fmt.Errorf("init gpio: %w", err)
		}
		defer in.Close()
		inputs = in
	}

	if printState {
		return printInputs(os.Stdout, inputs, channels)
	}

	var led command.Output
	if cfg.GPIO.LEDPin >= 0 {
		out, err := gpio.NewRealOutput(cfg.GPIO.Chip, cfg.GPIO.LEDPin)
		if err != nil {
			return fmt.Errorf("init led: %w", err)
		}
		defer out.Close()
		led = out
	}

	bootCount, err := status.NextBootCount(cfg.BootCountFile)
	if err != nil {
		log.Printf("boot counter unavailable: %v", err)
	}
	boot := status.Boot{ID: mqtt.NewBootID(), Count: bootCount}

	start := time.Now()
	topics := mqtt.NewTopics(cfg.MQTT.BaseTopic)
	lp := link.NewEnvProvider(cfg.Link.EnvFile, cfg.Link.Interface)
	session := mqtt.NewRealSession(mqtt.RealConfig{
		Broker:   cfg.MQTT.Broker,
		Username: cfg.MQTT.Username,
		Password: cfg.MQTT.Password,
	})
	mgr := conn.New(conn.Config{
		Identity:     cfg.Device,
		StatusTopic:  topics.Status,
		CmdTopic:     topics.Cmd,
		LinkRetry:    cfg.Link.Retry,
		SessionRetry: cfg.MQTT.SessionRetry,
	}, lp, session, start)
	out := comms.New(mgr, topics, cfg.Device, cfg.Version)
	disp := command.NewDispatcher(out, led)
	mgr.SetHandler(disp.HandleMessage)

	var monitor *input.Monitor
	if inputs != nil {
		monitor, err = input.NewMonitor(channels, inputs, cfg.GPIO.Debounce)
		if err != nil {
			return fmt.Errorf("init inputs: %w", err)
		}
		for i := range channels {
			inputs.OnEdge(i, monitor.EdgeHandler(i))
		}
	} else {
		log.Printf("no inputs configured")
	}

	var reader sensor.Reader
	sensorInterval := cfg.Sensor.Interval
	if cfg.Sensor.Device != "" && sensorInterval > 0 {
		reader = sensor.NewIIOReader(cfg.Sensor.Device)
		if sensorInterval < sensor.MinInterval {
			log.Printf("sensor interval %v below minimum, using %v", sensorInterval, sensor.MinInterval)
			sensorInterval = sensor.MinInterval
		}
	}

	var clock rtc.Source = rtc.NewSystem()
	if cfg.RTCPath != "" {
		clock = rtc.NewSysfs(cfg.RTCPath)
	}

	ws := resolveWSBroker(cfg.MQTT.WSBroker, cfg.MQTT.Broker)
	tracker := status.NewTracker(start, status.Config{
		Device:      cfg.Device,
		Version:     cfg.Version,
		TickMs:      cfg.Tick.Milliseconds(),
		DebounceMs:  cfg.GPIO.Debounce.Milliseconds(),
		HeartbeatMs: cfg.Heartbeat.Milliseconds(),
		SensorMs:    sensorInterval.Milliseconds(),
		Broker:      cfg.MQTT.Broker,
		BaseTopic:   cfg.MQTT.BaseTopic,
		HTTPAddr:    cfg.HTTP.Addr,
		WSBroker:    ws,
	}, boot)
	network := func() *status.NetworkInfo { return networkInfo(lp.Info()) }
	tracker.SetNetwork(network())
	if monitor != nil {
		tracker.UpdateInputs(monitor.Snapshot())
	}

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTP.Addr)
	}

	log.Printf("started: device=%s boot=%d inputs=%d tick=%v debounce=%v broker=%s heartbeat=%v sensor=%v",
		cfg.Device, boot.Count, len(channels), cfg.Tick, cfg.GPIO.Debounce, cfg.MQTT.Broker, cfg.Heartbeat, sensorInterval)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Link.Startup)
	mgr.AwaitLink(ctx, linkPoll)
	cancel()

	n := &node{
		mgr:            mgr,
		comms:          out,
		monitor:        monitor,
		disp:           disp,
		sensor:         reader,
		clock:          clock,
		minmax:         minmax.NewTracker(),
		alarms:         &minmax.Thresholds{Low: cfg.Alarm.LowC, High: cfg.Alarm.HighC},
		tracker:        tracker,
		network:        network,
		boot:           boot,
		heartbeat:      cfg.Heartbeat,
		sensorInterval: sensorInterval,
	}

	ticker := time.NewTicker(cfg.Tick)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(n, time.Now, ticker.C, sigCh)
}

// node bundles the components driven by the control loop.
type node struct {
	mgr     *conn.Manager
	comms   *comms.Comms
	monitor *input.Monitor // nil without inputs
	disp    *command.Dispatcher
	sensor  sensor.Reader // nil disables sampling
	clock   rtc.Source
	minmax  *minmax.Tracker
	alarms  *minmax.Thresholds
	tracker *status.Tracker
	network func() *status.NetworkInfo
	boot    status.Boot

	heartbeat      time.Duration // 0 disables
	sensorInterval time.Duration

	lastHeartbeat time.Time
	lastSample    time.Time
	sampled       bool
}

func runLoop(n *node, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	n.lastHeartbeat = now()

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			n.refreshStatus()
			if n.comms.PublishHeartbeat(status.FormatStatusEvent(n.tracker.Snapshot(), "SHUTDOWN", signalName)) {
				log.Printf("published shutdown event")
			}
			n.mgr.Shutdown()
			return nil

		case <-tick:
			n.step(now())
		}
	}
}

// step runs one control-loop iteration.
func (n *node) step(t time.Time) {
	n.mgr.Service(t)

	if n.mgr.LinkJustConnected() {
		log.Printf("link up (%s)", n.mgr.LinkStatus())
	}
	if n.mgr.SessionJustConnected() {
		if n.comms.PublishBoot(n.boot.ID, n.boot.Count) {
			log.Printf("published boot announcement #%d", n.boot.Count)
		}
	}

	if n.monitor != nil {
		for _, ev := range n.monitor.Service(t) {
			log.Printf("event: pin %d %s", ev.Pin, status.InputState(ev.Active))
			n.comms.PublishEvent(ev)
		}
	}

	if n.sensor != nil && (!n.sampled || t.Sub(n.lastSample) >= n.sensorInterval) {
		n.sampled = true
		n.lastSample = t
		n.sample(t)
	}

	n.refreshStatus()

	if n.heartbeat > 0 && t.Sub(n.lastHeartbeat) >= n.heartbeat {
		n.lastHeartbeat = t
		if n.network != nil {
			n.tracker.SetNetwork(n.network())
		}
		snap := n.tracker.Snapshot()
		log.Printf("heartbeat: uptime=%v link=%s session=%v commands=%d",
			snap.Uptime().Truncate(time.Second), snap.LinkStatus, snap.SessionConnected, snap.Commands)
		n.comms.PublishHeartbeat(status.FormatStatusEvent(snap, "HEARTBEAT", ""))
	}
}

// sample reads the sensor once and publishes the reading, the daily record
// and any new alarm. A failed read skips the cycle.
func (n *node) sample(t time.Time) {
	r, err := n.sensor.Read(t)
	if err != nil {
		log.Printf("sensor read failed: %v", err)
		n.tracker.SensorFailed()
		n.comms.PublishLog("sensor read failed")
		return
	}

	epoch := n.clock.Now()
	n.tracker.SetReading(status.Reading{TempC: r.TempC, HumPct: r.HumPct, Epoch: epoch, At: t})
	n.comms.PublishReading(epoch, r.TempC, r.HumPct, n.boot.Count)

	if n.minmax.Update(r.TempC, epoch) != minmax.Skipped {
		n.comms.PublishMinMax(epoch, n.minmax.Stats())
	}
	if a := n.alarms.Check(r.TempC); a != nil {
		log.Printf("alarm: %s %.1f (threshold %.1f)", a.Type, a.TempC, a.ThresholdC)
		n.comms.PublishAlarm(epoch, *a)
	}
	n.tracker.SetMinMax(n.minmax.Stats(), n.alarms.Active())
}

// refreshStatus copies loop-owned state into the tracker for HTTP and
// heartbeat consumers.
func (n *node) refreshStatus() {
	if n.monitor != nil {
		n.tracker.UpdateInputs(n.monitor.Snapshot())
	}
	n.tracker.SetConnection(n.mgr.LinkStatus().String(), n.mgr.IsSessionConnected())
	n.tracker.SetCommands(n.disp.LED(), n.disp.Handled())
}

func networkInfo(info *link.Info) *status.NetworkInfo {
	if info == nil {
		return nil
	}
	return &status.NetworkInfo{
		Type:       info.Type,
		IP:         info.IP,
		Status:     info.Status,
		Gateway:    info.Gateway,
		WifiStatus: info.WifiStatus,
		SSID:       info.SSID,
	}
}

func printInputs(w io.Writer, inputs gpio.Inputs, channels []input.Channel) error {
	if inputs == nil {
		fmt.Fprintln(w, "no inputs configured")
		return nil
	}
	for i, c := range channels {
		raw, err := inputs.Level(i)
		if err != nil {
			return fmt.Errorf("read pin %d: %w", c.Pin, err)
		}
		fmt.Fprintf(w, "pin %d (%s): %s\n", c.Pin, c.Polarity, status.InputState(c.Polarity.Logical(raw)))
	}
	return nil
}

// resolveWSBroker converts the ws-broker setting into a concrete URL.
// "=broker" derives ws://host:9001 from the TCP broker address; "off" and
// empty disable.
func resolveWSBroker(ws, broker string) string {
	if ws == "off" || ws == "" {
		return ""
	}
	if ws != "=broker" {
		return ws
	}
	u, err := url.Parse(broker)
	if err != nil {
		log.Printf("ws-broker: cannot parse broker %q: %v", broker, err)
		return ""
	}
	u.Scheme = "ws"
	u.Host = u.Hostname() + ":9001"
	return u.String()
}
