// Command spacebus runs the spacecraft control console simulation: it reads
// panel inputs, drives the scenario and mirrors activity to MQTT and Redis.
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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/spacebus/internal/config"
	"github.com/sweeney/spacebus/internal/console"
	"github.com/sweeney/spacebus/internal/dispatch"
	"github.com/sweeney/spacebus/internal/gpio"
	"github.com/sweeney/spacebus/internal/input"
	"github.com/sweeney/spacebus/internal/journal"
	"github.com/sweeney/spacebus/internal/metrics"
	"github.com/sweeney/spacebus/internal/mirror"
	"github.com/sweeney/spacebus/internal/mqtt"
	"github.com/sweeney/spacebus/internal/state"
	"github.com/sweeney/spacebus/internal/status"
	"github.com/sweeney/spacebus/internal/web"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file")
	tick := flag.Duration("tick", 0, "Simulation tick")
	firewall := flag.Duration("firewall", 0, "Input debounce window")
	broker := flag.String("broker", "", "MQTT broker address")
	heartbeat := flag.Duration("heartbeat", 0, "Heartbeat interval (0 to disable)")
	httpAddr := flag.String("http", "", "HTTP status address")
	scenarioPath := flag.String("scenario", "", "Scenario descriptor")
	redisAddr := flag.String("redis", "", "Redis address for the state mirror")
	journalPath := flag.String("journal", "", "SQLite journal path")
	printState := flag.Bool("print-state", false, "Print the cell table and exit")
	wsBroker := flag.String("ws-broker", "=broker", `MQTT websocket URL for live UI ("=broker" derives from --broker, "off" disables)`)

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}

	// Flags given on the command line win over the file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "tick":
			cfg.Console.Tick = *tick
		case "firewall":
			cfg.Console.Firewall = *firewall
		case "broker":
			cfg.MQTT.Broker = *broker
		case "heartbeat":
			cfg.Console.Heartbeat = *heartbeat
		case "http":
			cfg.HTTP.Addr = *httpAddr
		case "scenario":
			cfg.Console.Scenario = *scenarioPath
		case "redis":
			cfg.Redis.Addr = *redisAddr
		case "journal":
			cfg.Journal.Path = *journalPath
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
	if cfg.MQTT.WSBroker == "" {
		cfg.MQTT.WSBroker = resolveWSBroker(*wsBroker, cfg.MQTT.Broker)
	}

	if err := run(cfg, *printState); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func buildStore(cfg *config.Config) (*state.Store, error) {
	specs := state.DefaultTable()
	if cfg.Console.Cells != "" {
		var err error
		if specs, err = state.LoadTable(cfg.Console.Cells); err != nil {
			return nil, fmt.Errorf("load cells: %w", err)
		}
	}
	store, err := state.New(specs)
	if err != nil {
		return nil, fmt.Errorf("build store: %w", err)
	}
	store.SetLogger(log.Default())
	return store, nil
}

func consoleConfig(cc config.ConsoleConfig) console.Config {
	return console.Config{
		Input: input.Config{
			Firewall:        cc.Firewall,
			ChannelFirewall: cc.ChannelFirewall,
			AxisStep:        cc.AxisStep,
			Ignored:         cc.Ignored,
		},
		FreqIncrement: cc.FreqIncrement,
		Sounds:        console.SoundTable(cc.SoundLengths()),
	}
}

func run(cfg *config.Config, printState bool) error {
	store, err := buildStore(cfg)
	if err != nil {
		return err
	}

	// Print state mode
	if printState {
		c := console.New(consoleConfig(cfg.Console), store, nil, nil)
		c.Reset()
		printCells(os.Stdout, store)
		return nil
	}

	// Initialize GPIO
	var reader gpio.Reader
	if cfg.GPIO.Chip != "" {
		if len(cfg.GPIO.Inputs) > 0 {
			r, err := gpio.NewRealReader(cfg.GPIO.Chip, cfg.GPIO.Inputs)
			if err != nil {
				return fmt.Errorf("init gpio: %w", err)
			}
			defer r.Close()
			reader = r
		}
		if len(cfg.GPIO.LEDs) > 0 {
			leds, err := gpio.NewRealIndicators(cfg.GPIO.Chip, cfg.GPIO.LEDs)
			if err != nil {
				return fmt.Errorf("init gpio leds: %w", err)
			}
			defer leds.Close()
			store.SetIndicators(leds)
		}
	}

	c := console.New(consoleConfig(cfg.Console), store, nil, log.Default())

	if cfg.Journal.Path != "" {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer j.Close()
		c.SetRecorder(j)
		log.Printf("journal: %s", cfg.Journal.Path)
	}

	if err := c.LoadScenario(cfg.Console.Scenario); err != nil {
		return fmt.Errorf("load scenario: %w", err)
	}

	reg := prometheus.NewRegistry()
	collector, err := metrics.NewCollector(reg)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	c.Bus().Tap(collector.Tap)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	commands := make(chan web.Request)

	// Initialize Redis mirror
	var mir *mirror.Mirror
	if cfg.Redis.Addr != "" {
		dialCtx, dialCancel := context.WithTimeout(ctx, 5*time.Second)
		backend, err := mirror.NewRedisBackend(dialCtx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		dialCancel()
		if err != nil {
			return fmt.Errorf("init redis: %w", err)
		}
		mir = mirror.New(backend, mirror.Options{Key: cfg.Redis.Key, Channel: cfg.Redis.Channel, Logger: log.Default()})
		defer func() {
			cancel()
			mir.Close()
		}()
		store.AddListener(mir)
		go mir.ListenCommands(ctx, func(name, arg string) {
			if err := sendCommand(ctx, commands, console.Command{Name: name, Step: arg}); err != nil {
				log.Printf("redis command %s: %v", name, err)
			}
		})
		log.Printf("mirroring state to redis %s key=%s", cfg.Redis.Addr, cfg.Redis.Key)
	}

	// Initialize MQTT
	var (
		publisher  mqtt.Publisher
		mqttStatus mqtt.ConnectionStatus
		inputs     <-chan input.RawEvent
	)
	if cfg.MQTT.Broker != "" {
		p := mqtt.NewRealPublisher(mqtt.Options{
			Broker:     cfg.MQTT.Broker,
			ClientID:   cfg.MQTT.ClientID,
			Prefix:     cfg.MQTT.Prefix,
			BufferSize: cfg.MQTT.BufferSize,
			Logger:     log.Default(),
		})
		defer p.Close()
		publisher, mqttStatus, inputs = p, p, p.Inputs()
		wireMQTT(c, p)
	}

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		TickMs:      cfg.Console.Tick.Milliseconds(),
		FirewallMs:  cfg.Console.Firewall.Milliseconds(),
		HeartbeatMs: cfg.Console.Heartbeat.Milliseconds(),
		Broker:      cfg.MQTT.Broker,
		HTTPAddr:    cfg.HTTP.Addr,
		WSBroker:    cfg.MQTT.WSBroker,
		Prefix:      cfg.MQTT.Prefix,
		Scenario:    cfg.Console.Scenario,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	c.Reset()
	if mir != nil {
		if err := mir.Seed(ctx, store.Dump()); err != nil {
			log.Printf("Warning: %v", err)
		}
	}
	if cfg.Console.AutoStart {
		if err := c.StartGame(); err != nil {
			return err
		}
	}
	updateTracker(tracker, c, collector)

	// Publish startup event with full status snapshot
	if publisher != nil {
		snap := tracker.Snapshot()
		startupEvent := mqtt.SystemEvent{
			Timestamp:  snap.Now,
			Event:      "STARTUP",
			Retained:   true,
			RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
		}
		if err := publisher.PublishSystem(startupEvent); err != nil {
			log.Printf("failed to publish startup event: %v", err)
		} else {
			log.Printf("published startup event")
		}
	}

	// Start HTTP status server
	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, commands, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTP.Addr)
	}

	log.Printf("started: scenario=%q steps=%d tick=%v firewall=%v broker=%s heartbeat=%v",
		c.Engine().Name(), len(c.Engine().Steps()), cfg.Console.Tick, cfg.Console.Firewall, cfg.MQTT.Broker, cfg.Console.Heartbeat)

	ticker := time.NewTicker(cfg.Console.Tick)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	l := &loop{
		console:    c,
		reader:     reader,
		publisher:  publisher,
		mqttStatus: mqttStatus,
		tracker:    tracker,
		metrics:    collector,
		step:       cfg.Console.Tick,
		heartbeat:  cfg.Console.Heartbeat,
		now:        time.Now,
		tick:       ticker.C,
		sig:        sigCh,
		commands:   commands,
		inputs:     inputs,
	}
	return l.run()
}

// wireMQTT mirrors bus events and cell changes to the broker.
func wireMQTT(c *console.Console, p mqtt.Publisher) {
	c.Bus().Tap(func(e dispatch.Event) {
		if err := p.PublishEvent(e); err != nil {
			log.Printf("publish error: %v", err)
		}
	})
	c.Store().AddListener(statePublisher{p})
}

type statePublisher struct{ p mqtt.Publisher }

func (s statePublisher) StateChanged(ch state.Change) {
	if err := s.p.PublishState(ch); err != nil {
		log.Printf("publish error: %v", err)
	}
}

// sendCommand hands cmd to the loop and waits for its answer.
func sendCommand(ctx context.Context, commands chan<- web.Request, cmd console.Command) error {
	req := web.Request{Command: cmd, Reply: make(chan error, 1)}
	select {
	case commands <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.Reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// loop owns the console. Everything that touches it runs on run's goroutine.
type loop struct {
	console    *console.Console
	reader     gpio.Reader
	edges      gpio.Edges
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	metrics    *metrics.Collector
	step       time.Duration
	heartbeat  time.Duration
	now        func() time.Time
	tick       <-chan time.Time
	sig        <-chan os.Signal
	commands   <-chan web.Request
	inputs     <-chan input.RawEvent

	lastHeartbeat time.Time
}

func (l *loop) run() error {
	l.lastHeartbeat = l.now()

	for {
		select {
		case s := <-l.sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			l.shutdown(signalName)
			return nil

		case ev := <-l.inputs:
			l.console.Input(ev)

		case req := <-l.commands:
			err := l.console.Do(req.Command)
			l.refresh()
			req.Reply <- err

		case <-l.tick:
			t := l.now()
			if l.reader != nil {
				levels, err := l.reader.Read()
				if err != nil {
					log.Printf("gpio read error: %v", err)
				} else {
					l.console.Input(l.edges.Events(levels)...)
				}
			}

			l.console.Tick(l.step)

			if err := l.console.Err(); err != nil {
				log.Printf("scenario error: %v", err)
				l.shutdown("SCENARIO_ERROR")
				return err
			}

			// Check for heartbeat
			if l.heartbeat > 0 && t.Sub(l.lastHeartbeat) >= l.heartbeat {
				l.lastHeartbeat = t
				l.publishHeartbeat(t)
			}

			l.refresh()
		}
	}
}

// refresh updates the status tracker for HTTP consumers.
func (l *loop) refresh() {
	if l.tracker == nil {
		return
	}
	updateTracker(l.tracker, l.console, l.metrics)
	if l.mqttStatus != nil {
		l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
	}
}

func (l *loop) publishHeartbeat(t time.Time) {
	snap := l.console.Snapshot()
	log.Printf("heartbeat: scenario=%q state=%s step=%q games=%d won=%d lost=%d",
		snap.Scenario, snap.State, snap.Step, snap.Stats.Games, snap.Stats.StepsWon, snap.Stats.StepsLost)
	if l.publisher == nil {
		return
	}

	hbEvent := mqtt.SystemEvent{
		Timestamp: t,
		Event:     "HEARTBEAT",
	}
	if l.tracker != nil {
		// Refresh network info for heartbeat
		if net := readNetworkInfo(); net != nil {
			l.tracker.SetNetwork(net)
		}
		l.refresh()
		hbEvent.RawPayload = status.FormatStatusEvent(l.tracker.Snapshot(), "HEARTBEAT", "")
	}
	if err := l.publisher.PublishSystem(hbEvent); err != nil {
		log.Printf("heartbeat publish error: %v", err)
	}
}

func (l *loop) shutdown(reason string) {
	if l.publisher == nil {
		return
	}
	event := mqtt.SystemEvent{
		Timestamp: l.now(),
		Event:     "SHUTDOWN",
		Reason:    reason,
		Retained:  true,
	}
	if l.tracker != nil {
		l.refresh()
		event.RawPayload = status.FormatStatusEvent(l.tracker.Snapshot(), "SHUTDOWN", reason)
	}
	if err := l.publisher.PublishSystem(event); err != nil {
		log.Printf("failed to publish shutdown event: %v", err)
	} else {
		log.Printf("published shutdown event")
	}
}

func updateTracker(tracker *status.Tracker, c *console.Console, collector *metrics.Collector) {
	snap := c.Snapshot()
	collector.Observe(snap)
	tracker.Update(gameStatus(snap), countsStatus(snap.Stats))

	values := c.Store().Dump()
	cells := make(map[string]any, len(values))
	for name, v := range values {
		cells[name] = v.Interface()
	}
	tracker.SetCells(cells)
}

func gameStatus(s console.Snapshot) status.Game {
	return status.Game{
		Scenario:      s.Scenario,
		State:         s.State.String(),
		Step:          s.Step,
		Index:         s.Index,
		Steps:         s.Steps,
		Paused:        s.Paused,
		Elapsed:       s.Elapsed,
		SimTime:       s.SimTime,
		MainPower:     s.MainPower,
		SolarPower:    s.SolarPower,
		PendingTimers: s.PendingTimers,
	}
}

func countsStatus(s console.Stats) status.Counts {
	return status.Counts{
		Games:      s.Games,
		StepsWon:   s.StepsWon,
		StepsLost:  s.StepsLost,
		Vetoes:     s.Vetoes,
		RawInputs:  s.Input.Raw,
		Emitted:    s.Input.Emitted,
		Ghosts:     s.Input.Ghosts,
		Suppressed: s.Input.Suppressed,
	}
}

func printCells(w io.Writer, store *state.Store) {
	for _, name := range store.Names() {
		cell, err := store.Cell(name)
		if err != nil {
			continue
		}
		line := fmt.Sprintf("%-28s %-9s %v", name, cell.Kind(), cell.Value())
		if key := cell.HardwareKey(); key != "" {
			line += "  key=" + key
		}
		if id, ok := cell.IndicatorID(); ok {
			line += fmt.Sprintf("  led=%d", id)
		}
		fmt.Fprintln(w, line)
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

// resolveWSBroker converts the --ws-broker flag value into a concrete URL.
// "=broker" derives ws://host:9001 from the TCP broker address; empty disables.
func resolveWSBroker(ws, broker string) string {
	if ws == "off" || broker == "" && ws == "=broker" {
		return ""
	}
	if ws != "=broker" {
		return ws
	}
	u, err := url.Parse(broker)
	if err != nil {
		log.Printf("ws-broker: cannot parse --broker %q: %v", broker, err)
		return ""
	}
	u.Scheme = "ws"
	u.Host = u.Hostname() + ":9001"
	return u.String()
}
