package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/cellnode/internal/competition"
	"github.com/mattjoyce/cellnode/internal/config"
	"github.com/mattjoyce/cellnode/internal/journal"
	"github.com/mattjoyce/cellnode/internal/log"
	"github.com/mattjoyce/cellnode/internal/protocol"
	"github.com/mattjoyce/cellnode/internal/storage"
	"github.com/mattjoyce/cellnode/internal/transport"
	"github.com/mattjoyce/cellnode/internal/tui"
)

const version = "0.3.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "run":
		os.Exit(runNode(args))
	case "watch":
		os.Exit(runWatch(args))
	case "replay":
		os.Exit(runReplay(args))
	case "check":
		os.Exit(runCheck(args))
	case "arm":
		os.Exit(runArm(args))
	case "gripper":
		os.Exit(runGripper(args))
	case "conveyor":
		os.Exit(runConveyor(args))
	case "drone":
		os.Exit(runDrone(args))
	case "version":
		fmt.Printf("cellnode version %s\n", version)
		os.Exit(0)
	case "help", "--help", "-h":
		printUsage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`cellnode - Competition node for a simulated robotic work cell

Usage:
  cellnode <command> [flags]

Node Commands:
  run                  Start the node in the foreground
  watch                Live dashboard over the bridge event stream
  replay               Re-run a journaled session and print its summary
  check                Validate and print the resolved configuration

Controller Commands:
  arm --positions P    Command the arm joints through a running node
  gripper on|off       Enable or disable the vacuum gripper
  conveyor <power>     Set conveyor power (0-100)
  drone <shipment>     Dispatch the delivery drone

General:
  version              Show version information
  help                 Show this help message

All commands accept --config PATH. Use 'cellnode <command> -h' for flags.
`)
}

func loadConfig(path string) (*config.Config, bool) {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, false
	}
	return cfg, true
}

func runNode(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	noStart := fs.Bool("no-start", false, "Do not ask the controller to start the competition")
	if err := fs.Parse(args); err != nil {
		return flagExit(err)
	}

	cfg, ok := loadConfig(*configPath)
	if !ok {
		return 1
	}

	if cfg.Node.LogFile != "" {
		file := log.RotatingFile(cfg.Node.LogFile, cfg.Node.LogMaxSizeMB, cfg.Node.LogMaxBackups)
		defer file.Close()
		log.Setup(cfg.Node.LogLevel, cfg.Node.LogFormat, file)
	} else {
		log.Setup(cfg.Node.LogLevel, cfg.Node.LogFormat)
	}
	logger := log.WithComponent("main")
	logger.Info("cellnode starting",
		"version", version,
		"node", cfg.Node.Name,
		"config", cfg.SourcePath,
		"config_hash", cfg.SourceHash,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	n, err := newNode(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize node", "error", err)
		return 1
	}
	defer n.close()

	if err := n.run(ctx, !*noStart); err != nil {
		logger.Error("cellnode failed", "error", err)
		return 1
	}
	return 0
}

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	bridgeURL := fs.String("bridge", "", "Bridge base URL (default: http://<bridge.listen>)")
	token := fs.String("token", "", "Bridge bearer token (default: bridge.token)")
	if err := fs.Parse(args); err != nil {
		return flagExit(err)
	}

	cfg, ok := loadConfig(*configPath)
	if !ok {
		return 1
	}
	if *bridgeURL == "" {
		*bridgeURL = "http://" + cfg.Bridge.Listen
	}
	if *token == "" {
		*token = cfg.Bridge.Token
	}

	p := tea.NewProgram(tui.New(*bridgeURL, *token), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Watch failed: %v\n", err)
		return 1
	}
	return 0
}

func runReplay(args []string) int {
	fs := flag.NewFlagSet("replay", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	journalPath := fs.String("journal", "", "Journal database (default: journal.path)")
	sessionID := fs.String("session", "", "Session to replay (default: most recent)")
	list := fs.Bool("list", false, "List recorded sessions instead of replaying")
	asJSON := fs.Bool("json", false, "Print the summary as JSON")
	if err := fs.Parse(args); err != nil {
		return flagExit(err)
	}

	cfg, ok := loadConfig(*configPath)
	if !ok {
		return 1
	}
	if *journalPath == "" {
		*journalPath = cfg.Journal.Path
	}
	if _, err := os.Stat(*journalPath); err != nil {
		fmt.Fprintf(os.Stderr, "Journal not found: %s\n", *journalPath)
		return 1
	}

	// Replayed handler logs go to stderr so stdout carries only the summary.
	logger := log.New(os.Stderr, cfg.Node.LogLevel, cfg.Node.LogFormat)

	ctx := context.Background()
	db, err := storage.OpenSQLite(ctx, *journalPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open journal: %v\n", err)
		return 1
	}
	defer db.Close()
	j := journal.New(db, logger.With("component", "journal"))

	if *list {
		return printSessions(ctx, os.Stdout, j)
	}

	var session journal.Session
	if *sessionID == "" {
		session, err = j.LatestSession(ctx)
	} else {
		session, err = findSession(ctx, j, *sessionID)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to select session: %v\n", err)
		return 1
	}

	entries, err := j.Entries(ctx, session.ID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read session: %v\n", err)
		return 1
	}

	summary, replayed, err := replaySession(entries, cfg.Transport.QueueSize, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Replay failed: %v\n", err)
		return 1
	}

	if *asJSON {
		out := struct {
			Session  string               `json:"session_id"`
			Replayed int                  `json:"replayed"`
			Summary  competition.Snapshot `json:"summary"`
		}{session.ID, replayed, summary}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode summary: %v\n", err)
			return 1
		}
		return 0
	}

	fmt.Printf("Session:   %s (%s)\n", session.ID, session.Node)
	fmt.Printf("Replayed:  %d of %d envelopes\n", replayed, len(entries))
	fmt.Printf("Phase:     %s\n", phaseLabel(summary.Phase))
	fmt.Printf("Score:     %g\n", summary.Score)
	fmt.Printf("Orders:    %d %v\n", summary.Orders, summary.OrderIDs)
	fmt.Printf("Arm zeroed: %t\n", summary.Zeroed)
	return 0
}

// replaySession feeds the inbound envelopes of a session through a fresh
// bus and competition and returns the resulting summary.
func replaySession(entries []journal.Entry, queueSize int, logger *slog.Logger) (competition.Snapshot, int, error) {
	bus := transport.NewBus(
		transport.WithQueueSize(queueSize),
		transport.WithLogger(logger.With("component", "bus")),
	)
	comp := competition.New(bus, logger.With("component", "competition"))
	competition.Register(bus, comp, competition.NewDetectors(logger.With("component", "detect"), nil))

	inbound := make(map[string]bool)
	for _, ch := range protocol.InboundChannels() {
		inbound[ch] = true
	}
	replayed, err := journal.Replay(bus, entries, func(ch string) bool { return inbound[ch] })
	if err != nil {
		return competition.Snapshot{}, replayed, err
	}
	return comp.Snapshot(), replayed, nil
}

func findSession(ctx context.Context, j *journal.Journal, id string) (journal.Session, error) {
	sessions, err := j.Sessions(ctx)
	if err != nil {
		return journal.Session{}, err
	}
	for _, s := range sessions {
		if s.ID == id {
			return s, nil
		}
	}
	return journal.Session{}, fmt.Errorf("session %s not found", id)
}

func printSessions(ctx context.Context, w io.Writer, j *journal.Journal) int {
	sessions, err := j.Sessions(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list sessions: %v\n", err)
		return 1
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tNODE\tSTARTED\tENDED\tEVENTS")
	for _, s := range sessions {
		ended := "-"
		if s.EndedAt != nil {
			ended = s.EndedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", s.ID, s.Node, s.StartedAt.Format(time.RFC3339), ended, s.Events)
	}
	if err := tw.Flush(); err != nil {
		return 1
	}
	return 0
}

func runCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		return flagExit(err)
	}

	cfg, ok := loadConfig(*configPath)
	if !ok {
		return 1
	}

	source := cfg.SourcePath
	if source == "" {
		source = "(defaults and environment)"
	}
	fmt.Printf("Config:  %s\n", source)
	if cfg.SourceHash != "" {
		fmt.Printf("BLAKE3:  %s\n", cfg.SourceHash)
	}
	fmt.Println("Status:  valid")
	fmt.Println()

	shown := *cfg
	if shown.Bridge.Token != "" {
		shown.Bridge.Token = "********"
	}
	out, err := yaml.Marshal(&shown)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render config: %v\n", err)
		return 1
	}
	fmt.Print(string(out))
	return 0
}

func runArm(args []string) int {
	fs := flag.NewFlagSet("arm", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	bridgeURL := fs.String("bridge", "", "Bridge base URL (default: http://<bridge.listen>)")
	token := fs.String("token", "", "Bridge bearer token (default: bridge.token)")
	positions := fs.String("positions", "", fmt.Sprintf("Comma-separated target positions for the %d arm joints", len(protocol.ArmJointNames)))
	zero := fs.Bool("zero", false, "Send every joint to 0.0")
	moveTime := fs.Duration("time", competition.ArmMoveTimeFromStart, "Time allowed to reach the target")
	if err := fs.Parse(args); err != nil {
		return flagExit(err)
	}
	if (*positions == "") == !*zero {
		fmt.Fprintln(os.Stderr, "Usage: cellnode arm [--config PATH] --positions p1,...,p8 | --zero [--time 1s]")
		return 1
	}

	var target []float64
	if *zero {
		target = make([]float64, len(protocol.ArmJointNames))
	} else {
		parsed, err := parsePositions(*positions)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid positions: %v\n", err)
			return 1
		}
		target = parsed
	}

	cfg, ok := loadConfig(*configPath)
	if !ok {
		return 1
	}
	if *bridgeURL == "" {
		*bridgeURL = "http://" + cfg.Bridge.Listen
	}
	if *token == "" {
		*token = cfg.Bridge.Token
	}
	logger := log.New(os.Stderr, cfg.Node.LogLevel, cfg.Node.LogFormat).With("component", "arm")

	pub := newBridgePublisher(*bridgeURL, *token)
	if err := competition.SendArmToState(pub, target, *moveTime, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid arm command: %v\n", err)
		return 1
	}
	if pub.err != nil {
		fmt.Fprintf(os.Stderr, "Arm command failed: %v\n", pub.err)
		return 1
	}
	fmt.Println("queued")
	return 0
}

func parsePositions(list string) ([]float64, error) {
	fields := strings.Split(list, ",")
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func runGripper(args []string) int {
	fs := flag.NewFlagSet("gripper", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		return flagExit(err)
	}
	if fs.NArg() != 1 || (fs.Arg(0) != "on" && fs.Arg(0) != "off") {
		fmt.Fprintln(os.Stderr, "Usage: cellnode gripper [--config PATH] on|off")
		return 1
	}
	enable := fs.Arg(0) == "on"
	return runControl(*configPath, func(ctx context.Context, c competition.ServiceClient, l *slog.Logger) (bool, error) {
		return competition.ControlGripper(ctx, c, enable, l)
	})
}

func runConveyor(args []string) int {
	fs := flag.NewFlagSet("conveyor", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		return flagExit(err)
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: cellnode conveyor [--config PATH] <power>")
		return 1
	}
	power, err := strconv.ParseFloat(fs.Arg(0), 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid power %q: %v\n", fs.Arg(0), err)
		return 1
	}
	return runControl(*configPath, func(ctx context.Context, c competition.ServiceClient, l *slog.Logger) (bool, error) {
		return competition.ControlConveyor(ctx, c, power, l)
	})
}

func runDrone(args []string) int {
	fs := flag.NewFlagSet("drone", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		return flagExit(err)
	}
	if fs.NArg() != 1 || fs.Arg(0) == "" {
		fmt.Fprintln(os.Stderr, "Usage: cellnode drone [--config PATH] <shipment_type>")
		return 1
	}
	shipment := fs.Arg(0)
	return runControl(*configPath, func(ctx context.Context, c competition.ServiceClient, l *slog.Logger) (bool, error) {
		return competition.ControlDrone(ctx, c, shipment, l)
	})
}

type controlFunc func(ctx context.Context, client competition.ServiceClient, logger *slog.Logger) (bool, error)

// runControl performs one controller service call, waiting for the service
// if it is not up yet. Ctrl+C abandons the wait.
func runControl(configPath string, call controlFunc) int {
	cfg, ok := loadConfig(configPath)
	if !ok {
		return 1
	}
	logger := log.New(os.Stderr, cfg.Node.LogLevel, cfg.Node.LogFormat).With("component", "control")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := transport.NewHTTPServiceClient(
		cfg.Transport.ServicesURL,
		cfg.Transport.PollInterval,
		cfg.Transport.CallTimeout,
		logger,
	)
	success, err := call(ctx, client, logger)
	switch {
	case err != nil:
		fmt.Fprintf(os.Stderr, "Service call failed: %v\n", err)
		return 1
	case !success:
		fmt.Fprintln(os.Stderr, "Controller reported failure")
		return 1
	}
	fmt.Println("ok")
	return 0
}

func flagExit(err error) int {
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	return 1
}

func phaseLabel(phase string) string {
	if phase == protocol.PhaseUnknown {
		return "unknown"
	}
	return phase
}
