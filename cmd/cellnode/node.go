package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/mattjoyce/cellnode/internal/bridge"
	"github.com/mattjoyce/cellnode/internal/competition"
	"github.com/mattjoyce/cellnode/internal/config"
	"github.com/mattjoyce/cellnode/internal/events"
	"github.com/mattjoyce/cellnode/internal/journal"
	"github.com/mattjoyce/cellnode/internal/lock"
	"github.com/mattjoyce/cellnode/internal/log"
	"github.com/mattjoyce/cellnode/internal/metrics"
	"github.com/mattjoyce/cellnode/internal/storage"
	"github.com/mattjoyce/cellnode/internal/transport"
)

// node is one running cellnode: the bus, the competition state and the
// optional bridge and journal wired around it.
type node struct {
	cfg    *config.Config
	logger *slog.Logger

	metrics     *metrics.Metrics
	bus         *transport.Bus
	hub         *events.Hub
	competition *competition.Competition
	services    competition.ServiceClient

	bridge  *bridge.Server
	db      *sql.DB
	journal *journal.Journal
	lock    *lock.PIDLock
	session string
}

// newNode builds the node from cfg. Nothing is running until run is called.
func newNode(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*node, error) {
	n := &node{cfg: cfg, logger: logger}

	n.metrics = metrics.New()
	n.bus = transport.NewBus(
		transport.WithQueueSize(cfg.Transport.QueueSize),
		transport.WithLogger(log.WithComponent("bus")),
		transport.WithRecorder(n.metrics),
	)
	n.metrics.TrackQueueDepth(n.bus.Depth)

	n.hub = events.NewHub(cfg.Bridge.EventBuffer)
	n.bus.AddTap(n.hub.Record)

	n.competition = competition.New(n.bus, log.WithComponent("competition"))
	competition.Register(n.bus, n.competition, competition.NewDetectors(log.WithComponent("detect"), nil))

	if cfg.Journal.Enabled {
		if err := n.openJournal(ctx); err != nil {
			n.close()
			return nil, err
		}
	}

	if cfg.Bridge.Enabled {
		n.bridge = bridge.New(bridge.Config{
			Listen:       cfg.Bridge.Listen,
			MaxBodyBytes: cfg.Bridge.MaxBodyBytes,
			Token:        cfg.Bridge.Token,
		}, n.bus, n.hub, log.WithComponent("bridge"),
			bridge.WithServiceHost(n.bus),
			bridge.WithMetrics(n.metrics),
		)
	}

	n.services = transport.NewHTTPServiceClient(
		cfg.Transport.ServicesURL,
		cfg.Transport.PollInterval,
		cfg.Transport.CallTimeout,
		log.WithComponent("services"),
	)
	competition.RelayControls(n.bus, n.services, log.WithComponent("control"))
	return n, nil
}

func (n *node) openJournal(ctx context.Context) error {
	path := n.cfg.Journal.Path
	lockPath := lock.PathFor(path)
	l, err := lock.Acquire(lockPath)
	if err != nil {
		return fmt.Errorf("acquire journal lock: %w", err)
	}
	n.lock = l
	n.logger.Info("acquired journal lock", "path", lockPath)

	db, err := storage.OpenSQLite(ctx, path)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	n.db = db

	n.journal = journal.New(db, log.WithComponent("journal"))
	session, err := n.journal.Begin(ctx, n.cfg.Node.Name)
	if err != nil {
		return err
	}
	n.session = session
	n.bus.AddTap(n.journal.Record)
	n.logger.Info("journal opened", "path", path, "session_id", session)
	return nil
}

// run starts the node and blocks until ctx is cancelled or a component
// fails. The competition start request is made before the bus spins, so
// no callback runs until the controller has been asked to start. The
// journal writer outlives the dispatch loop so the last envelopes Spin
// delivers are still recorded.
func (n *node) run(ctx context.Context, start bool) error {
	var journalDone chan error
	stopJournal := func() {}
	if n.journal != nil {
		var jctx context.Context
		jctx, stopJournal = context.WithCancel(context.Background())
		journalDone = make(chan error, 1)
		go func() { journalDone <- n.journal.Run(jctx) }()
	}
	defer stopJournal()

	g, gctx := errgroup.WithContext(ctx)
	if n.bridge != nil {
		g.Go(func() error { return n.bridge.Start(gctx) })
	}

	n.hub.Publish(events.TypeNode, map[string]string{"state": "starting", "node": n.cfg.Node.Name})

	spin := true
	if start {
		if err := competition.StartCompetition(gctx, n.services, log.WithComponent("competition")); err != nil {
			n.logger.Info("shutdown requested before the competition started")
			spin = false
		}
	}

	if spin {
		n.hub.Publish(events.TypeNode, map[string]string{"state": "running", "node": n.cfg.Node.Name})
		n.logger.Info("cellnode running (press Ctrl+C to stop)")
		g.Go(func() error { return n.bus.Spin(gctx) })
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	if journalDone != nil {
		stopJournal()
		if jerr := <-journalDone; jerr != nil && !errors.Is(jerr, context.Canceled) {
			n.logger.Error("journal did not close cleanly", "error", jerr)
			err = errors.Join(err, jerr)
		}
		if dropped := n.journal.Dropped(); dropped > 0 {
			n.logger.Warn("journal dropped envelopes", "dropped", dropped)
		}
	}

	n.logger.Info("cellnode stopped", "summary", n.competition.Snapshot())
	return err
}

// close releases the journal database and lock.
func (n *node) close() {
	if n.db != nil {
		if err := n.db.Close(); err != nil {
			n.logger.Warn("failed to close journal", "error", err)
		}
	}
	if n.lock != nil {
		_ = n.lock.Release()
	}
}
