// trackctl is a command-line client for the crypto tracker API and push channel.
// Usage: go run ./cmd/trackctl stream --config configs/tracker.local.yaml
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/docopt/docopt-go"

	"github.com/marvelcn015/crypto-tracker/internal/api"
	"github.com/marvelcn015/crypto-tracker/internal/auth"
	"github.com/marvelcn015/crypto-tracker/internal/config"
	"github.com/marvelcn015/crypto-tracker/internal/connection"
	"github.com/marvelcn015/crypto-tracker/internal/market"
	"github.com/marvelcn015/crypto-tracker/internal/model"
	"github.com/marvelcn015/crypto-tracker/internal/router"
	"github.com/marvelcn015/crypto-tracker/internal/tracker"
	"github.com/marvelcn015/crypto-tracker/internal/version"
)

const usage = `Crypto tracker control.

Usage:
    trackctl stream [--config=<path>] [--verbose]
    trackctl watch <asset> [--config=<path>] [--verbose]
    trackctl favorite <asset> [--config=<path>] [--verbose]
    trackctl alerts [--status=<status>] [--config=<path>] [--verbose]
    trackctl -h | --help
    trackctl --version

Options:
    -h --help            Show this screen.
    --version            Show version.
    --config=<path>      Path to config file [default: configs/tracker.local.yaml].
    --status=<status>    Only list alerts in this status: pending or triggered.
    --verbose            Print debug logs and full payloads.`

func main() {
	opts, err := docopt.ParseArgs(usage, os.Args[1:], version.String())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	configPath, _ := opts.String("--config")
	verbose, _ := opts.Bool("--verbose")

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	cfg, err := config.LoadAndValidate(configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err, "config", configPath)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	creds, err := auth.LoadCredentials(cfg.API.Token, cfg.API.TokenPath)
	if err != nil {
		logger.Error("failed to load API credentials", "error", err)
		os.Exit(1)
	}
	client := api.NewClient(cfg.API.RestURL, creds,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, time.Second),
		api.WithUserAgent("trackctl/"+version.Version),
	)

	cmd := &command{cfg: cfg, creds: creds, client: client, logger: logger, verbose: verbose}

	if stream, _ := opts.Bool("stream"); stream {
		err = cmd.stream(ctx)
	} else if watch, _ := opts.Bool("watch"); watch {
		asset, _ := opts.String("<asset>")
		err = cmd.watch(ctx, asset)
	} else if favorite, _ := opts.Bool("favorite"); favorite {
		asset, _ := opts.String("<asset>")
		err = cmd.favorite(ctx, asset)
	} else if alerts, _ := opts.Bool("alerts"); alerts {
		status, _ := opts.String("--status")
		err = cmd.alerts(ctx, model.AlertStatus(status))
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type command struct {
	cfg     *config.TrackerConfig
	creds   *auth.Credentials
	client  *api.Client
	logger  *slog.Logger
	verbose bool
}

// service builds a tracker with its own push channel.
func (c *command) service() (*tracker.Service, error) {
	dispatcher := router.NewDispatcher(c.logger)

	mc := connection.DefaultManagerConfig()
	mc.Transports = c.cfg.Connection.Transports
	mc.ReconnectAttempts = c.cfg.Connection.ReconnectAttempts
	mc.ReconnectDelay = c.cfg.Connection.ReconnectDelay
	mc.Transport.WSURL = c.cfg.API.WSURL
	mc.Transport.PollURL = c.cfg.API.PollURL
	mc.Transport.Credentials = c.creds
	mc.Transport.PollTimeout = c.cfg.Connection.PollTimeout

	mgr, err := connection.NewManager(mc, dispatcher, c.logger)
	if err != nil {
		return nil, err
	}

	svcCfg := tracker.DefaultConfig()
	svcCfg.Refresh.AssetLimit = c.cfg.Sync.AssetLimit
	svcCfg.Refresh.Timeout = c.cfg.API.Timeout
	return tracker.New(svcCfg, c.client, mgr, dispatcher, tracker.WithLogger(c.logger)), nil
}

// stream prints every pushed event until interrupted.
func (c *command) stream(ctx context.Context) error {
	svc, err := c.service()
	if err != nil {
		return err
	}

	topics := []string{
		router.TopicConnectionStatus,
		router.TopicPriceUpdate,
		router.TopicPriceBatchUpdate,
		router.TopicAlertTriggered,
		router.TopicError,
	}
	for _, topic := range topics {
		svc.Subscribe(topic, c.printMessage)
	}

	if err := svc.Start(ctx); err != nil {
		return err
	}
	fmt.Println("streaming - press Ctrl+C to stop")

	<-ctx.Done()
	return stop(svc)
}

func (c *command) printMessage(msg router.Message) {
	if msg.Value != nil {
		if state, ok := msg.Value.(connection.ChannelState); ok {
			fmt.Printf("[%s] status=%s socket=%s\n", msg.Topic, state.Status, state.SocketID)
			return
		}
		data, _ := json.Marshal(msg.Value)
		fmt.Printf("[%s] %s\n", msg.Topic, data)
		return
	}

	if c.verbose {
		fmt.Printf("[%s] %s\n", msg.Topic, msg.Data)
		return
	}

	switch msg.Topic {
	case router.TopicPriceUpdate:
		if u, err := router.DecodePriceUpdate(msg.Data); err == nil {
			fmt.Printf("[PRICE] asset=%s price=%.8g change_24h=%.2f\n", u.AssetID, u.Price, u.Change24h)
			return
		}
	case router.TopicPriceBatchUpdate:
		if updates, err := router.DecodePriceBatch(msg.Data); err == nil {
			fmt.Printf("[PRICE BATCH] updates=%d\n", len(updates))
			return
		}
	case router.TopicAlertTriggered:
		if ev, err := router.DecodeAlertTriggered(msg.Data); err == nil {
			fmt.Printf("[ALERT] id=%s asset=%s %s %.8g at %.8g\n",
				ev.AlertID, ev.AssetID, ev.Condition, ev.TargetPrice, ev.TriggeredPrice)
			return
		}
	}
	fmt.Printf("[%s] %s\n", msg.Topic, msg.Data)
}

// watch joins the asset's room and prints its price on every change.
func (c *command) watch(ctx context.Context, asset string) error {
	svc, err := c.service()
	if err != nil {
		return err
	}

	changes, closeFeed := svc.Store().Watch()
	release := svc.WatchAsset(asset)

	if err := svc.Start(ctx); err != nil {
		release()
		closeFeed()
		return err
	}

	detail, err := svc.FetchAsset(ctx, asset)
	if err != nil {
		release()
		closeFeed()
		_ = stop(svc)
		return fmt.Errorf("fetch %s: %w", asset, err)
	}
	fmt.Printf("%s (%s) price=%.8g change_24h=%.2f change_7d=%.2f\n",
		detail.Name, detail.Symbol, detail.CurrentPrice, detail.PriceChange24h, detail.PriceChange7d)

	go func() {
		<-ctx.Done()
		closeFeed()
	}()

	for {
		batch := changes.ReceiveBatch(0)
		if batch == nil {
			break
		}
		for _, ch := range batch {
			if ch.ID != asset || ch.Asset == nil {
				continue
			}
			if ch.Kind == market.ChangePriceUpdated || ch.Kind == market.ChangeAssetUpserted {
				fmt.Printf("%s %s price=%.8g change_24h=%.2f\n",
					ch.At.Format(time.TimeOnly), ch.Asset.ID, ch.Asset.CurrentPrice, ch.Asset.PriceChange24h)
			}
		}
	}

	release()
	return stop(svc)
}

// favorite toggles the asset's favorite flag and reports the result.
func (c *command) favorite(ctx context.Context, asset string) error {
	svc, err := c.service()
	if err != nil {
		return err
	}
	if err := svc.Refresh(ctx); err != nil {
		c.logger.Warn("refresh incomplete", "error", err)
	}

	p, err := svc.ToggleFavorite(ctx, asset)
	if err != nil {
		return err
	}
	if err := p.Wait(ctx); err != nil {
		return fmt.Errorf("favorite %s: %w (reverted)", asset, err)
	}

	if svc.Store().IsFavorite(asset) {
		fmt.Printf("%s added to favorites\n", asset)
	} else {
		fmt.Printf("%s removed from favorites\n", asset)
	}
	return nil
}

// alerts lists alerts, optionally filtered by status.
func (c *command) alerts(ctx context.Context, status model.AlertStatus) error {
	switch status {
	case "", model.AlertPending, model.AlertTriggered:
	default:
		return fmt.Errorf("invalid status %q", status)
	}

	alerts, err := c.client.ListAlerts(ctx, status)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tASSET\tCONDITION\tTARGET\tCURRENT\tSTATUS\tCREATED")
	for _, a := range alerts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.8g\t%.8g\t%s\t%s\n",
			a.ID, a.AssetSymbol, a.Condition, a.TargetPrice, a.CurrentPrice, a.Status,
			a.CreatedAt.Format(time.DateTime))
	}
	return w.Flush()
}

func stop(svc *tracker.Service) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return svc.Stop(ctx)
}
