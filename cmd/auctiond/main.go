// Command auctiond runs the on-chain order indexer (C5) against a live
// JSON-RPC endpoint and serves the indexed state over HTTP/WebSocket.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cowbatch/auction-pipeline/params"
	"github.com/cowbatch/auction-pipeline/pkg/api"
	"github.com/cowbatch/auction-pipeline/pkg/onchain"
	"github.com/cowbatch/auction-pipeline/pkg/storage"
	"github.com/cowbatch/auction-pipeline/pkg/util"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	envPath := flag.String("env", "", "path to a .env file (optional)")
	rpcURL := flag.String("rpc", "http://localhost:8545", "JSON-RPC endpoint for block timestamps")
	quotingURL := flag.String("quoting-url", "http://localhost:8090", "base URL of the off-chain quoting API")
	listenAddr := flag.String("listen", ":8080", "REST/WebSocket listen address")
	pollInterval := flag.Duration("poll-interval", 12*time.Second, "delay between polling rounds")
	flag.Parse()

	cfg := params.LoadFromEnv(*envPath)

	log, err := util.NewLogger()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := storage.NewPebbleStore(cfg.Storage.DBPath)
	if err != nil {
		log.Fatal("open pebble store", zap.Error(err))
	}
	defer store.Close()

	timestamps, err := onchain.NewEthClientTimestamps(ctx, *rpcURL)
	if err != nil {
		log.Fatal("dial rpc endpoint", zap.Error(err))
	}
	defer timestamps.Close()

	quoting := onchain.NewHTTPOrderQuoting(*quotingURL, nil)
	appData := onchain.NewHTTPAppDataStore(*quotingURL, nil)
	metrics := onchain.NewMetrics(prometheus.DefaultRegisterer)

	parser := onchain.NewOnchainOrderParser(onchain.ParserConfig{
		Name:            cfg.Indexer.WatermarkName,
		HooksTrampoline: cfg.Indexer.HooksTrampoline,
		Domain: onchain.DomainSeparator{
			Name:              cfg.Indexer.DomainName,
			Version:           cfg.Indexer.DomainVersion,
			ChainID:           cfg.Indexer.ChainID,
			VerifyingContract: cfg.Indexer.VerifyingContract,
		},
		MaxConcurrentLookups: cfg.Indexer.MaxConcurrentLookups,
	}, store, quoting, appData, timestamps, metrics, log)

	server := api.NewServer(store, parser, cfg.Indexer.WatermarkName)
	go func() {
		if err := server.Start(*listenAddr); err != nil {
			log.Error("api server stopped", zap.Error(err))
		}
	}()

	runPollingLoop(ctx, log, parser, server, store, util.RealClock{}, *pollInterval)
}

// runPollingLoop periodically asks the chain source for new events since
// the last watermark and applies them; on a detected reorg it falls back
// to ReplaceEvents from the affected range. The chain source itself (log
// subscription / RPC log filter) is an external collaborator out of
// scope for this indexer package, so this loop is driven by whatever
// feed a deployment wires in via fetchNewEvents.
func runPollingLoop(ctx context.Context, log *zap.Logger, parser *onchain.OnchainOrderParser, server *api.Server, store storage.Store, clock util.Clock, interval time.Duration) {
	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down indexing loop")
			return
		case <-clock.After(interval):
		}

		block, _, err := parser.LastEventBlock()
		if err != nil {
			log.Error("read watermark", zap.Error(err))
			continue
		}

		events, reorgFrom, err := fetchNewEvents(ctx, block)
		if err != nil {
			log.Error("fetch events", zap.Error(err))
			continue
		}
		if len(events) == 0 {
			continue
		}

		if reorgFrom != nil {
			if err := parser.ReplaceEvents(ctx, events, *reorgFrom); err != nil {
				log.Error("replace events", zap.Error(err), zap.Uint64("reorg_from", *reorgFrom))
				continue
			}
		} else if err := parser.AppendEvents(ctx, events); err != nil {
			log.Error("append events", zap.Error(err))
			continue
		}

		broadcastResolved(parser, server, store, events)
	}
}

// broadcastResolved re-reads whatever this round's events resolved to
// and relays it over WebSocket; best-effort, since a lookup miss here
// only skips a live update and never affects persisted state.
func broadcastResolved(parser *onchain.OnchainOrderParser, server *api.Server, store storage.Store, events []onchain.EventLog) {
	for _, e := range events {
		if inv := e.Event.Invalidation; inv != nil {
			server.BroadcastOrderInvalidated(storage.InvalidationRow{Uid: inv.OrderUid, BlockNumber: e.Log.BlockNumber})
			continue
		}
		uid, ok := parser.PlacementUid(e)
		if !ok {
			continue
		}
		if row, found, err := store.GetOrder(uid); err == nil && found {
			server.BroadcastOrderPlaced(row)
		}
	}
}

// fetchNewEvents is the chain-RPC/log-subscription collaborator named in
// §6. A production deployment wires this to an eth_getLogs poller or a
// subscription over the settlement contract's events; ungrounded here
// since the spec treats it as an external boundary.
func fetchNewEvents(ctx context.Context, sinceBlock uint64) (events []onchain.EventLog, reorgFrom *uint64, err error) {
	return nil, nil, nil
}
