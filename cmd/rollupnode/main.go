// rollupnode is the process entrypoint: it reads operator-supplied
// environment variables, wires every component app/rollupapp needs, and
// runs until an interrupt signal arrives. Flag parsing and a structured
// configuration file are out of scope (spec.md §1's "the CLI and
// configuration-loading code" non-goal); reading raw environment
// variables here is the simplest thing that satisfies it. Grounded on
// apiserver/main.go's "connect database, start background loop, wait on
// signal.InterruptListener(), drain" shape.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dagrollup/rollupcore/app/rollupapp"
	"github.com/dagrollup/rollupcore/config"
	"github.com/dagrollup/rollupcore/domain/ethsender"
	"github.com/dagrollup/rollupcore/domain/ethsender/anchorchain"
	"github.com/dagrollup/rollupcore/domain/eventsource"
	"github.com/dagrollup/rollupcore/domain/eventsource/anchorwatch"
	"github.com/dagrollup/rollupcore/domain/rollup/datastructures/merkletree"
	"github.com/dagrollup/rollupcore/domain/rollup/model/externalapi"
	"github.com/dagrollup/rollupcore/domain/rollup/processes/blockbuilder"
	"github.com/dagrollup/rollupcore/domain/rollup/processes/stateengine"
	"github.com/dagrollup/rollupcore/domain/sigverify"
	"github.com/dagrollup/rollupcore/domain/txpool/mempool"
	"github.com/dagrollup/rollupcore/infrastructure/db/dbaccess"
	"github.com/dagrollup/rollupcore/infrastructure/db/storage"
	"github.com/dagrollup/rollupcore/infrastructure/rpctransport"
	"github.com/dagrollup/rollupcore/internal/logger"
	"github.com/dagrollup/rollupcore/internal/metrics"
	"github.com/dagrollup/rollupcore/internal/panics"
)

var log, _ = logger.Get(logger.SubsystemTags.APPT)

func main() {
	logger.InitLogRotators(envOr("ROLLUP_LOG_FILE", "rollupnode.log"), envOr("ROLLUP_ERR_LOG_FILE", "rollupnode_err.log"))
	defer panics.HandlePanic(log, nil)

	dbCtx, err := dbaccess.New(dbaccess.Config{
		DSN:            envOr("ROLLUP_DB_DSN", "root@tcp(127.0.0.1:3306)/rollupcore"),
		MigrationsPath: envOr("ROLLUP_DB_MIGRATIONS", "infrastructure/db/dbaccess/migrations"),
		MaxOpenConns:   envInt("ROLLUP_DB_MAX_OPEN_CONNS", 16),
		MaxIdleConns:   envInt("ROLLUP_DB_MAX_IDLE_CONNS", 4),
	})
	if err != nil {
		panics.Exit(log, "connecting to database: "+err.Error())
	}
	defer dbCtx.Close()

	store := storage.New(dbCtx)
	cfg := loadConfig()
	if err := cfg.Validate(); err != nil {
		panics.Exit(log, "invalid configuration: "+err.Error())
	}

	tree := merkletree.New()
	cachedState, err := store.LoadCommittedState()
	if err != nil {
		panics.Exit(log, "loading committed account state: "+err.Error())
	}
	for _, acc := range cachedState {
		tree.Insert(acc.Id, acc)
	}

	engine := stateengine.New(tree, sigverify.AlwaysValid{}, externalapi.AccountId(envInt("ROLLUP_NFT_STORAGE_ACCOUNT", 0)))

	firstBlockNumber := uint32(1)
	genesisRoot := engine.RootHash()
	if latest, err := store.BlockRange(^uint32(0), 1); err != nil {
		panics.Exit(log, "reading most recently sealed block: "+err.Error())
	} else if len(latest) == 1 {
		firstBlockNumber = latest[0].BlockNumber + 1
		genesisRoot = latest[0].NewRoot
	}
	builder := blockbuilder.New(engine, engine, blockbuilder.Config{
		AdmissibleChunkSizes: cfg.AdmissibleChunkSizes,
		IterationBound:       cfg.MaxMiniblockIterations,
		FeeAccountId:         externalapi.AccountId(cfg.FeeAccountId),
	}, firstBlockNumber, genesisRoot)

	pool := mempool.New(mempool.Config{
		MaxPerAccount:   envInt("ROLLUP_MEMPOOL_MAX_PER_ACCOUNT", 64),
		MaxGap:          uint32(envInt("ROLLUP_MEMPOOL_MAX_GAP", 16)),
		DefaultLifetime: time.Hour,
	})

	rpcTransport := rpctransport.New(envOr("ROLLUP_ANCHOR_RPC_ENDPOINT", "http://127.0.0.1:8545"), cfg.PollInterval)
	anchorClient := anchorchain.NewClient(envOr("ROLLUP_ANCHOR_CONTRACT_ADDRESS", ""), rpcTransport)
	anchorSigner := anchorchain.NewSigner(opaqueKey{})

	submitter := ethsender.New(store, anchorClient, anchorSigner, ethsender.Config{
		MaxInFlight:        cfg.MaxInFlight,
		WaitConfirmations:  cfg.WaitConfirmations,
		ExpectedWaitBlocks: cfg.ExpectedWaitBlocks,
		PollInterval:       cfg.PollInterval,
		RateLimitBackoff:   cfg.RateLimitBackoff,
		GasLimit:           anchorchain.GasLimit,
	}, uint64(envInt("ROLLUP_ANCHOR_START_NONCE", 0)))

	watcher := anchorwatch.NewWatcher(envOr("ROLLUP_ANCHOR_CONTRACT_ADDRESS", ""), rpcTransport)
	source := eventsource.New(store, watcher, eventsource.Config{
		PollInterval:      cfg.PollInterval,
		WaitConfirmations: cfg.WaitConfirmations,
		MaxBlockRange:     cfg.MaxBlockRange,
	})

	rollupApp, err := rollupapp.New(rollupapp.Dependencies{
		Store:       store,
		Tree:        tree,
		Mempool:     pool,
		Builder:     builder,
		Submitter:   submitter,
		EventSource: source,
		Config:      cfg,
	})
	if err != nil {
		panics.Exit(log, "constructing app: "+err.Error())
	}

	metricsAddr := envOr("ROLLUP_METRICS_LISTEN", ":9100")
	metricsServer := &http.Server{Addr: metricsAddr, Handler: metrics.Handler()}
	spawn := panics.GoroutineWrapperFunc(log)
	spawn(func() {
		log.Infof("serving metrics on %s", metricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warnf("metrics server stopped: %s", err)
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rollupApp.Run(ctx)
	_ = metricsServer.Close()
}

// opaqueKey is a placeholder anchorchain.PrivateKey, the anchor-chain-side
// analogue of domain/sigverify.AlwaysValid: the anchor chain's own
// signature scheme is as much an external collaborator as the wallet
// scheme S is (spec.md §1), so production wiring here needs only the
// capability boundary, not a concrete curve.
type opaqueKey struct{}

func (opaqueKey) Sign(message []byte) ([]byte, error) {
	return append([]byte{0x01}, message...), nil
}

func (opaqueKey) Address() externalapi.Address {
	return externalapi.Address{}
}

func loadConfig() config.Config {
	return config.Config{
		MaxInFlight:                envInt("ROLLUP_MAX_IN_FLIGHT", 4),
		WaitConfirmations:          uint64(envInt("ROLLUP_WAIT_CONFIRMATIONS", 12)),
		ExpectedWaitBlocks:         uint64(envInt("ROLLUP_EXPECTED_WAIT_BLOCKS", 50)),
		PollInterval:               envDuration("ROLLUP_POLL_INTERVAL", 15*time.Second),
		RateLimitBackoff:           envDuration("ROLLUP_RATE_LIMIT_BACKOFF", 30*time.Second),
		APICacheSize:               envInt("ROLLUP_API_CACHE_SIZE", 1024),
		MaxBlockRange:              uint64(envInt("ROLLUP_MAX_BLOCK_RANGE", 5000)),
		AdmissibleChunkSizes:       []uint32{10, 50, 200, 1000},
		MiniblockIterationInterval: envDuration("ROLLUP_MINIBLOCK_ITERATION_INTERVAL", 2*time.Second),
		MaxMiniblockIterations:     uint32(envInt("ROLLUP_MAX_MINIBLOCK_ITERATIONS", 20)),
		FastMiniblockIterations:    uint32(envInt("ROLLUP_FAST_MINIBLOCK_ITERATIONS", 3)),
		FeeAccountId:               uint32(envInt("ROLLUP_FEE_ACCOUNT_ID", 0)),
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
