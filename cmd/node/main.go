package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/tangelo-dex/tangelo/params"
	"github.com/tangelo-dex/tangelo/pkg/api"
	"github.com/tangelo-dex/tangelo/pkg/app/core/asset"
	"github.com/tangelo-dex/tangelo/pkg/app/core/ledger"
	"github.com/tangelo-dex/tangelo/pkg/app/core/whitelist"
	"github.com/tangelo-dex/tangelo/pkg/app/exchange"
	"github.com/tangelo-dex/tangelo/pkg/metrics"
	"github.com/tangelo-dex/tangelo/pkg/storage"
	"github.com/tangelo-dex/tangelo/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("")

	logger := mustLogger(cfg.Node.LogFile)
	defer logger.Sync()

	nativeSym, err := asset.NewSymbol(cfg.Native.Symbol, cfg.Native.Precision)
	if err != nil {
		log.Fatalf("native symbol: %v", err)
	}

	store, err := storage.NewStore(cfg.Node.DBPath)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	defer store.Close()

	// The in-process ledger stands in for the host chain's balance
	// primitives; deposits to the exchange account drive settlement.
	led := ledger.NewMemory()
	wl := whitelist.NewRegistry(cfg.Node.Admin)

	ex, err := exchange.New(exchange.Config{
		Account:        cfg.Node.Exchange,
		Admin:          cfg.Node.Admin,
		NativeSymbol:   nativeSym,
		NativeContract: cfg.Native.Contract,
	}, led, wl, logger, exchange.WithStore(store))
	if err != nil {
		log.Fatalf("exchange: %v", err)
	}
	m := metrics.New(prometheus.DefaultRegisterer)
	led.Watch(cfg.Node.Exchange, m.Hook(ex.OnTransfer))

	server := api.NewServer(ex, logger)

	ex.Subscribe(exchange.LogObserver{Log: logger})
	ex.Subscribe(m)
	ex.Subscribe(server.Observer())

	go func() {
		if err := server.Start(cfg.Node.ListenAddr); err != nil {
			log.Fatalf("api server: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")
}

func mustLogger(logFile string) *zap.Logger {
	if logFile != "" {
		l, err := util.NewLoggerWithFile(logFile)
		if err != nil {
			log.Fatalf("logger: %v", err)
		}
		return l
	}
	l, err := util.NewLogger()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	return l
}
