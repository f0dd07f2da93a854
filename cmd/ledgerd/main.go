// Command ledgerd runs a FoldNet ledger node.
//
// The node hosts the batch/decryption state machine over HTTP: providers
// submit encrypted folding scores, the owner drives the batch lifecycle, and
// a local decryption oracle fulfills decryption requests against the mock
// FHE engine.
//
// # Identity
//
// Callers authenticate by signing requests with Ed25519 keys; the hex-encoded
// public key is the caller's ledger address. The node itself holds no caller
// keys. The owner address is set at startup with --owner, or a fresh owner
// key pair is generated and printed for demo use.
//
// # Usage
//
//	go run ./cmd/ledgerd --addr=:8080 --metrics-addr=:9090
//	go run ./cmd/ledgerd --owner=<hex pubkey> --cooldown=30s
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/foldnet/foldnet/api/httpserver"
	"github.com/foldnet/foldnet/audit"
	"github.com/foldnet/foldnet/common"
	"github.com/foldnet/foldnet/crypto"
	"github.com/foldnet/foldnet/fhe"
	"github.com/foldnet/foldnet/ledger"
	"github.com/foldnet/foldnet/metrics"
	"github.com/foldnet/foldnet/oracle"
)

func main() {
	var (
		addr        = flag.String("addr", ":8080", "HTTP listen address")
		metricsAddr = flag.String("metrics-addr", "", "Metrics listen address (disabled if empty)")
		enablePprof = flag.Bool("pprof", false, "Enable pprof debugging API")
		corsOrigins = flag.String("cors-origins", "", "Comma-separated allowed CORS origins")

		ownerHex = flag.String("owner", "", "Owner public key (hex, generates a demo key pair if empty)")
		cooldown = flag.Duration("cooldown", 30*time.Second, "Rate-limit window for submissions and decryption requests")

		oraclePoll    = flag.Duration("oracle-poll", 100*time.Millisecond, "Decryption oracle poll interval")
		oracleLatency = flag.Duration("oracle-latency", 0, "Simulated decryption latency")

		psqlHost     = flag.String("postgres-host", "", "PostgreSQL host for the event trail (disabled if empty)")
		psqlPort     = flag.Int("postgres-port", 5432, "PostgreSQL port")
		psqlUser     = flag.String("postgres-user", "foldnet", "PostgreSQL user")
		psqlPassword = flag.String("postgres-password", "", "PostgreSQL password")
		psqlDatabase = flag.String("postgres-db", "foldnet", "PostgreSQL database")
		psqlSSLMode  = flag.String("postgres-sslmode", "disable", "PostgreSQL SSL mode")
	)
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("service", "ledgerd", "version", common.Version)

	owner, err := resolveOwner(*ownerHex)
	if err != nil {
		log.Error("Could not resolve owner", "err", err)
		os.Exit(1)
	}
	log.Info("Ledger owner", "address", string(owner))

	engine, err := fhe.NewMockEngine()
	if err != nil {
		log.Error("Could not create FHE engine", "err", err)
		os.Exit(1)
	}

	metricsSrv, err := metrics.New(common.PackageName, *metricsAddr)
	if err != nil {
		log.Error("Could not create metrics server", "err", err)
		os.Exit(1)
	}

	// Event sinks run synchronously under the ledger lock, so each one is
	// either cheap or hands off to a background writer.
	bus := audit.NewBus()
	trail := audit.NewMemoryTrail(audit.DefaultMemoryTrailCap)
	sinks := []ledger.EventSink{bus, trail, metricsSrv.Sink()}

	var pgTrail *audit.PostgresTrail
	if *psqlHost != "" {
		pgTrail, err = audit.NewPostgresTrail(&audit.PostgresConfig{
			Host:     *psqlHost,
			Port:     *psqlPort,
			User:     *psqlUser,
			Password: *psqlPassword,
			Database: *psqlDatabase,
			SSLMode:  *psqlSSLMode,
		}, log)
		if err != nil {
			log.Error("Could not connect event trail to PostgreSQL", "err", err)
			os.Exit(1)
		}
		sinks = append(sinks, pgTrail)
	}

	if err := bus.SubscribeAll(func(e ledger.Event) {
		log.Info("Ledger event", "kind", string(e.Kind()))
	}); err != nil {
		log.Error("Could not subscribe event logger", "err", err)
		os.Exit(1)
	}

	l := ledger.New(engine, ledger.Config{Owner: owner, Cooldown: *cooldown},
		ledger.WithSink(audit.Fanout(sinks...)),
		ledger.WithLogger(log),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	localOracle := oracle.NewLocal(engine, l,
		oracle.WithPollInterval(*oraclePoll),
		oracle.WithLatency(*oracleLatency),
		oracle.WithLogger(log),
	)
	localOracle.Start(ctx)

	handler := httpserver.NewLedgerHandler(l, log, metricsSrv)
	handler.Encrypter = engine
	handler.Trail = trail
	srv, err := httpserver.New(&httpserver.HTTPServerConfig{
		ListenAddr:               *addr,
		MetricsAddr:              *metricsAddr,
		Metrics:                  metricsSrv,
		EnablePprof:              *enablePprof,
		AllowedOrigins:           splitOrigins(*corsOrigins),
		Log:                      log,
		DrainDuration:            5 * time.Second,
		GracefulShutdownDuration: 10 * time.Second,
		ReadTimeout:              15 * time.Second,
		WriteTimeout:             15 * time.Second,
	}, handler)
	if err != nil {
		log.Error("Could not create HTTP server", "err", err)
		os.Exit(1)
	}
	srv.RunInBackground()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down")
	localOracle.Stop()
	srv.Shutdown()
	if pgTrail != nil {
		if err := pgTrail.Close(); err != nil {
			log.Error("Could not close PostgreSQL event trail", "err", err)
		}
	}
}

// resolveOwner parses the owner public key, or mints a throwaway key pair and
// prints the private half so a demo operator can act as the owner.
func resolveOwner(ownerHex string) (ledger.Address, error) {
	if ownerHex != "" {
		pub, err := crypto.NewPublicKeyFromString(ownerHex)
		if err != nil {
			return "", fmt.Errorf("invalid owner public key: %w", err)
		}
		return ledger.Address(pub.String()), nil
	}

	pub, priv, err := crypto.GenerateKeyPair()
	if err != nil {
		return "", fmt.Errorf("generate owner key pair: %w", err)
	}
	fmt.Printf("Generated owner key pair\n")
	fmt.Printf("  public:  %s\n", pub.String())
	fmt.Printf("  private: %x\n", priv.Bytes())
	return ledger.Address(pub.String()), nil
}

func splitOrigins(origins string) []string {
	if origins == "" {
		return nil
	}
	var out []string
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
