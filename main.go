// Command nextedit is a Neovim sidecar that predicts the user's next edit
// and surfaces it as an inline suggestion or a jump hint. Neovim starts it
// with jobstart and talks msgpack RPC over stdin/stdout.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/neovim/go-client/nvim"

	"nextedit/buffer"
	"nextedit/config"
	"nextedit/engine"
	"nextedit/logger"
	"nextedit/provider/fim"
	"nextedit/provider/hosted"
	"nextedit/provider/inline"
	"nextedit/provider/zeta"
	"nextedit/types"
)

// set via ldflags
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to configuration file")
	workspacePath := flag.String("workspace", "", "workspace root (default: working directory)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("nextedit %s\n", version)
		return 0
	}

	// Stdout carries the msgpack stream. Reroute stray prints to stderr and
	// keep the real handle for the RPC endpoint.
	stdout := os.Stdout
	os.Stdout = os.Stderr

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "nextedit: %v\n", err)
		return 1
	}
	if err := logger.Init(cfg.Log.Path, cfg.Log.Level); err != nil {
		fmt.Fprintf(os.Stderr, "nextedit: init logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	workspace := *workspacePath
	if workspace == "" {
		workspace, _ = os.Getwd()
	}

	prov, err := newProvider(cfg)
	if err != nil {
		logger.Error("startup: %v", err)
		return 1
	}

	v, err := nvim.New(os.Stdin, stdout, stdout, logger.Debug)
	if err != nil {
		logger.Error("startup: connect editor: %v", err)
		return 1
	}

	// Serve must be running before any synchronous call on v, including the
	// namespace setup in buffer.New.
	serveErr := make(chan error, 1)
	go func() { serveErr <- v.Serve() }()

	buf, err := buffer.New(v)
	if err != nil {
		logger.Error("startup: attach buffer adapter: %v", err)
		return 1
	}

	eng := engine.NewEngine(prov, buf, cfg.EngineConfig(workspace), engine.NewRealClock())
	go eng.Run()
	defer eng.Stop()

	if err := buf.Register(eng.Notify); err != nil {
		logger.Error("startup: register handlers: %v", err)
		return 1
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("nextedit %s: provider=%s workspace=%s", version, cfg.Provider.Type, workspace)

	select {
	case err := <-serveErr:
		if err != nil {
			logger.Error("rpc: %v", err)
			return 1
		}
	case s := <-sig:
		logger.Info("signal %v, shutting down", s)
		v.Close()
		<-serveErr
	}
	return 0
}

func newProvider(cfg config.Config) (types.Provider, error) {
	pc := cfg.ProviderConfig()
	switch types.ProviderType(cfg.Provider.Type) {
	case types.ProviderTypeHosted:
		return hosted.NewProvider(pc)
	case types.ProviderTypeInline:
		return inline.NewProvider(pc), nil
	case types.ProviderTypeFim:
		return fim.NewProvider(pc), nil
	case types.ProviderTypeZeta:
		return zeta.NewProvider(pc), nil
	default:
		return nil, fmt.Errorf("unknown provider type %q", cfg.Provider.Type)
	}
}
