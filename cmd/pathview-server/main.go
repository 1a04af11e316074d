package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-errors/errors"
	"github.com/integrii/flaggy"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"pathview-server/internal/config"
	"pathview-server/internal/logging"
	"pathview-server/internal/server"
	"pathview-server/internal/version"
)

const shutdownGrace = 10 * time.Second

func main() {
	var (
		configPath  string
		rootFlag    string
		listenFlag  string
		printConfig bool
	)

	flaggy.SetName("pathview-server")
	flaggy.SetDescription("Browse, download and upload files below one directory over HTTP")
	flaggy.String(&configPath, "c", "config", "Path to the YAML config file")
	flaggy.String(&rootFlag, "r", "root", "Directory to serve (overrides the config file)")
	flaggy.String(&listenFlag, "l", "listen", "Listen address, e.g. :8000 (overrides the config file)")
	flaggy.Bool(&printConfig, "p", "print-config", "Print the effective config as YAML and exit")
	flaggy.SetVersion(version.Get().String())
	flaggy.Parse()

	resolvedCfgPath := resolveConfigPath(configPath)
	cfg, err := config.Load(resolvedCfgPath, func(c *config.Config) {
		if rootFlag != "" {
			c.Root = rootFlag
		}
		if listenFlag != "" {
			c.Listen = listenFlag
		}
	})
	if err != nil {
		log.Fatalf("invalid config %q: %v", resolvedCfgPath, err)
	}

	if printConfig {
		b, err := cfg.Marshal()
		if err != nil {
			log.Fatal(err.Error())
		}
		fmt.Print(string(b))
		os.Exit(0)
	}

	logger, err := logging.NewLogger(cfg)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	if err := run(cfg, resolvedCfgPath, logger); err != nil {
		stackTrace := errors.Wrap(err, 0).ErrorStack()
		logger.Error(stackTrace)
		os.Exit(1)
	}
}

func run(cfg config.Config, cfgPath string, logger *logrus.Entry) error {
	srv, err := server.New(cfg, logger)
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Handler:           srv.HTTPHandler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Duration(cfg.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.WriteTimeoutSec) * time.Second,
		ErrorLog:          log.New(logger.WriterLevel(logrus.WarnLevel), "", 0),
	}

	// Bind first (so we can fail early), then serve.
	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return errors.Errorf("listen %q: %w", cfg.Listen, err)
	}

	logger.WithFields(logrus.Fields{
		"config": lo.Ternary(cfgPath != "", cfgPath, "<defaults>"),
		"root":   cfg.Root,
		"listen": ln.Addr().String(),
	}).Info("pathview-server " + version.Get().String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, 0)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func safeExeDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	d := filepath.Dir(exe)
	if d == "" {
		return "."
	}
	return d
}

func exists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}

// resolveConfigPath picks the config file:
//   - --config as given
//   - else config/config.yaml next to the executable
//   - else ./config.yaml
//   - else "" (built-in defaults)
func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	preferred := filepath.Join(safeExeDir(), "config", "config.yaml")
	if exists(preferred) {
		return preferred
	}
	if exists("config.yaml") {
		return "config.yaml"
	}
	return ""
}
