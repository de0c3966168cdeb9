// cpe-manager is the management control plane for the UDX710 5G/LTE module:
// an HTTP/JSON API over the ofono cellular stack, a connectivity watchdog,
// the USB gadget hot-switch engine, and an SMS/call event pipeline with
// webhook fan-out.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/soyea/cpe-manager/internal/logger"
	"github.com/soyea/cpe-manager/pkg/config"
	"github.com/soyea/cpe-manager/pkg/events"
	"github.com/soyea/cpe-manager/pkg/modem"
	"github.com/soyea/cpe-manager/pkg/ota"
	"github.com/soyea/cpe-manager/pkg/storage"
	"github.com/soyea/cpe-manager/pkg/usbgadget"
	"github.com/soyea/cpe-manager/pkg/watchdog"
	"github.com/soyea/cpe-manager/pkg/web"
	"github.com/soyea/cpe-manager/pkg/webhook"
)

const (
	appName    = "cpe-manager"
	appVersion = "1.2.0"
)

var (
	hostFlag    = flag.String("host", "", "Listen address (env HOST, default 0.0.0.0)")
	portFlag    = flag.Int("port", 0, "Listen port (env PORT, default 3000)")
	configFlag  = flag.String("config", "configs/config.yaml", "Path to server configuration file")
	versionFlag = flag.Bool("version", false, "Print version and exit")
)

func init() {
	flag.StringVar(hostFlag, "H", "", "Listen address (shorthand)")
	flag.IntVar(portFlag, "p", 0, "Listen port (shorthand)")
}

func main() {
	flag.Parse()

	if *versionFlag {
		fmt.Printf("%s version %s\n", appName, appVersion)
		os.Exit(0)
	}

	cfg, err := loadServerConfig(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// CLI flags and environment override the file.
	host := cfg.Server.Host
	port := cfg.Server.Port
	if env := os.Getenv("HOST"); env != "" {
		host = env
	}
	if env := os.Getenv("PORT"); env != "" {
		if n, err := strconv.Atoi(env); err == nil {
			port = n
		}
	}
	if *hostFlag != "" {
		host = *hostFlag
	}
	if *portFlag != 0 {
		port = *portFlag
	}

	if err := logger.Init(logger.Config{
		Path:       cfg.Log.Path,
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	log := logger.Get()
	log.Info("starting", "app", appName, "version", appVersion)

	// The shared system-bus connection serves request traffic; each
	// listener gets its own connection below to isolate signal streams.
	conn, err := dbus.SystemBus()
	if err != nil {
		log.Fatal("failed to connect to system D-Bus", err)
	}

	gate := modem.NewGate()
	client := modem.New(conn, gate)

	store, err := storage.Open(storePath())
	if err != nil {
		log.Fatal("failed to open event store", err)
	}
	defer store.Close()

	configPath := config.DefaultPath()
	log.Info("loading config", "path", configPath)
	configManager := config.NewManager(configPath, log)

	sender := webhook.New(configManager)
	hub := web.NewHub(log)
	sink := events.NewMultiSink(func(err error) {
		log.Warn("event fan-out error", "error", err.Error())
	}, sender, hub)

	// SMS listener on its own connection.
	if smsConn, err := dbus.SystemBusPrivate(); err != nil {
		log.Error("failed to open sms listener connection", err)
	} else if err := initPrivateConn(smsConn); err != nil {
		log.Error("failed to init sms listener connection", err)
	} else {
		listener := events.NewSmsListener(smsConn, store, sink, log)
		go func() {
			if err := listener.Run(); err != nil {
				log.Error("sms listener stopped", err)
			}
		}()
	}

	// Call listener on its own connection.
	if callConn, err := dbus.SystemBusPrivate(); err != nil {
		log.Error("failed to open call listener connection", err)
	} else if err := initPrivateConn(callConn); err != nil {
		log.Error("failed to init call listener connection", err)
	} else {
		listener := events.NewCallListener(callConn, store, sink, log)
		go func() {
			if err := listener.Run(); err != nil {
				log.Error("call listener stopped", err)
			}
		}()
	}

	// One-shot auto-connect after the modem settles.
	go func() {
		time.Sleep(2 * time.Second)
		result := watchdog.InitDataConnection(client)
		log.Info("auto-connect completed", "result", result)
	}()

	// Perpetual reconciliation.
	go watchdog.New(client, log).Run()

	server := web.New(web.Config{
		Modem:   client,
		Store:   store,
		Config:  configManager,
		Webhook: sender,
		USB:     usbgadget.New(log),
		OTA:     ota.NewManager(),
		Hub:     hub,
		Logger:  log,
		Version: appVersion,
	})

	// Serve until SIGINT/SIGTERM, then drain in-flight requests.
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(host, port)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Error("shutdown error", err)
		}
	case err := <-errCh:
		if err != nil {
			log.Fatal("server failed", err)
		}
	}
}

// initPrivateConn authenticates a private bus connection; godbus leaves
// private connections un-negotiated.
func initPrivateConn(conn *dbus.Conn) error {
	if err := conn.Auth(nil); err != nil {
		conn.Close()
		return err
	}
	if err := conn.Hello(); err != nil {
		conn.Close()
		return err
	}
	return nil
}

// storePath puts the event store next to the binary.
func storePath() string {
	exe, err := os.Executable()
	if err != nil {
		return "data.db"
	}
	return filepath.Join(filepath.Dir(exe), "data.db")
}
