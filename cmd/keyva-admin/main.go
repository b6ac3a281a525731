// Command keyva-admin opens a keyva database and serves its read-only
// /healthz and /stats endpoints over HTTP, running the normal background
// flush loop the whole time it's up.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/huynhanx03/keyva/pkg/keyva"
	"github.com/huynhanx03/keyva/pkg/keyva/admin"
	"github.com/huynhanx03/keyva/pkg/keyva/logging"
	"github.com/huynhanx03/keyva/pkg/keyva/settings"
)

func main() {
	dir := flag.String("dir", ".", "database directory")
	addr := flag.String("addr", ":8080", "address to serve the admin API on")
	configPath := flag.String("config", "", "path to a YAML settings file (defaults applied if empty)")
	flag.Parse()

	cfg := settings.Default()
	if *configPath != "" {
		loaded, err := settings.Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "keyva-admin:", err)
			os.Exit(1)
		}
		cfg = *loaded
	}

	log, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintln(os.Stderr, "keyva-admin:", err)
		os.Exit(1)
	}
	defer log.Sync()

	opts := keyva.Options{
		Dir:             *dir,
		BlockSize:       cfg.Options.BlockSize,
		CacheSize:       cfg.Options.CacheSize,
		WriteBufferSize: cfg.Options.WriteBufferSize,
		FlushInterval:   time.Duration(cfg.Options.FlushIntervalMS) * time.Millisecond,
		KeyFileName:     cfg.Options.KeyFileName,
		ValueFileName:   cfg.Options.ValueFileName,
		Logger:          log,
	}

	db, err := keyva.Open(opts)
	if err != nil {
		log.Fatal("open failed", zap.Error(err))
	}
	defer db.Close()

	log.Info("serving admin API", zap.String("addr", *addr), zap.String("dir", *dir))
	if err := admin.Serve(*addr, db); err != nil {
		log.Fatal("admin server stopped", zap.Error(err))
	}
}
