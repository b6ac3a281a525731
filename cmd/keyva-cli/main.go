// Command keyva-cli is a small interactive-free client for a keyva
// database: put|get|each|stats subcommands against a directory on
// disk, driven entirely by flags so it scripts well from a shell.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/huynhanx03/keyva/pkg/keyva"
	"github.com/huynhanx03/keyva/pkg/keyva/keymath"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "put":
		err = runPut(args)
	case "get":
		err = runGet(args)
	case "each":
		err = runEach(args)
	case "stats":
		err = runStats(args)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "keyva-cli:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: keyva-cli <put|get|each|stats> [flags]")
}

func openDB(dir string) (*keyva.DB, error) {
	opts := keyva.DefaultOptions()
	opts.Dir = dir
	opts.Logger = zap.NewNop()
	return keyva.Open(opts)
}

func keyFromFlags(hexKey, seed string) (keymath.Key, error) {
	if seed != "" {
		return keymath.FromSeed(seed), nil
	}
	return keymath.FromHex(hexKey)
}

func runPut(args []string) error {
	fs := flag.NewFlagSet("put", flag.ExitOnError)
	dir := fs.String("dir", ".", "database directory")
	hexKey := fs.String("key", "", "32-byte key as 64 hex characters")
	seed := fs.String("seed", "", "derive the key by hashing this string instead of -key")
	value := fs.String("value", "", "value to store")
	flush := fs.Bool("flush", true, "run one flush cycle before exiting so the write is durable")
	if err := fs.Parse(args); err != nil {
		return err
	}

	key, err := keyFromFlags(*hexKey, *seed)
	if err != nil {
		return err
	}
	db, err := openDB(*dir)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Put(key.ToBytes(), []byte(*value)); err != nil {
		return err
	}
	if *flush {
		if err := db.Flush(); err != nil {
			return err
		}
	}
	fmt.Println(key.ToHex())
	return nil
}

func runGet(args []string) error {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	dir := fs.String("dir", ".", "database directory")
	hexKey := fs.String("key", "", "32-byte key as 64 hex characters")
	seed := fs.String("seed", "", "derive the key by hashing this string instead of -key")
	if err := fs.Parse(args); err != nil {
		return err
	}

	key, err := keyFromFlags(*hexKey, *seed)
	if err != nil {
		return err
	}
	db, err := openDB(*dir)
	if err != nil {
		return err
	}
	defer db.Close()

	value, err := db.Get(key.ToBytes())
	if err != nil {
		return err
	}
	fmt.Println(string(value))
	return nil
}

func runEach(args []string) error {
	fs := flag.NewFlagSet("each", flag.ExitOnError)
	dir := fs.String("dir", ".", "database directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, err := openDB(*dir)
	if err != nil {
		return err
	}
	defer db.Close()

	return db.Each(func(key keymath.Key, value []byte) error {
		fmt.Printf("%s\t%s\n", key.ToHex(), value)
		return nil
	})
}

func runStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	dir := fs.String("dir", ".", "database directory")
	flush := fs.Bool("flush", true, "run one flush cycle first so counters are current")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, err := openDB(*dir)
	if err != nil {
		return err
	}
	defer db.Close()

	if *flush {
		if err := db.Flush(); err != nil {
			return err
		}
		time.Sleep(10 * time.Millisecond)
	}
	stats := db.Stats()
	fmt.Printf("buffer_size=%d ready_for_committing=%d journal_size=%d\n",
		stats.BufferSize, stats.ReadyForCommitting, stats.JournalSize)
	fmt.Printf("buffer_hits=%d key_misses=%d value_hits=%d value_misses=%d\n",
		stats.BufferHits, stats.KeyMisses, stats.ValueHits, stats.ValueMisses)
	fmt.Printf("cache_size=%d/%d hits=%d misses=%d inserts=%d updates=%d\n",
		stats.Cache.Size, stats.Cache.MaxSize, stats.Cache.Hits, stats.Cache.Misses,
		stats.Cache.Inserts, stats.Cache.Updates)
	return nil
}
