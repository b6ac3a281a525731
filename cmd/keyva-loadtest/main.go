// Command keyva-loadtest drives concurrent Put traffic against a keyva
// database: a pool of producer goroutines generates random keys and
// values and hands them to a bounded MPMC queue, which a pool of writer
// goroutines drains into the database. It reports throughput and final
// flush stats.
package main

import (
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/huynhanx03/keyva/pkg/datastructs/queue"
	"github.com/huynhanx03/keyva/pkg/keyva"
	"github.com/huynhanx03/keyva/pkg/keyva/keymath"
	pkgruntime "github.com/huynhanx03/keyva/pkg/runtime"
)

type record struct {
	key   keymath.Key
	value []byte
}

func main() {
	dir := flag.String("dir", ".", "database directory")
	producers := flag.Int("producers", 4, "number of producer goroutines generating keys")
	writers := flag.Int("writers", 4, "number of writer goroutines calling Put")
	perProducer := flag.Int("per-producer", 10000, "records each producer generates")
	queueCapacity := flag.Int("queue-capacity", 4096, "MPMC queue capacity (rounded up to a power of two)")
	valueSize := flag.Int("value-size", 64, "size in bytes of each generated value")
	flag.Parse()

	log, _ := zap.NewDevelopment()
	defer log.Sync()

	opts := keyva.DefaultOptions()
	opts.Dir = *dir
	opts.Logger = log

	db, err := keyva.Open(opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, "keyva-loadtest: open:", err)
		os.Exit(1)
	}
	defer db.Close()

	q := queue.NewMPMC[record](*queueCapacity)

	var produced, written, failed uint64
	var mu sync.Mutex

	var producersWG sync.WaitGroup
	start := time.Now()
	for p := 0; p < *producers; p++ {
		producersWG.Add(1)
		go func() {
			defer producersWG.Done()
			value := make([]byte, *valueSize)
			for i := 0; i < *perProducer; i++ {
				key := randomKey()
				for j := range value {
					value[j] = byte(pkgruntime.Uint32())
				}
				for !q.Enqueue(record{key: key, value: append([]byte(nil), value...)}) {
					time.Sleep(time.Microsecond)
				}
				mu.Lock()
				produced++
				mu.Unlock()
			}
		}()
	}

	done := make(chan struct{})
	var writersWG sync.WaitGroup
	for w := 0; w < *writers; w++ {
		writersWG.Add(1)
		go func() {
			defer writersWG.Done()
			for {
				rec, ok := q.Dequeue()
				if !ok {
					select {
					case <-done:
						return
					default:
						time.Sleep(time.Microsecond)
						continue
					}
				}
				if err := db.Put(rec.key.ToBytes(), rec.value); err != nil {
					mu.Lock()
					failed++
					mu.Unlock()
					continue
				}
				mu.Lock()
				written++
				mu.Unlock()
			}
		}()
	}

	producersWG.Wait()
	close(done)
	writersWG.Wait()
	elapsed := time.Since(start)

	if err := db.Flush(); err != nil {
		fmt.Fprintln(os.Stderr, "keyva-loadtest: flush:", err)
	}
	stats := db.Stats()

	fmt.Printf("produced=%d written=%d failed=%d in %s (%.0f writes/s)\n",
		produced, written, failed, elapsed, float64(written)/elapsed.Seconds())
	fmt.Printf("buffer_size=%d journal_size=%d cache=%d/%d\n",
		stats.BufferSize, stats.JournalSize, stats.Cache.Size, stats.Cache.MaxSize)
}

func randomKey() keymath.Key {
	return keymath.Key{
		pkgruntime.Unit64(),
		pkgruntime.Unit64(),
		pkgruntime.Unit64(),
		pkgruntime.Unit64(),
	}
}
