// Command proxy runs the HTTP/1.0 forwarding proxy: one positional
// port argument, an optional "-c config.yaml", and nothing else
// (spec.md §6).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/CSAPP-Labs/CSAPP-proxy/conf"
	"github.com/CSAPP-Labs/CSAPP-proxy/contrib/config"
	"github.com/CSAPP-Labs/CSAPP-proxy/contrib/log"
	"github.com/CSAPP-Labs/CSAPP-proxy/internal/admin"
	"github.com/CSAPP-Labs/CSAPP-proxy/internal/cache"
	"github.com/CSAPP-Labs/CSAPP-proxy/internal/dispatcher"
	"github.com/CSAPP-Labs/CSAPP-proxy/internal/fetcher"
	"github.com/CSAPP-Labs/CSAPP-proxy/internal/listener"
)

var (
	flagConf  string
	flagAdmin string
)

func init() {
	flag.StringVar(&flagConf, "c", "", "optional config file path")
	flag.StringVar(&flagAdmin, "admin", "", "optional admin server address (e.g. 127.0.0.1:6060)")
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [-c config.yaml] [-admin addr] <port>\n", os.Args[0])
}

func main() {
	flag.Parse()

	port, err := parsePort(flag.Args())
	if err != nil {
		usage()
		os.Exit(1)
	}

	loader, err := config.New(flagConf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}
	defer loader.Close()
	bc := loader.Current()

	logger := log.New(log.Options{
		Level:      bc.Logger.Level,
		Path:       bc.Logger.Path,
		MaxSize:    bc.Logger.MaxSize,
		MaxAge:     bc.Logger.MaxAge,
		MaxBackups: bc.Logger.MaxBackups,
		Compress:   bc.Logger.Compress,
	})
	log.SetLogger(logger)
	loader.Watch(func(next *conf.Bootstrap) {
		log.Infof("configuration reloaded")
	})

	// SIGPIPE is masked process-wide: a client that closes mid-write
	// must surface as an EPIPE write error, not process death
	// (spec.md §7's "signal masking" collaborator).
	signal.Ignore(syscall.SIGPIPE)

	addr := fmt.Sprintf(":%d", port)
	l, ln, err := listener.New(addr, bc.PidFile, 2*time.Minute)
	if err != nil {
		log.Fatalf("starting listener: %v", err)
	}

	c := cache.New(bc.Cache.MaxObjectSize, bc.Cache.MaxCacheSize, cache.NewMetrics(prometheus.DefaultRegisterer))
	f := fetcher.New(bc.Cache.MaxObjectSize, nil)
	d := dispatcher.New(c, f, logger, dispatcher.NewMetrics(prometheus.DefaultRegisterer))

	if flagAdmin != "" {
		adminSrv := admin.New(flagAdmin, c, nil)
		go func() {
			if err := adminSrv.ListenAndServe(); err != nil {
				log.Errorf("admin server stopped: %v", err)
			}
		}()
	}

	go d.Serve(ln)
	log.Infof("proxy listening on %s", addr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-l.Exit():
		log.Infof("upgrade requested, draining")
	case sig := <-sigCh:
		log.Infof("received %s, draining", sig)
		l.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	drained := make(chan struct{})
	go func() {
		d.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		log.Warnf("shutdown timed out waiting for in-flight connections")
	}
}

// parsePort validates exactly one positional argument, an integer
// port in [1024, 65536) (spec.md §6).
func parsePort(args []string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("expected exactly one port argument, got %d", len(args))
	}
	port, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("port must be an integer: %w", err)
	}
	if port < 1024 || port >= 65536 {
		return 0, fmt.Errorf("port %d out of range [1024, 65536)", port)
	}
	return port, nil
}
