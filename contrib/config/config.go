// Package config loads the optional conf.Bootstrap override file and
// keeps it live: a SIGHUP or a filesystem write both trigger a
// re-merge over the compiled-in defaults, mirroring the teacher's
// dual reload path (contrib/config's SIGHUP tick plus a file
// watcher).
package config

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"dario.cat/mergo"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/CSAPP-Labs/CSAPP-proxy/conf"
	"github.com/CSAPP-Labs/CSAPP-proxy/contrib/log"
)

// Observer is called with the freshly merged configuration whenever
// it changes.
type Observer func(*conf.Bootstrap)

// Loader owns the optional override file path and the live,
// mutex-guarded merged configuration.
type Loader struct {
	path string

	mu  sync.RWMutex
	cur *conf.Bootstrap

	observersMu sync.Mutex
	observers   []Observer

	stop chan struct{}
}

// New loads path (if non-empty) over conf.Default() and returns a
// Loader. An empty path yields the defaults with no watcher started.
func New(path string) (*Loader, error) {
	l := &Loader{path: path, stop: make(chan struct{})}
	if err := l.reload(); err != nil {
		return nil, err
	}
	if path != "" {
		go l.watchSignals()
		go l.watchFile()
	}
	return l, nil
}

// Current returns the currently merged configuration.
func (l *Loader) Current() *conf.Bootstrap {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cur
}

// Watch registers o to be called after every successful reload.
func (l *Loader) Watch(o Observer) {
	l.observersMu.Lock()
	defer l.observersMu.Unlock()
	l.observers = append(l.observers, o)
}

// Close stops the watcher goroutines.
func (l *Loader) Close() {
	select {
	case <-l.stop:
	default:
		close(l.stop)
	}
}

func (l *Loader) reload() error {
	merged := conf.Default()

	if l.path != "" {
		data, err := os.ReadFile(l.path)
		switch {
		case os.IsNotExist(err):
			// absence of the file is not an error: the defaults stand
		case err != nil:
			return err
		default:
			loaded := &conf.Bootstrap{}
			if err := yaml.Unmarshal(data, loaded); err != nil {
				return err
			}
			if err := mergo.Merge(merged, loaded, mergo.WithOverride); err != nil {
				return err
			}
		}
	}

	l.mu.Lock()
	l.cur = merged
	l.mu.Unlock()

	l.observersMu.Lock()
	observers := append([]Observer(nil), l.observers...)
	l.observersMu.Unlock()
	for _, o := range observers {
		o(merged)
	}
	return nil
}

func (l *Loader) watchSignals() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP)
	defer signal.Stop(sig)

	for {
		select {
		case <-l.stop:
			return
		case <-sig:
			log.Debugf("[config] received SIGHUP, reloading %s", l.path)
			if err := l.reload(); err != nil {
				log.Errorf("[config] reload failed: %v", err)
			}
		}
	}
}

func (l *Loader) watchFile() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Errorf("[config] starting file watcher failed: %v", err)
		return
	}
	defer watcher.Close()

	if err := watcher.Add(l.path); err != nil {
		log.Errorf("[config] watching %s failed: %v", l.path, err)
		return
	}

	for {
		select {
		case <-l.stop:
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			log.Debugf("[config] %s changed, reloading", l.path)
			if err := l.reload(); err != nil {
				log.Errorf("[config] reload failed: %v", err)
			}
		case werr, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Errorf("[config] watcher error: %v", werr)
		}
	}
}
