package config

import (
	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// WatchLogLevel watches envFile for changes and applies RUST_LOG
// updates to atom without a restart. Every other setting (bind
// address, Redis/Postgres targets) requires reconnecting dependent
// components and is intentionally not hot-reloadable; log level is the
// one knob safe to flip live.
func WatchLogLevel(envFile string, atom zap.AtomicLevel, logger *zap.Logger) (stop func(), err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(envFile); err != nil {
		watcher.Close()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					applyLogLevel(envFile, atom, logger)
				}
			case werr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("config: watch error", zap.Error(werr))
			}
		}
	}()

	return func() {
		watcher.Close()
		<-done
	}, nil
}

func applyLogLevel(envFile string, atom zap.AtomicLevel, logger *zap.Logger) {
	vals, err := godotenv.Read(envFile)
	if err != nil {
		return
	}
	raw := vals["RUST_LOG"]
	if raw == "" {
		return
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(raw)); err != nil {
		logger.Warn("config: ignoring invalid RUST_LOG value", zap.String("value", raw))
		return
	}
	if lvl != atom.Level() {
		atom.SetLevel(lvl)
		logger.Info("config: log level updated", zap.String("level", lvl.String()))
	}
}
