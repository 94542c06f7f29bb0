package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watch reloads path whenever it changes and hands every valid result to fn.
// The parent directory is watched so editors that replace the file are
// seen too. Invalid files are logged and skipped. Watch returns when ctx is
// done.
func Watch(ctx context.Context, path string, log zerolog.Logger, fn func(*Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}
	log = log.With().Str("component", "config").Str("path", path).Logger()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("watch error")
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			c, err := Load(abs)
			if err != nil {
				log.Warn().Err(err).Msg("reload failed; keeping previous config")
				continue
			}
			log.Info().Int("keys", len(c.Keymap)).Msg("config reloaded")
			fn(c)
		}
	}
}
