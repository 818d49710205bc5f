// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watch reloads path whenever it changes and invokes onChange with the
// freshly loaded Config, matching spec.md §4.4's on_settings_changed
// contract (re-apply verbosity, reset alarms, update schedule). Parse
// failures are logged and ignored: the previous in-memory Config stays
// in effect until a valid file appears (spec §7's "never retry
// automatically" does not apply here, since the reload loop itself is
// the retry mechanism via the next fs event).
func Watch(ctx context.Context, path string, logger zerolog.Logger, onChange func(Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", path, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := Load(path)
				if err != nil {
					logger.Warn().Err(err).Str("path", path).Msg("config reload failed, keeping previous settings")
					continue
				}
				logger.Info().Str("path", path).Msg("config reloaded")
				onChange(cfg)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn().Err(err).Msg("config watcher error")
			}
		}
	}()

	return nil
}
