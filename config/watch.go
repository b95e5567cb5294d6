package config

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// WatchFile watches a .env style file and invokes onChange with a freshly
// loaded Config whenever it is rewritten. The watcher runs until ctx is
// cancelled. A missing file is not an error: the watch starts on its
// directory so the file can appear later.
func WatchFile(ctx context.Context, path string, logger *slog.Logger, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}

	// Watch the directory: editors and orchestrators replace the file
	// rather than writing it in place.
	dir := filepath.Dir(path)
	if addWatchErr := watcher.Add(dir); addWatchErr != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, addWatchErr)
	}

	// Apply the file once at startup when it already exists.
	if _, statErr := os.Stat(path); statErr == nil {
		applyEnvFile(path, logger, onChange)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				logger.Info("Configuration file changed, reloading",
					slog.String("file", path))
				applyEnvFile(path, logger, onChange)
			case watchErr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Error("Config watcher error", slog.String("error", watchErr.Error()))
			}
		}
	}()
	return nil
}

// applyEnvFile parses KEY=VALUE lines into the process environment and hands
// a reloaded Config to the callback.
func applyEnvFile(path string, logger *slog.Logger, onChange func(*Config)) {
	values, err := parseEnvFile(path)
	if err != nil {
		logger.Error("Failed to read config file",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return
	}
	for key, value := range values {
		if setErr := os.Setenv(key, value); setErr != nil {
			logger.Error("Failed to apply config value",
				slog.String("key", key),
				slog.String("error", setErr.Error()))
		}
	}
	if onChange != nil {
		onChange(Load())
	}
}

func parseEnvFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"'`)
		if key != "" {
			values[key] = value
		}
	}
	return values, scanner.Err()
}
