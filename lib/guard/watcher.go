package guard

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/fsnotify/fsnotify"
)

// WatchTopicPrompt watches the given prompt file and reloads the sensitive-topic
// system prompt on every write. Blocks until the context is canceled.
func (d *Detector) WatchTopicPrompt(ctx context.Context, path string) error {
	load := func() error {
		data, err := os.ReadFile(path) //nolint:gosec // path is an operator-provided config file
		if err != nil {
			return fmt.Errorf("failed to read prompt file %s: %w", path, err)
		}
		d.SetTopicPrompt(string(data))
		return nil
	}

	if err := load(); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("failed to add %s to watcher: %w", path, err)
	}

	for {
		select {
		case <-ctx.Done():
			log.Printf("[INFO] stopping prompt watcher for %s, %v", path, ctx.Err())
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Write == fsnotify.Write {
				if e := load(); e != nil {
					log.Printf("[WARN] failed to reload prompt file: %v", e)
					continue
				}
				log.Printf("[INFO] topic prompt reloaded from %s", path)
			}
		case e, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("[WARN] prompt watcher error: %v", e)
		}
	}
}
