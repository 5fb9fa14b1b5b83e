package assets

import (
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/emberengine/ember/engine/core"
)

// ShaderWatcher reloads shader programs when their files change on disk,
// so iteration on shaders does not require restarting the application.
type ShaderWatcher struct {
	watcher  *fsnotify.Watcher
	dir      string
	onReload func(name string)
	done     chan struct{}
}

// NewShaderWatcher watches dir for shader artifact changes. onReload is
// called with the program name, from the watcher's goroutine.
func NewShaderWatcher(dir string, onReload func(name string)) (*ShaderWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		core.LogError("failed to create shader watcher")
		return nil, err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		core.LogError("failed to watch shader directory %s", dir)
		return nil, err
	}

	sw := &ShaderWatcher{
		watcher:  watcher,
		dir:      dir,
		onReload: onReload,
		done:     make(chan struct{}),
	}
	go sw.run()
	core.LogInfo("watching %s for shader changes", dir)
	return sw, nil
}

// programName extracts the program name from a shader artifact path,
// empty for unrelated files.
func programName(path string) string {
	base := filepath.Base(path)
	for _, suffix := range []string{".vert.spv", ".frag.spv", ".meta.json"} {
		if strings.HasSuffix(base, suffix) {
			return strings.TrimSuffix(base, suffix)
		}
	}
	return ""
}

func (sw *ShaderWatcher) run() {
	for {
		select {
		case <-sw.done:
			return
		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			name := programName(event.Name)
			if name == "" {
				continue
			}
			core.LogInfo("shader %s changed, reloading", name)
			sw.onReload(name)
		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			core.LogError("shader watcher error: %s", err)
		}
	}
}

func (sw *ShaderWatcher) Close() error {
	close(sw.done)
	return sw.watcher.Close()
}
