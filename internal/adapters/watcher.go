package adapters

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"loomkit/internal/ports"
)

const defaultWatchDebounce = 200 * time.Millisecond

// WatchAdapter reports changes to mapping inputs. Files are watched
// through their parent directory so editors that replace files by rename
// are noticed; directories are watched recursively.
type WatchAdapter struct {
	Debounce time.Duration
}

func NewWatchAdapter() WatchAdapter {
	return WatchAdapter{Debounce: defaultWatchDebounce}
}

func (a WatchAdapter) Watch(ctx context.Context, paths []string, onChange func(path string)) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to start file watcher").
			WithCause(err)
	}
	defer fw.Close()

	files := map[string]bool{}
	var roots []string
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("invalid watch path " + path).
				WithCause(err)
		}
		dirs, isDir, err := watchDirs(abs)
		if err != nil {
			return err
		}
		if isDir {
			roots = append(roots, abs)
		} else {
			files[abs] = true
		}
		for _, dir := range dirs {
			if err := fw.Add(dir); err != nil {
				return errbuilder.New().
					WithCode(errbuilder.CodeNotFound).
					WithMsg("failed to watch " + dir).
					WithCause(err)
			}
		}
	}
	relevant := func(name string) bool {
		if files[name] {
			return true
		}
		for _, root := range roots {
			if name == root || strings.HasPrefix(name, root+string(filepath.Separator)) {
				return true
			}
		}
		return false
	}

	debounce := a.Debounce
	if debounce <= 0 {
		debounce = defaultWatchDebounce
	}
	pending := map[string]time.Time{}
	ticker := time.NewTicker(debounce / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !relevant(event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if dirs, isDir, err := watchDirs(event.Name); err == nil && isDir {
					for _, dir := range dirs {
						_ = fw.Add(dir)
					}
				}
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				pending[event.Name] = time.Now()
			}
		case <-ticker.C:
			now := time.Now()
			for name, at := range pending {
				if now.Sub(at) >= debounce {
					delete(pending, name)
					onChange(name)
				}
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("file watcher error")
		}
	}
}

// watchDirs returns the directories to register for path: its parent for a
// file, itself and every subdirectory for a directory.
func watchDirs(path string) ([]string, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return []string{filepath.Dir(path)}, false, nil
	}
	if !info.IsDir() {
		return []string{filepath.Dir(path)}, false, nil
	}
	var dirs []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			dirs = append(dirs, p)
		}
		return nil
	})
	if err != nil {
		return nil, true, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to scan " + path).
			WithCause(err)
	}
	return dirs, true, nil
}

var _ ports.WatchPort = WatchAdapter{}
