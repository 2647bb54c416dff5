package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/singleflight"

	"github.com/orizon-lang/stackscript/internal/cli"
	"github.com/orizon-lang/stackscript/internal/compiler"
)

func runWatch(args []string, stdout, stderr io.Writer) error {
	fs, s := newFlagSet("watch", stderr)
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() == 0 {
		return usageError(stderr, "watch")
	}
	cfg, err := s.resolve(fs)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return newWatcher(cfg, stdout, stderr).run(ctx, fs.Args())
}

// watcher recompiles scripts when their files change. Rebuilds of one path
// that overlap share a single compilation loop, which runs again while
// events keep marking the path dirty.
type watcher struct {
	cfg    *cli.Config
	stdout io.Writer
	stderr io.Writer
	log    *cli.Logger

	sf singleflight.Group

	mu    sync.Mutex // guards dirty and stdout
	dirty map[string]bool

	// compile builds and prints one path.
	compile func(path string)

	// built, when set, receives each path after its rebuild finished.
	// Nothing is sent when no reader is ready.
	built chan<- string
}

func newWatcher(cfg *cli.Config, stdout, stderr io.Writer) *watcher {
	w := &watcher{
		cfg:    cfg,
		stdout: stdout,
		stderr: stderr,
		log:    newLogger(cfg, stderr),
		dirty:  make(map[string]bool),
	}
	w.compile = w.compilePath
	return w
}

// run watches the directories holding files until ctx is done. Directories
// are watched instead of the files so that editors replacing a file by
// rename keep triggering rebuilds.
func (w *watcher) run(ctx context.Context, files []string) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	targets := make(map[string]bool)
	dirs := make(map[string]bool)
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return err
		}
		targets[abs] = true

		dir := filepath.Dir(abs)
		if dirs[dir] {
			continue
		}
		if err := fw.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		dirs[dir] = true
	}

	for path := range targets {
		w.rebuild(path)
	}
	w.log.Info("watching %d file(s)", len(targets))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			path := filepath.Clean(ev.Name)
			if !targets[path] || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			go w.rebuild(path)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error: %v", err)
		}
	}
}

// rebuild compiles path and prints the result. A call arriving while the
// same path is being compiled marks it dirty and joins that compilation,
// which then compiles once more to pick up the newer contents.
func (w *watcher) rebuild(path string) {
	w.setDirty(path, true)
	for w.isDirty(path) {
		_, _, _ = w.sf.Do(path, func() (any, error) {
			for w.isDirty(path) {
				w.setDirty(path, false)
				w.compile(path)
			}
			return nil, nil
		})
	}

	if w.built != nil {
		select {
		case w.built <- path:
		default:
		}
	}
}

func (w *watcher) compilePath(path string) {
	ctx, err := compileFile(path, w.cfg, w.stderr, compiler.StageCleanup)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		fmt.Fprintf(w.stdout, "# %s: FAILED: %v\n", path, err)
		return
	}
	fmt.Fprintf(w.stdout, "# %s\n%s", path, render(ctx, false))
}

func (w *watcher) setDirty(path string, dirty bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dirty[path] = dirty
}

func (w *watcher) isDirty(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dirty[path]
}
