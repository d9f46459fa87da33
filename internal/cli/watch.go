package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gogpu/spirvc"
	"github.com/gogpu/spirvc/include"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	opts := &compileOptions{}

	cmd := &cobra.Command{
		Use:   "watch <input>...",
		Short: "Recompile shaders whenever they or their headers change",
		Long: `Compile the inputs, then watch their directories, the include
search directories and every directory a header was read from, and
recompile every input after a change. Failures are reported and watching
continues. Stop with Ctrl-C.`,
		Example: `  spirvc watch --out-dir build shaders/*.frag shaders/*.vert
  spirvc watch -I shaders/include --debounce 250ms scene.frag`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)

			targets, err := planTargets(args, opts)
			if err != nil {
				return err
			}
			headers := &headerDirs{}
			c, err := newCompiler(a, args, func(r include.Resolver) include.Resolver {
				headers.next = r
				return headers
			})
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			w := &watcher{
				compiler: c,
				targets:  targets,
				dirs:     watchDirs(args, a.cfg.IncludeDirs),
				headers:  headers,
				debounce: a.cfg.Debounce,
				out:      cmd.OutOrStdout(),
				log:      a.log,
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return w.run(ctx)
		},
	}

	cmd.Flags().StringVar(&opts.outDir, "out-dir", "", "Output directory")
	cmd.Flags().StringVarP(&opts.stage, "stage", "S", "", "Shader stage for every input (vert|geom|frag|comp)")
	cmd.Flags().Duration("debounce", 0, "Quiet period before recompiling (default 100ms)")

	return cmd
}

type watcher struct {
	compiler *spirvc.Compiler
	targets  []target
	dirs     []string
	headers  *headerDirs
	debounce time.Duration
	out      io.Writer
	log      *zap.Logger

	fw      *fsnotify.Watcher
	watched map[string]bool
}

// headerDirs wraps the include resolver and records the directory of
// every header it resolves, so headers in subdirectories are watched
// too.
type headerDirs struct {
	next include.Resolver

	mu   sync.Mutex
	dirs map[string]bool
}

func (h *headerDirs) Resolve(req include.Request) (*include.Result, error) {
	res, err := h.next.Resolve(req)
	if err != nil || res == nil {
		return res, err
	}
	if path, perr := include.ParseLocator(res.Name); perr == nil {
		h.mu.Lock()
		if h.dirs == nil {
			h.dirs = make(map[string]bool)
		}
		h.dirs[filepath.Clean(filepath.Dir(path))] = true
		h.mu.Unlock()
	}
	return res, err
}

// list returns the recorded directories, sorted.
func (h *headerDirs) list() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	dirs := make([]string, 0, len(h.dirs))
	for d := range h.dirs {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	return dirs
}

// watchDirs lists the input and include directories without
// duplicates.
func watchDirs(inputs, includeDirs []string) []string {
	seen := make(map[string]bool)
	var dirs []string
	for _, d := range append(dirsOf(inputs), includeDirs...) {
		d = filepath.Clean(d)
		if !seen[d] {
			seen[d] = true
			dirs = append(dirs, d)
		}
	}
	return dirs
}

func dirsOf(paths []string) []string {
	dirs := make([]string, len(paths))
	for i, p := range paths {
		dirs[i] = filepath.Dir(p)
	}
	return dirs
}

func (w *watcher) run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = fw.Close() }()
	w.fw = fw
	w.watched = make(map[string]bool)

	for _, d := range w.dirs {
		if err := w.add(d); err != nil {
			return err
		}
	}
	if w.debounce <= 0 {
		w.debounce = 100 * time.Millisecond
	}

	w.rebuild(ctx, "")
	n := len(w.watched)
	_, _ = fmt.Fprintf(w.out, "%s\n", dimStyle.Render(fmt.Sprintf("watching %d director%s, Ctrl-C to stop", n, plural(n, "y", "ies"))))

	var pending <-chan time.Time
	var trigger string
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			// Our own output.
			if strings.EqualFold(filepath.Ext(event.Name), ".spv") {
				continue
			}
			trigger = event.Name
			pending = time.After(w.debounce)

		case <-pending:
			pending = nil
			w.rebuild(ctx, trigger)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Error("watcher error", zap.Error(err))
		}
	}
}

// rebuild recompiles every target; a header change can affect any of
// them.
func (w *watcher) rebuild(ctx context.Context, trigger string) {
	if trigger != "" {
		w.log.Debug("file changed, recompiling", zap.String("file", trigger))
	}
	start := time.Now()
	results := compileAll(ctx, w.compiler, w.targets, 1, w.out)

	failed := 0
	for _, r := range results {
		if r.err != nil {
			failed++
			w.log.Warn("shader failed to compile", zap.String("input", r.Input), zap.Error(r.err))
			printError(w.out, r.err)
			continue
		}
		_, _ = fmt.Fprintf(w.out, "%s %s -> %s (%d bytes)\n", okStyle.Render("ok"), r.Input, r.Output, r.Bytes)
	}
	w.log.Info("rebuild finished",
		zap.Int("targets", len(results)),
		zap.Int("failed", failed),
		zap.Duration("elapsed", time.Since(start)))

	w.followHeaders()
}

func (w *watcher) add(dir string) error {
	if w.watched[dir] {
		return nil
	}
	if err := w.fw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.watched[dir] = true
	return nil
}

// followHeaders starts watching directories of headers resolved by the
// last rebuild.
func (w *watcher) followHeaders() {
	if w.headers == nil || w.fw == nil {
		return
	}
	for _, d := range w.headers.list() {
		if w.watched[d] {
			continue
		}
		if err := w.add(d); err != nil {
			w.log.Warn("cannot watch header directory", zap.String("dir", d), zap.Error(err))
			continue
		}
		w.log.Debug("watching header directory", zap.String("dir", d))
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
