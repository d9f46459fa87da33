package include

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

var (
	// ErrEmptyHeader is returned for a directive without a header name.
	ErrEmptyHeader = errors.New("include: empty header name")

	// ErrIncludeDepth is returned when a request nests deeper than
	// FileResolver.MaxDepth.
	ErrIncludeDepth = errors.New("include: depth limit exceeded")

	// ErrOutsideRoot is returned when a header path leaves
	// FileResolver.Root.
	ErrOutsideRoot = errors.New("include: header outside the include root")
)

// ResolveError reports a header that could not be resolved.
type ResolveError struct {
	Request Request
	Path    string // first candidate path, if one was derived
	Err     error
}

func (e *ResolveError) Error() string {
	var b strings.Builder
	b.WriteString("include ")
	b.WriteString(`"` + e.Request.Name + `"`)
	if e.Request.Requester != "" {
		b.WriteString(" from ")
		b.WriteString(e.Request.Requester)
	}
	if e.Path != "" {
		b.WriteString(" (")
		b.WriteString(e.Path)
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}

// FileResolver resolves headers from files next to the requesting source.
//
// The header path is the requester's directory joined with the requested
// name, absolute names included: "/x.glsl" from /srv/a.frag is
// /srv/x.glsl. Angled (TypeStandard) directives that miss there fall back
// to SearchDirs in order. A missing header is an error; there is no
// "skip and continue" mode.
type FileResolver struct {
	// Files reads header bytes. Nil means OSFiles.
	Files FileReader

	// SearchDirs are tried for angled includes after the requester's
	// directory.
	SearchDirs []string

	// MaxDepth rejects requests nested deeper than this. Zero disables
	// the check.
	MaxDepth int

	// Root, when set, confines every candidate path to this directory
	// tree after ".." segments are resolved. Candidates outside it are
	// never read.
	Root string

	// Logger receives one info line per resolved header. Nil disables
	// logging.
	Logger *zap.Logger
}

// Resolve implements Resolver.
func (r *FileResolver) Resolve(req Request) (*Result, error) {
	if req.Name == "" {
		return nil, &ResolveError{Request: req, Err: ErrEmptyHeader}
	}
	if r.MaxDepth > 0 && req.Depth > r.MaxDepth {
		return nil, &ResolveError{Request: req, Err: ErrIncludeDepth}
	}

	candidates, err := r.candidates(req)
	if err != nil {
		return nil, &ResolveError{Request: req, Err: err}
	}

	files := r.Files
	if files == nil {
		files = OSFiles
	}

	var lastErr error
	for _, path := range candidates {
		if err := r.confine(path); err != nil {
			lastErr = err
			continue
		}
		content, err := files.ReadFile(path)
		if err == nil {
			r.logger().Info("resolved include",
				zap.String("header", req.Name),
				zap.String("requester", req.Requester),
				zap.String("path", path),
				zap.Int("depth", req.Depth))
			return &Result{Name: Locator(path, req.Requester), Content: content}, nil
		}
		lastErr = err
		if !errors.Is(err, fs.ErrNotExist) {
			break
		}
	}
	return nil, &ResolveError{Request: req, Path: candidates[0], Err: lastErr}
}

// candidates lists the paths to try, most specific first. Every path is
// a base directory joined with the name.
func (r *FileResolver) candidates(req Request) ([]string, error) {
	name := filepath.FromSlash(req.Name)
	if vol := filepath.VolumeName(name); vol != "" {
		name = name[len(vol):]
	}

	requester, err := ParseLocator(req.Requester)
	if err != nil {
		return nil, err
	}

	paths := []string{filepath.Join(filepath.Dir(requester), name)}
	if req.Type == TypeStandard {
		for _, dir := range r.SearchDirs {
			paths = append(paths, filepath.Join(dir, name))
		}
	}
	return paths, nil
}

// confine rejects path when it is outside r.Root.
func (r *FileResolver) confine(path string) error {
	if r.Root == "" {
		return nil
	}
	root, err := filepath.Abs(r.Root)
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s is not under %s", ErrOutsideRoot, abs, root)
	}
	return nil
}

func (r *FileResolver) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}
