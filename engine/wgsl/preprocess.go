package wgsl

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/gogpu/spirvc/include"
)

// maxNesting bounds recursive expansion so include cycles terminate.
const maxNesting = 64

var (
	errNoResolver = errors.New("#include used but no include callbacks are registered")
	errNilResult  = errors.New("include resolver returned no result")
	errNesting    = fmt.Errorf("#include nested deeper than %d levels", maxNesting)
)

var directive = regexp.MustCompile(`^\s*#\s*include\s*(?:"([^"]*)"|<([^>]*)>)\s*(?://.*)?$`)

// IncludeError reports a failed #include directive.
type IncludeError struct {
	Identity string // unit containing the directive
	Line     int
	Header   string
	Err      error
}

func (e *IncludeError) Error() string {
	return fmt.Sprintf("%s:%d: error: #include %q: %v", e.Identity, e.Line, e.Header, e.Err)
}

func (e *IncludeError) Unwrap() error { return e.Err }

// position is a line in one source unit.
type position struct {
	unit string
	line int
}

// lineMap maps each line of flattened text (index = line-1) back to the
// unit and line it came from.
type lineMap []position

// at formats a diagnostic at a flattened line and column, translated back
// to the unit that holds it.
func (m lineMap) at(identity string, line, col int, msg string) string {
	if line <= 0 {
		return fmt.Sprintf("%s: error: %s", identity, msg)
	}
	unit := identity
	if line <= len(m) {
		unit, line = m[line-1].unit, m[line-1].line
	}
	return fmt.Sprintf("%s:%d:%d: error: %s", unit, line, col, msg)
}

type preprocessor struct {
	resolver include.Resolver
	releaser include.Releaser
	out      strings.Builder
	lines    lineMap
}

// expand writes source to p.out with every include directive replaced by
// the resolved header.
func (p *preprocessor) expand(identity, source string, depth int) error {
	for n, line := range strings.SplitAfter(source, "\n") {
		text := strings.TrimRight(line, "\r\n")
		m := directive.FindStringSubmatchIndex(text)
		if m == nil {
			if line != "" {
				p.out.WriteString(line)
				p.lines = append(p.lines, position{unit: identity, line: n + 1})
			}
			continue
		}

		req := include.Request{Requester: identity, Type: include.TypeRelative, Depth: depth + 1}
		if m[2] >= 0 {
			req.Name = text[m[2]:m[3]]
		} else {
			req.Name, req.Type = text[m[4]:m[5]], include.TypeStandard
		}
		if err := p.splice(req); err != nil {
			var ie *IncludeError
			if errors.As(err, &ie) {
				return err
			}
			return &IncludeError{Identity: identity, Line: n + 1, Header: req.Name, Err: err}
		}
	}
	return nil
}

func (p *preprocessor) splice(req include.Request) error {
	if p.resolver == nil {
		return errNoResolver
	}
	if req.Depth > maxNesting {
		return errNesting
	}

	res, err := p.resolver.Resolve(req)
	if err != nil {
		return err
	}
	if res == nil {
		return errNilResult
	}
	defer p.releaser.Release(res)

	if err := p.expand(res.Name, string(res.Content), req.Depth); err != nil {
		return err
	}
	if !strings.HasSuffix(p.out.String(), "\n") {
		p.out.WriteByte('\n')
	}
	return nil
}

// Preprocess expands include directives in source using the given
// callbacks. It is exposed for tools that want the flattened text.
//
// Line numbers in the flattened text differ from the original units once
// a header is spliced in; the engine translates them back in its
// diagnostics.
func Preprocess(identity, source string, resolver include.Resolver, releaser include.Releaser) (string, error) {
	text, _, err := preprocess(identity, source, resolver, releaser)
	return text, err
}

func preprocess(identity, source string, resolver include.Resolver, releaser include.Releaser) (string, lineMap, error) {
	if releaser == nil {
		releaser = include.NopReleaser
	}
	p := &preprocessor{resolver: resolver, releaser: releaser}
	if err := p.expand(identity, source, 0); err != nil {
		return "", nil, err
	}
	return p.out.String(), p.lines, nil
}
