package include

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"runtime"
	"strings"
)

const fileScheme = "file"

var (
	// ErrEmptyLocator is returned for an empty source identity.
	ErrEmptyLocator = errors.New("include: empty locator")

	// ErrUnsupportedLocator is returned for URIs with a scheme other than
	// file, or with a remote host.
	ErrUnsupportedLocator = errors.New("include: unsupported locator")

	// ErrMalformedLocator is returned for file URIs that do not parse.
	ErrMalformedLocator = errors.New("include: malformed locator")
)

// ParseLocator returns the file-system path named by loc.
//
// Accepted forms are plain paths ("shaders/a.glsl", "/abs/a.glsl") and
// file URIs ("file:/abs/a.glsl", "file:///abs/a.glsl",
// "file://localhost/abs/a.glsl", "file:rel/a.glsl").
func ParseLocator(loc string) (string, error) {
	if loc == "" {
		return "", ErrEmptyLocator
	}

	scheme, ok := uriScheme(loc)
	if !ok {
		return loc, nil
	}
	if !strings.EqualFold(scheme, fileScheme) {
		return "", fmt.Errorf("%w: scheme %q in %q", ErrUnsupportedLocator, scheme, loc)
	}

	u, err := url.Parse(loc)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedLocator, err)
	}
	if u.Host != "" && u.Host != "localhost" {
		return "", fmt.Errorf("%w: remote host %q in %q", ErrUnsupportedLocator, u.Host, loc)
	}

	p := u.Path
	if p == "" {
		p = u.Opaque
	}
	if p == "" {
		return "", fmt.Errorf("%w: %q has no path", ErrEmptyLocator, loc)
	}
	// file:///C:/dir/a.glsl
	if runtime.GOOS == "windows" && len(p) >= 3 && p[0] == '/' && p[2] == ':' {
		p = p[1:]
	}
	return filepath.FromSlash(p), nil
}

// Locator renders path in the same form as like: a file URI if like is
// one, the plain path otherwise.
func Locator(path, like string) string {
	if !IsFileURI(like) {
		return path
	}
	slashed := filepath.ToSlash(path)
	if filepath.IsAbs(path) {
		if !strings.HasPrefix(slashed, "/") {
			slashed = "/" + slashed
		}
		return (&url.URL{Scheme: fileScheme, Path: slashed}).String()
	}
	return fileScheme + ":" + slashed
}

// IsFileURI reports whether loc carries the file scheme.
func IsFileURI(loc string) bool {
	scheme, ok := uriScheme(loc)
	return ok && strings.EqualFold(scheme, fileScheme)
}

// uriScheme extracts an RFC 3986 scheme. Single letters are treated as
// Windows drive letters, not schemes.
func uriScheme(loc string) (string, bool) {
	i := strings.IndexByte(loc, ':')
	if i < 2 {
		return "", false
	}
	for j := 0; j < i; j++ {
		c := loc[j]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
		case j > 0 && ('0' <= c && c <= '9' || c == '+' || c == '-' || c == '.'):
		default:
			return "", false
		}
	}
	return loc[:i], true
}
