package include

import (
	"fmt"
	"os"
)

// FileReader reads whole files. It is the file-access collaborator used
// both for top-level sources and for headers.
type FileReader interface {
	ReadFile(name string) ([]byte, error)
}

// FileReaderFunc adapts a function to the FileReader interface.
type FileReaderFunc func(name string) ([]byte, error)

// ReadFile calls f(name).
func (f FileReaderFunc) ReadFile(name string) ([]byte, error) { return f(name) }

// OSFiles reads from the host file system.
var OSFiles FileReader = FileReaderFunc(os.ReadFile)

// ReadLocation validates locator and reads the file it points to.
func ReadLocation(files FileReader, locator string) ([]byte, error) {
	path, err := ParseLocator(locator)
	if err != nil {
		return nil, err
	}
	if files == nil {
		files = OSFiles
	}
	data, err := files.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
