/*
	Copyright 2024 Alexander Vollschwitz <xelalex@gmx.net>

	Licensed under the Apache License, Version 2.0 (the "License");
	you may not use this file except in compliance with the License.
	You may obtain a copy of the License at

	  http://www.apache.org/licenses/LICENSE-2.0

	Unless required by applicable law or agreed to in writing, software
	distributed under the License is distributed on an "AS IS" BASIS,
	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
	See the License for the specific language governing permissions and
	limitations under the License.
*/

/*
	An image list is a text file with one image reference per line:

	  # comments start with '#', also after a reference
	  import library more/busybox    # paths relative to this file
	  registry.example.com/unittest/demo:v1.0.0,stable
	  nginx@sha256:<digest>

	An import names files or directories. All entries directly inside an
	imported directory are loaded as image lists, in name order. A subdirectory
	in there is an error.
*/

package imagelist

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/imagekit/internal/pkg/reference"
)

//
const importDirective = "import"

//
var (
	ErrFileNotFound  = errors.New("image list not found")
	ErrInvalidImport = errors.New("invalid import")
	ErrCyclicImport  = errors.New("cyclic import")
)

// Loader is a reference set populated from an image list file, including
// the files it imports. It is read once during Load.
type Loader struct {
	*reference.Set
	dirname  string
	basename string
	files    []string
}

// Load reads the image list in filename and everything it imports. Loading
// stops at the first invalid line, and the returned error wraps the root
// cause.
func Load(filename string) (*Loader, error) {
	return load(filename, nil)
}

//
func load(filename string, stack []string) (*Loader, error) {

	abs, err := filepath.Abs(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: '%s': %v", ErrFileNotFound, filename, err)
	}

	if fi, err := os.Stat(abs); err != nil || !fi.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: '%s'", ErrFileNotFound, abs)
	}

	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: '%s': %v", ErrFileNotFound, abs, err)
	}

	for _, f := range stack {
		if f == canonical {
			return nil, fmt.Errorf("%w: '%s' is already being loaded via %s",
				ErrCyclicImport, abs, strings.Join(stack, " -> "))
		}
	}

	l := &Loader{
		Set:      reference.NewSet(),
		dirname:  filepath.Dir(abs),
		basename: filepath.Base(abs),
		files:    []string{abs},
	}

	logger := log.WithField("file", abs)
	logger.Debug("loading image list")

	if err := l.read(append(stack, canonical)); err != nil {
		return nil, err
	}

	logger.WithField("count", l.Len()).Debug("image list loaded")
	return l, nil
}

//
func (l *Loader) read(stack []string) error {

	f, err := os.Open(l.Filename())
	if err != nil {
		return fmt.Errorf("%w: '%s': %v", ErrFileNotFound, l.Filename(), err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0

	for scanner.Scan() {

		lineNo++
		line := stripComment(strings.TrimSpace(scanner.Text()))
		if line == "" {
			continue
		}

		var err error
		if fields := strings.Fields(line); fields[0] == importDirective {
			err = l.imports(fields[1:], stack)
		} else {
			err = l.AppendString(line)
		}

		if err != nil {
			return fmt.Errorf("%s:%d: %w", l.Filename(), lineNo, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading '%s': %v", l.Filename(), err)
	}

	return nil
}

//
func (l *Loader) imports(paths []string, stack []string) error {

	if len(paths) == 0 {
		return fmt.Errorf("%w: no path given", ErrInvalidImport)
	}

	for _, p := range paths {

		if !filepath.IsAbs(p) {
			p = filepath.Join(l.dirname, p)
		}

		fi, err := os.Stat(p)
		if err != nil {
			return fmt.Errorf("%w: '%s'", ErrInvalidImport, p)
		}

		switch {

		case fi.IsDir():
			entries, err := os.ReadDir(p)
			if err != nil {
				return fmt.Errorf("%w: cannot list '%s': %v",
					ErrInvalidImport, p, err)
			}
			for _, e := range entries {
				if err := l.merge(filepath.Join(p, e.Name()), stack); err != nil {
					return err
				}
			}

		case fi.Mode().IsRegular():
			if err := l.merge(p, stack); err != nil {
				return err
			}

		default:
			return fmt.Errorf("%w: '%s'", ErrInvalidImport, p)
		}
	}

	return nil
}

//
func (l *Loader) merge(path string, stack []string) error {
	child, err := load(path, stack)
	if err != nil {
		return err
	}
	l.Extend(child.References()...)
	l.files = append(l.files, child.files...)
	return nil
}

// stripComment removes everything from the first unescaped '#' onwards. An
// escaped '\#' is kept as a literal '#'.
func stripComment(line string) string {

	if !strings.Contains(line, "#") {
		return line
	}

	var b strings.Builder
	b.Grow(len(line))

	for i := 0; i < len(line); i++ {
		c := line[i]
		if c == '\\' && i+1 < len(line) && line[i+1] == '#' {
			b.WriteByte('#')
			i++
			continue
		}
		if c == '#' {
			break
		}
		b.WriteByte(c)
	}

	return strings.TrimSpace(b.String())
}

// Dirname returns the absolute directory of the image list.
func (l *Loader) Dirname() string {
	return l.dirname
}

//
func (l *Loader) Basename() string {
	return l.basename
}

// Filename returns the absolute path of the image list.
func (l *Loader) Filename() string {
	return filepath.Join(l.dirname, l.basename)
}

// Files returns the image list itself followed by all files loaded through
// imports, in load order. A file imported more than once is listed each time.
func (l *Loader) Files() []string {
	ret := make([]string, len(l.files))
	copy(ret, l.files)
	return ret
}
