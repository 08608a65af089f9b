package shader

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strconv"
	"strings"
)

const includeDirective = "#include"

// ExpandIncludes replaces every `#include "file"` line of source with the
// contents of file read from fsys, recursively. Each file is inserted once;
// later includes of the same file, cycles included, expand to nothing.
// Paths are relative to the root of fsys.
func ExpandIncludes(fsys fs.FS, source string) (string, error) {
	if !strings.Contains(source, includeDirective) {
		return source, nil
	}
	e := &expander{fsys: fsys, seen: make(map[string]bool)}
	var b strings.Builder
	if err := e.expand(&b, source, "<generated>"); err != nil {
		return "", err
	}
	return b.String(), nil
}

type expander struct {
	fsys fs.FS
	seen map[string]bool
}

func (e *expander) expand(b *strings.Builder, source, from string) error {
	lines := strings.Split(source, "\n")
	for i, line := range lines {
		name, ok, err := parseInclude(line)
		if err != nil {
			return fmt.Errorf("%s:%d: %w", from, i+1, err)
		}
		if !ok {
			b.WriteString(line)
			if i < len(lines)-1 {
				b.WriteByte('\n')
			}
			continue
		}

		name = path.Clean(name)
		if e.seen[name] {
			continue
		}
		e.seen[name] = true
		if e.fsys == nil {
			return fmt.Errorf("%s:%d: include %q: no include file system", from, i+1, name)
		}
		data, err := fs.ReadFile(e.fsys, name)
		if err != nil {
			return fmt.Errorf("%s:%d: include %q: %w", from, i+1, name, err)
		}
		if err := e.expand(b, string(data), name); err != nil {
			return err
		}
		b.WriteByte('\n')
	}
	return nil
}

// parseInclude recognizes `#include "name"`. ok is false for other lines.
func parseInclude(line string) (name string, ok bool, err error) {
	rest, found := strings.CutPrefix(strings.TrimSpace(line), includeDirective)
	if !found {
		return "", false, nil
	}
	rest = strings.TrimSpace(rest)
	name, err = strconv.Unquote(rest)
	if err != nil || name == "" {
		return "", false, errors.New("malformed include directive " + strconv.Quote(line))
	}
	return name, true, nil
}
