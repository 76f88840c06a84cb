// pkg/env/apply.go
package env

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// header precedes every block of lines appended to a config file
const header = "# runtime environment added by bundlekit"

// Lookup returns the value of a composed variable
func (r *RuntimeEnvironment) Lookup(name string) (string, bool) {
	for _, v := range r.Vars {
		if v.Name == name {
			return v.Value, true
		}
	}
	return "", false
}

// ExportLines renders the variables as shell export statements
func (r *RuntimeEnvironment) ExportLines() []string {
	lines := make([]string, 0, len(r.Vars))
	for _, v := range r.Vars {
		lines = append(lines, fmt.Sprintf("export %s=\"%s\"", v.Name, quote(v.Value)))
	}
	return lines
}

// Apply appends every patch to its file. Existing content is kept as is;
// a file without a trailing newline gets one before the new lines.
func (r *RuntimeEnvironment) Apply() error {
	for _, p := range r.Patches {
		if err := appendLines(p.Path, p.Lines); err != nil {
			return fmt.Errorf("patching %s: %w", p.Path, err)
		}
	}
	return nil
}

func appendLines(path string, lines []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	var b strings.Builder
	if needsNewline(f) {
		b.WriteString("\n")
	}
	b.WriteString(header + "\n")
	for _, l := range lines {
		b.WriteString(l + "\n")
	}

	if _, err := f.WriteString(b.String()); err != nil {
		return err
	}
	return f.Close()
}

// needsNewline reports whether a non-empty file lacks a final newline
func needsNewline(f *os.File) bool {
	info, err := f.Stat()
	if err != nil || info.Size() == 0 {
		return false
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil && err != io.EOF {
		return false
	}
	return last[0] != '\n'
}

// quote escapes a value for a double-quoted shell string. $ is left alone
// so values may refer to variables set earlier in the config file.
func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "`", "\\`")
	return r.Replace(s)
}
