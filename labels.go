package hooptrack

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// ClassTable is the ordered list of class names a detection Model was
// trained on.  A Detection's Class field indexes into it.
type ClassTable []string

// Name returns the class name for the given index, or an empty string if
// the index is out of range
func (c ClassTable) Name(class int) string {
	if class < 0 || class >= len(c) {
		return ""
	}
	return c[class]
}

// Index resolves a class name to its index.  Matching ignores case as model
// label files are inconsistent about it, eg: "Ball" vs "ball".
func (c ClassTable) Index(name string) (int, bool) {
	for i, n := range c {
		if strings.EqualFold(n, name) {
			return i, true
		}
	}
	return -1, false
}

// LoadLabels reads the class table of a detection Model from a text file
// holding one class name per line in class index order.  Blank lines and
// lines starting with # are skipped.  The table must name at least one
// class and no name may repeat, ignoring case, as Index could not tell the
// repeats apart.
func LoadLabels(file string) (ClassTable, error) {

	f, err := os.Open(file)

	if err != nil {
		return nil, fmt.Errorf("error opening labels file: %w", err)
	}

	defer f.Close()

	var (
		table ClassTable
		// seen maps a folded name to its line number
		seen   = make(map[string]int)
		lineNo int
	)

	scanner := bufio.NewScanner(f)

	for scanner.Scan() {
		lineNo++
		name := strings.TrimSpace(scanner.Text())

		if name == "" || strings.HasPrefix(name, "#") {
			continue
		}

		key := strings.ToLower(name)

		if prev, dup := seen[key]; dup {
			return nil, fmt.Errorf("labels file %s: class %q on line %d repeats line %d",
				file, name, lineNo, prev)
		}

		seen[key] = lineNo
		table = append(table, name)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading labels file %s: %w", file, err)
	}

	if len(table) == 0 {
		return nil, fmt.Errorf("labels file %s has no classes", file)
	}

	return table, nil
}
