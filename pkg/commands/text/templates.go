// Package text formats the help text of CLI commands.
package text

import (
	"strings"
)

// Indentation is the indentation of example lines in help output.
const Indentation = `  `

// LongDesc strips the blank lines around a long description and the indentation its lines
// share, so descriptions can be written as indented raw strings.
func LongDesc(s string) string {
	return strings.Join(dedent(s), "\n")
}

// Examples dedents examples like LongDesc and indents every line with Indentation.
func Examples(s string) string {
	lines := dedent(s)
	for i, line := range lines {
		if line != "" {
			lines[i] = Indentation + line
		}
	}

	return strings.Join(lines, "\n")
}

// dedent splits s into lines without the surrounding blank lines, the common leading
// whitespace and trailing whitespace.
func dedent(s string) []string {
	s = strings.Trim(s, "\n")
	if strings.TrimSpace(s) == "" {
		return nil
	}

	lines := strings.Split(s, "\n")

	prefix := ""
	first := true
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}

		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		if first {
			prefix, first = indent, false
			continue
		}
		prefix = commonPrefix(prefix, indent)
	}

	for i, line := range lines {
		lines[i] = strings.TrimRight(strings.TrimPrefix(line, prefix), " \t")
	}

	// drop blank lines left at either end
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for len(lines) > 0 && lines[0] == "" {
		lines = lines[1:]
	}

	return lines
}

func commonPrefix(a, b string) string {
	n := min(len(a), len(b))
	for i := range n {
		if a[i] != b[i] {
			return a[:i]
		}
	}

	return a[:n]
}
