// File: internal/feature/feature.go
// Description: Line-oriented feature file parsing. A feature file is a list
// of scenarios, each a "Scenario:" header followed by one natural-language
// step per line. Blank lines and "#" comments are ignored.
package feature

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Step is one natural-language instruction.
type Step struct {
	Text string
	// Line is the 1-based source line, kept for error reporting.
	Line int
}

// Scenario is a named ordered list of steps.
type Scenario struct {
	Name  string
	Steps []Step
}

const scenarioPrefix = "scenario:"

// Parse reads scenarios from r. Step lines outside any scenario are an
// error, as are duplicate scenario names (they would collide as cache keys).
func Parse(r io.Reader) ([]Scenario, error) {
	var (
		scenarios []Scenario
		current   *Scenario
		seen      = map[string]bool{}
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(strings.ToLower(line), scenarioPrefix) {
			name := strings.TrimSpace(line[len(scenarioPrefix):])
			if name == "" {
				return nil, fmt.Errorf("line %d: scenario header has no name", lineNo)
			}
			if seen[name] {
				return nil, fmt.Errorf("line %d: duplicate scenario %q", lineNo, name)
			}
			seen[name] = true
			scenarios = append(scenarios, Scenario{Name: name})
			current = &scenarios[len(scenarios)-1]
			continue
		}

		if current == nil {
			return nil, fmt.Errorf("line %d: step %q appears before any scenario header", lineNo, line)
		}
		current.Steps = append(current.Steps, Step{Text: line, Line: lineNo})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read feature file: %w", err)
	}
	return scenarios, nil
}

// ParseFile parses the feature file at path.
func ParseFile(path string) ([]Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open feature file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}
