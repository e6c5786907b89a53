package script

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Output is one line of a job's output list: a logical filename and the
// physical file the job writes it to.
type Output struct {
	LFN string
	PFN string
}

// ReadOutputList parses a <job>.lst file as written by ProcessJob. Blank
// lines are skipped.
func ReadOutputList(r io.Reader) ([]Output, error) {
	var outputs []Output
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		lfn, pfn, ok := strings.Cut(text, " ")
		pfn = strings.TrimSpace(pfn)
		if !ok || pfn == "" {
			return nil, fmt.Errorf("output list line %d: expected \"LFN PFN\", got %q", line, text)
		}
		outputs = append(outputs, Output{LFN: lfn, PFN: pfn})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading output list: %w", err)
	}
	return outputs, nil
}
