package sampler

import (
	"fmt"
	"strconv"
	"strings"
)

// Parser extracts the integer reading that follows Marker on a line, e.g.
// "Combined Power (CPU + GPU + ANE): 3500 mW".
type Parser struct {
	Marker     string
	UnitSuffix string
}

// Parse reports whether line carries the marker and, if so, its value. A
// matched line with an unparseable value returns an error.
func (p Parser) Parse(line string) (int64, bool, error) {
	idx := strings.Index(line, p.Marker)
	if idx < 0 {
		return 0, false, nil
	}

	field := strings.TrimSpace(line[idx+len(p.Marker):])
	field = strings.TrimSpace(strings.TrimPrefix(field, ":"))
	if p.UnitSuffix != "" {
		field = strings.TrimSpace(strings.TrimSuffix(field, p.UnitSuffix))
	}

	value, err := strconv.ParseInt(field, 10, 64)
	if err != nil {
		return 0, true, fmt.Errorf("parse %q: %w", field, err)
	}
	return value, true, nil
}
