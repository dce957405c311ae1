// Package timeparse turns user supplied times into timestamps. Inputs may be
// RFC3339 or natural language such as "tomorrow 6pm" or "in 2 hours".
package timeparse

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Black-And-White-Club/shardboard/app/shared/apperrors"
	sharedtypes "github.com/Black-And-White-Club/shardboard/app/shared/types"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

var compactClock = regexp.MustCompile(`\b(\d{1,2})(\d{2})(am|pm)\b`)

// Parser parses times relative to a clock in one location.
type Parser struct {
	w   *when.Parser
	loc *time.Location
}

// New returns a parser for loc. A nil loc means UTC.
func New(loc *time.Location) *Parser {
	if loc == nil {
		loc = time.UTC
	}
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return &Parser{w: w, loc: loc}
}

// Parse converts input to a timestamp. An empty input is a zero timestamp.
func (p *Parser) Parse(input string, now time.Time) (sharedtypes.Timestamp, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return 0, nil
	}
	if t, err := time.Parse(time.RFC3339, input); err == nil {
		return sharedtypes.TimestampFrom(t), nil
	}

	normalized := strings.ToLower(input)
	normalized = strings.ReplaceAll(normalized, "today ", "today at ")
	normalized = compactClock.ReplaceAllString(normalized, "$1:$2 $3")

	r, err := p.w.Parse(normalized, now.In(p.loc))
	if err != nil {
		return 0, apperrors.Validation("could not parse time %q: %v", input, err)
	}
	if r == nil {
		return 0, apperrors.Validation("could not recognize time format: %s", input)
	}
	return sharedtypes.TimestampFrom(r.Time.In(p.loc).Truncate(time.Minute)), nil
}

// Window parses both bounds. Either may be empty for an unbounded side.
func (p *Parser) Window(start, end string, now time.Time) (sharedtypes.Window, error) {
	s, err := p.Parse(start, now)
	if err != nil {
		return sharedtypes.Window{}, fmt.Errorf("start: %w", err)
	}
	e, err := p.Parse(end, now)
	if err != nil {
		return sharedtypes.Window{}, fmt.Errorf("end: %w", err)
	}
	w := sharedtypes.Window{Start: s, End: e}
	if err := w.Validate(); err != nil {
		return sharedtypes.Window{}, apperrors.Validation("%v", err)
	}
	return w, nil
}
