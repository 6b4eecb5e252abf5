package subscribe

import (
	"fmt"
	"strconv"
	"strings"
)

// Cursor marks a position in the message stream: everything before it has
// been delivered.
type Cursor struct {
	Timetoken uint64 `json:"timetoken" yaml:"timetoken"`
	Region    int    `json:"region" yaml:"region"`
}

// IsZero reports whether the cursor has no timetoken, meaning no position is
// known yet.
func (c Cursor) IsZero() bool {
	return c.Timetoken == 0
}

// String renders the cursor as "timetoken/region".
func (c Cursor) String() string {
	return fmt.Sprintf("%d/%d", c.Timetoken, c.Region)
}

// ParseCursor parses "timetoken" or "timetoken/region".
func ParseCursor(s string) (Cursor, error) {
	tt, region, hasRegion := strings.Cut(strings.TrimSpace(s), "/")

	timetoken, err := strconv.ParseUint(tt, 10, 64)
	if err != nil {
		return Cursor{}, fmt.Errorf("parse cursor timetoken %q: %w", tt, err)
	}

	c := Cursor{Timetoken: timetoken}
	if hasRegion {
		r, err := strconv.Atoi(region)
		if err != nil {
			return Cursor{}, fmt.Errorf("parse cursor region %q: %w", region, err)
		}
		c.Region = r
	}
	return c, nil
}
