package subscribe

import (
	"fmt"
	"slices"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// PresenceSuffix marks the presence channel paired with a regular channel.
const PresenceSuffix = "-pnpres"

// Input is an immutable snapshot of subscribed channels and channel groups.
//
// Identity is by name; insertion order is irrelevant. The zero Input is
// empty. Every operation returns a new Input.
type Input struct {
	channels mapset.Set[string]
	groups   mapset.Set[string]
}

// NewInput builds an input from channel and group names, ignoring blanks and
// duplicates.
func NewInput(channels, groups []string) Input {
	return Input{
		channels: newNameSet(channels),
		groups:   newNameSet(groups),
	}
}

func newNameSet(names []string) mapset.Set[string] {
	s := mapset.NewThreadUnsafeSet[string]()
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			s.Add(n)
		}
	}
	return s
}

func orEmpty(s mapset.Set[string]) mapset.Set[string] {
	if s == nil {
		return mapset.NewThreadUnsafeSet[string]()
	}
	return s
}

// Channels returns the channel names, sorted.
func (i Input) Channels() []string {
	return sorted(i.channels)
}

// Groups returns the channel group names, sorted.
func (i Input) Groups() []string {
	return sorted(i.groups)
}

func sorted(s mapset.Set[string]) []string {
	if s == nil {
		return []string{}
	}
	out := s.ToSlice()
	slices.Sort(out)
	return out
}

// IsEmpty reports whether nothing is subscribed.
func (i Input) IsEmpty() bool {
	return orEmpty(i.channels).Cardinality() == 0 && orEmpty(i.groups).Cardinality() == 0
}

// Equal reports whether both inputs hold the same names.
func (i Input) Equal(o Input) bool {
	return orEmpty(i.channels).Equal(orEmpty(o.channels)) &&
		orEmpty(i.groups).Equal(orEmpty(o.groups))
}

// Union returns the names in either input.
func (i Input) Union(o Input) Input {
	return Input{
		channels: orEmpty(i.channels).Union(orEmpty(o.channels)),
		groups:   orEmpty(i.groups).Union(orEmpty(o.groups)),
	}
}

// Subtract returns the names in i that are not in o.
func (i Input) Subtract(o Input) Input {
	return Input{
		channels: orEmpty(i.channels).Difference(orEmpty(o.channels)),
		groups:   orEmpty(i.groups).Difference(orEmpty(o.groups)),
	}
}

// HasAdditions reports whether i contains names that prev does not.
func (i Input) HasAdditions(prev Input) bool {
	return !i.Subtract(prev).IsEmpty()
}

// WithPresence returns the input plus the presence channel of every regular
// channel.
func (i Input) WithPresence() Input {
	channels := i.Channels()
	extra := make([]string, 0, len(channels))
	for _, ch := range channels {
		if !strings.HasSuffix(ch, PresenceSuffix) {
			extra = append(extra, ch+PresenceSuffix)
		}
	}
	return i.Union(NewInput(extra, nil))
}

// ContainsChannel reports whether ch is subscribed.
func (i Input) ContainsChannel(ch string) bool {
	return orEmpty(i.channels).Contains(ch)
}

// ContainsGroup reports whether g is subscribed.
func (i Input) ContainsGroup(g string) bool {
	return orEmpty(i.groups).Contains(g)
}

// String renders the input for logs.
func (i Input) String() string {
	return fmt.Sprintf("channels=[%s] groups=[%s]",
		strings.Join(i.Channels(), ","),
		strings.Join(i.Groups(), ","),
	)
}
