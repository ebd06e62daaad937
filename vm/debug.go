package vm

import (
	"fmt"
	"sort"
	"strings"
)

// DebugFlags selects optional diagnostic output and end-of-run behavior.
type DebugFlags uint16

const (
	DebugInitLines  DebugFlags = 1 << iota // log each source line as it is loaded
	DebugPostInit                          // log the grid once loaded
	DebugGet                               // log each 'g'
	DebugPut                               // log each 'p'
	DebugPostStack                         // log the stack at halt
	DebugCloseOnEnd                        // ask the companion to exit at halt
	DebugNoFlush                           // skip the Flush request at halt
)

var debugFlagNames = map[string]DebugFlags{
	"initlines":  DebugInitLines,
	"postinit":   DebugPostInit,
	"getdbg":     DebugGet,
	"putdbg":     DebugPut,
	"poststack":  DebugPostStack,
	"closeonend": DebugCloseOnEnd,
	"noflush":    DebugNoFlush,
}

// ParseDebugFlags parses flag names such as "postinit" or "noflush".
// Empty names are ignored.
func ParseDebugFlags(names []string) (DebugFlags, error) {
	var f DebugFlags
	for _, name := range names {
		name = strings.TrimSpace(strings.ToLower(name))
		if name == "" {
			continue
		}
		bit, ok := debugFlagNames[name]
		if !ok {
			return 0, fmt.Errorf("vm: unknown debug flag %q", name)
		}
		f |= bit
	}
	return f, nil
}

// Has reports whether every bit in mask is set.
func (f DebugFlags) Has(mask DebugFlags) bool {
	return f&mask == mask
}

func (f DebugFlags) String() string {
	var names []string
	for name, bit := range debugFlagNames {
		if f&bit != 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}
