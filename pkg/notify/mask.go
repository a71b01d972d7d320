package notify

import (
	"fmt"
	"strconv"
	"strings"
)

// Mask is a category bitmask. Bit values follow inotify(7) so that masks
// produced by the Linux backend travel unchanged to subscribers.
type Mask uint32

// Event categories.
const (
	Access       Mask = 0x00000001 // File was read
	Modify       Mask = 0x00000002 // File was written
	Attrib       Mask = 0x00000004 // Metadata changed
	CloseWrite   Mask = 0x00000008 // Writable file was closed
	CloseNowrite Mask = 0x00000010 // Read-only file was closed
	Open         Mask = 0x00000020 // File was opened
	MovedFrom    Mask = 0x00000040 // Entry moved out of the directory
	MovedTo      Mask = 0x00000080 // Entry moved into the directory
	Create       Mask = 0x00000100 // Entry created
	Delete       Mask = 0x00000200 // Entry deleted
	DeleteSelf   Mask = 0x00000400 // Watched directory itself deleted
	MoveSelf     Mask = 0x00000800 // Watched directory itself moved
	Unmount      Mask = 0x00002000 // Backing filesystem unmounted
	Overflow     Mask = 0x00004000 // Event queue overflowed
	Ignored      Mask = 0x00008000 // Watch was removed
	IsDir        Mask = 0x40000000 // Subject is a directory

	Close     = CloseWrite | CloseNowrite
	Move      = MovedFrom | MovedTo
	AllEvents = Access | Modify | Attrib | Close | Open | Move |
		Create | Delete | DeleteSelf | MoveSelf
	Everything Mask = 0xFFFFFFFF
)

var maskNames = []struct {
	mask Mask
	name string
}{
	{Access, "IN_ACCESS"},
	{Attrib, "IN_ATTRIB"},
	{CloseWrite, "IN_CLOSE_WRITE"},
	{CloseNowrite, "IN_CLOSE_NOWRITE"},
	{Delete, "IN_DELETE"},
	{Create, "IN_CREATE"},
	{DeleteSelf, "IN_DELETE_SELF"},
	{Modify, "IN_MODIFY"},
	{MoveSelf, "IN_MOVE_SELF"},
	{MovedFrom, "IN_MOVED_FROM"},
	{MovedTo, "IN_MOVED_TO"},
	{Open, "IN_OPEN"},
	{Ignored, "IN_IGNORED"},
	{Unmount, "IN_UNMOUNT"},
	{Overflow, "IN_Q_OVERFLOW"},
	{IsDir, "IN_ISDIR"},
}

// aliases are accepted by ParseMask in addition to the canonical names.
var aliases = map[string]Mask{
	"CLOSE":    Close,
	"MOVE":     Move,
	"MOVED":    Move,
	"OVERFLOW": Overflow,
	"ALL":      AllEvents,
	"ANY":      Everything,
}

// Has reports whether every bit of other is set in m.
func (m Mask) Has(other Mask) bool {
	return m&other == other
}

// Intersects reports whether m and other share at least one bit.
func (m Mask) Intersects(other Mask) bool {
	return m&other != 0
}

// String renders the mask as "IN_CREATE|IN_ISDIR". Bits without a name are
// appended in hex.
func (m Mask) String() string {
	if m == 0 {
		return "0"
	}
	return strings.Join(m.Names(), "|")
}

// Names returns the category names of the set bits in a fixed order.
func (m Mask) Names() []string {
	parts := make([]string, 0, 2)
	rest := m
	for _, n := range maskNames {
		if rest&n.mask != 0 {
			parts = append(parts, n.name)
			rest &^= n.mask
		}
	}
	if rest != 0 {
		parts = append(parts, fmt.Sprintf("%#x", uint32(rest)))
	}
	return parts
}

// ParseMask parses a list of categories separated by commas or pipes.
// Each item is either an integer (decimal or 0x hex) or a category name
// with or without the IN_ prefix, case-insensitive ("create", "IN_DELETE",
// "close", "all").
func ParseMask(s string) (Mask, error) {
	var m Mask

	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '|' || r == ' '
	})
	if len(fields) == 0 {
		return 0, fmt.Errorf("%w: empty mask", ErrUnknownCategory)
	}

	for _, field := range fields {
		if v, err := strconv.ParseUint(field, 0, 32); err == nil {
			m |= Mask(v)
			continue
		}

		bits, ok := lookupName(field)
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, field)
		}
		m |= bits
	}

	return m, nil
}

func lookupName(name string) (Mask, bool) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	short := strings.TrimPrefix(upper, "IN_")

	if m, ok := aliases[short]; ok {
		return m, true
	}
	for _, n := range maskNames {
		if n.name == "IN_"+short {
			return n.mask, true
		}
	}
	return 0, false
}
