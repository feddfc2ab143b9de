package wlproto

import (
	"fmt"
	"math"
	"strings"
)

// ObjectID identifies a protocol object. The zero value is the null object.
type ObjectID uint32

// Null is the null object reference, used for optional object arguments.
const Null ObjectID = 0

// Valid reports whether id refers to an object.
func (id ObjectID) Valid() bool { return id != Null }

func (id ObjectID) String() string {
	if id == Null {
		return "null"
	}
	return fmt.Sprintf("#%d", uint32(id))
}

// Fixed is a signed 24.8 fixed-point number as carried by wl_fixed_t.
type Fixed int32

// FixedFromFloat converts v, rounding to the nearest 1/256.
func FixedFromFloat(v float64) Fixed {
	return Fixed(math.Round(v * 256))
}

// FixedFromInt converts an integer coordinate.
func FixedFromInt(v int) Fixed { return Fixed(v << 8) }

// Float returns f as a float64.
func (f Fixed) Float() float64 { return float64(f) / 256 }

// Int returns the integer part of f, truncated toward negative infinity.
func (f Fixed) Int() int { return int(f >> 8) }

// DndAction is the wl_data_device_manager.dnd_action bitset.
type DndAction uint32

const (
	ActionNone DndAction = 0
	ActionCopy DndAction = 1
	ActionMove DndAction = 2
	ActionAsk  DndAction = 4

	actionMask = ActionCopy | ActionMove | ActionAsk
)

// Has reports whether every bit of a is set in actions.
func (actions DndAction) Has(a DndAction) bool {
	return a != ActionNone && actions&a == a
}

// Valid reports whether actions only carries known bits.
func (actions DndAction) Valid() bool { return actions&^actionMask == 0 }

// Single reports whether exactly one action bit is set.
func (actions DndAction) Single() bool {
	return actions != ActionNone && actions&(actions-1) == 0
}

func (actions DndAction) String() string {
	if actions == ActionNone {
		return "none"
	}
	var parts []string
	for _, a := range []struct {
		bit  DndAction
		name string
	}{{ActionCopy, "copy"}, {ActionMove, "move"}, {ActionAsk, "ask"}} {
		if actions&a.bit != 0 {
			parts = append(parts, a.name)
		}
	}
	if rest := actions &^ actionMask; rest != 0 {
		parts = append(parts, fmt.Sprintf("%#x", uint32(rest)))
	}
	return strings.Join(parts, "|")
}

// ParseDndActions parses action names ("copy", "move", "ask", "none").
// Each element may itself be a "|" or "," separated list.
func ParseDndActions(names ...string) (DndAction, error) {
	var out DndAction
	for _, n := range names {
		for _, f := range strings.FieldsFunc(n, func(r rune) bool { return r == '|' || r == ',' }) {
			switch strings.ToLower(strings.TrimSpace(f)) {
			case "copy":
				out |= ActionCopy
			case "move":
				out |= ActionMove
			case "ask":
				out |= ActionAsk
			case "none", "":
			default:
				return ActionNone, fmt.Errorf("unknown dnd action %q", f)
			}
		}
	}
	return out, nil
}

// Negotiate picks the single action a drag will perform, given the actions
// the source advertises, the actions the destination supports, and the
// destination's preferred action. The preferred action wins when both sides
// allow it; otherwise copy, move and ask are tried in that order. ok is false
// when the two sets do not intersect, in which case the destination should
// not accept the offer.
func Negotiate(source, destination, preferred DndAction) (action DndAction, ok bool) {
	common := source & destination & actionMask
	if common == ActionNone {
		return ActionNone, false
	}
	if preferred.Single() && common&preferred != 0 {
		return preferred, true
	}
	for _, a := range []DndAction{ActionCopy, ActionMove, ActionAsk} {
		if common&a != 0 {
			return a, true
		}
	}
	return ActionNone, false
}
