// Package catalog holds the in-memory, immutable form of a declarative OBD
// parameter catalog: a tree of Spec -> Protocol -> Address -> Group ->
// Parameter. It never reads a catalog file itself (see catalogio for a
// reference reader) and never executes a script (see eval and evalexpr) —
// it only indexes the tree a reader produces and registers each
// parameter's scripts with a eval.Sandbox so the driver can invoke them
// later by handle.
package catalog

import (
	"fmt"
	"strings"

	"github.com/preet/libobdref-go/eval"
)

// ProtocolClass classifies a Protocol's link-layer framing. Values below
// ClassISO14230 are "legacy": a fixed 3-byte header, no length encoding.
type ProtocolClass int

const (
	ClassJ1850 ProtocolClass = iota
	ClassISO9141
	ClassISO14230
	ClassISO15765_11Bit
	ClassISO15765_29Bit
)

func (c ProtocolClass) String() string {
	switch c {
	case ClassJ1850:
		return "J1850"
	case ClassISO9141:
		return "ISO9141"
	case ClassISO14230:
		return "ISO14230"
	case ClassISO15765_11Bit:
		return "ISO15765_11BIT"
	case ClassISO15765_29Bit:
		return "ISO15765_29BIT"
	default:
		return fmt.Sprintf("ProtocolClass(%d)", int(c))
	}
}

// Legacy reports whether c uses the fixed 3-byte, no-length-encoding
// header shared by J1850 and ISO 9141-2.
func (c ProtocolClass) Legacy() bool { return c < ClassISO14230 }

// ClassifyProtocol derives a ProtocolClass from a protocol's declared
// name by case-sensitive substring match, per the catalog's on-disk
// naming convention.
func ClassifyProtocol(name string) (ProtocolClass, error) {
	switch {
	case strings.Contains(name, "SAE J1850"):
		return ClassJ1850, nil
	case name == "ISO 9141-2":
		return ClassISO9141, nil
	case name == "ISO 14230":
		return ClassISO14230, nil
	case strings.Contains(name, "ISO 15765"):
		if strings.Contains(name, "Extended Id") {
			return ClassISO15765_29Bit, nil
		}
		return ClassISO15765_11Bit, nil
	default:
		return 0, &UnsupportedProtocolError{Name: name}
	}
}

// UnsupportedProtocolError reports a protocol name that matched no known
// classifier.
type UnsupportedProtocolError struct{ Name string }

func (e *UnsupportedProtocolError) Error() string {
	return fmt.Sprintf("catalog: unsupported protocol %q", e.Name)
}

// Descriptor is a bag of string attributes drawn from {prio, target,
// source, format, identifier}. Presence and meaning depend on the
// protocol. A nil Descriptor means the attribute bag was not declared at
// all (as opposed to declared empty).
type Descriptor map[string]string

// Get returns the named attribute and whether it was present.
func (d Descriptor) Get(key string) (string, bool) {
	if d == nil {
		return "", false
	}
	v, ok := d[key]
	return v, ok
}

// Address is a named endpoint within a Protocol, carrying optional request
// and response header descriptors.
type Address struct {
	Name     string
	Request  Descriptor
	Response Descriptor
}

// ParseMode chooses whether a Parameter's script runs once per cleaned
// response entry (Separately) or once per ParameterFrame (Combined).
type ParseMode int

const (
	ParseSeparately ParseMode = iota
	ParseCombined
)

func (m ParseMode) String() string {
	if m == ParseCombined {
		return "combined"
	}
	return "separately"
}

// RequestSpec is one request/response template within a Parameter, either
// the sole entry of a single-request parameter or one numbered entry of a
// multi-request parameter.
type RequestSpec struct {
	Tokens string // whitespace-separated request bytes, e.g. "0x01 0x0C"

	HasDelay bool
	DelayMS  int

	ResponsePrefix string // hex digits, may be empty
	HasBytes       bool
	ResponseBytes  int // expected response byte count, meaningful iff HasBytes
}

// scriptEntry is one registered script body for a Parameter, keyed by the
// protocol-pattern substring it applies to ("" meaning default/unguarded).
type scriptEntry struct {
	Pattern string
	Handle  eval.ScriptHandle
}

// Parameter is a named, vehicle-observable quantity with zero or more
// request templates and one or more evaluator scripts.
type Parameter struct {
	Name      string
	Requests  []RequestSpec
	ParseMode ParseMode

	scripts []scriptEntry
}

// SelectScript picks the script handle applicable to protocolName,
// following the catalog's original resolution rule: if the parameter's
// first registered script carries no explicit pattern, it is the
// unconditional default; otherwise the first script whose pattern
// contains protocolName as a substring wins, and it is an error if none
// match. A parameter with no scripts at all (a passive, structural-only
// entry) returns eval.NoScript, nil.
func (p *Parameter) SelectScript(protocolName string) (eval.ScriptHandle, error) {
	if len(p.scripts) == 0 {
		return eval.NoScript, nil
	}
	if p.scripts[0].Pattern == "" {
		return p.scripts[0].Handle, nil
	}
	for _, s := range p.scripts {
		if strings.Contains(s.Pattern, protocolName) {
			return s.Handle, nil
		}
	}
	return eval.NoScript, &ScriptUnboundError{Parameter: p.Name, Protocol: protocolName}
}

// ScriptUnboundError reports that a parameter declared explicit
// protocol-pattern scripts, none of which matched the requested protocol.
type ScriptUnboundError struct {
	Parameter, Protocol string
}

func (e *ScriptUnboundError) Error() string {
	return fmt.Sprintf("catalog: no script registered for parameter %q under protocol %q", e.Parameter, e.Protocol)
}

// Group is a named parameter list attached to one Address.
type Group struct {
	AddressName string
	Parameters  []*Parameter
}

// Protocol is a named link-layer configuration: its classification,
// boolean options, addresses, and parameter groups.
type Protocol struct {
	Name    string
	Class   ProtocolClass
	Options map[string]bool // "length_byte", "extended_address"

	addresses map[string]*Address
	groups    map[string]*Group
}

// Option reports a named boolean option, defaulting to false when absent.
func (p *Protocol) Option(name string) bool { return p.Options[name] }

// Spec is a named namespace of protocols, e.g. "SAEJ1979".
type Spec struct {
	Name      string
	protocols map[string]*Protocol
}

// Catalog is the immutable, in-memory index of every Spec. Build once;
// read concurrently forever after (no mutation methods are exposed).
type Catalog struct {
	specs map[string]*Spec
}
