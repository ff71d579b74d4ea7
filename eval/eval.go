// Package eval specifies the contract between the parse driver and the
// expression-evaluator sandbox that actually turns raw bytes into
// engineering values. The package never implements a scripting language
// itself — per-parameter math is an external collaborator's job, reached
// only through the Sandbox interface below. See evalexpr for one concrete
// implementation.
package eval

import "errors"

// ScriptHandle identifies a script previously registered with a Sandbox.
// It is opaque outside this package's implementations.
type ScriptHandle int

// NoScript is the sentinel handle meaning "no script loaded". Running it
// is a hard error, never a silent no-op.
const NoScript ScriptHandle = -1

// ErrScriptUnbound is returned by RunScript when called with NoScript.
var ErrScriptUnbound = errors.New("eval: no script bound to this handle")

// NumResult is one numerical result published by a script, e.g. an
// engineering quantity with bounds and units.
type NumResult struct {
	Property string
	Units    string
	Min, Max float64
	Value    float64
}

// LitResult is one literal (boolean-backed enumerated) result published by
// a script.
type LitResult struct {
	Property                        string
	Value                           bool
	ValueIfTrue, ValueIfFalse string
}

// Sandbox is the five-operation runtime API a parse driver depends on,
// plus script registration at catalog load time. Any implementation —
// a WASM host, an embedded interpreter, a rule DSL — may satisfy it; the
// driver in package parse never assumes anything about the implementation
// beyond this interface.
type Sandbox interface {
	// LoadScript compiles/registers a script body and returns a stable
	// handle. Called once per script at catalog build time; scripts are
	// never unloaded for the lifetime of the Sandbox.
	LoadScript(source string) (ScriptHandle, error)

	// ClearAllData resets both result lists to empty.
	ClearAllData()

	// AddListDataBytes installs the "current" data for SEPARATELY-mode
	// parsing: a single cleaned entry's data bytes.
	AddListDataBytes(data []byte)

	// AddMsgData appends one cleaned header/data entry belonging to
	// ParameterFrame.Messages[msgIndex] for COMBINED-mode parsing.
	// msgIndex is the authoritative REQ(n) bucket: implementations must
	// group entries by msgIndex, never by comparing header bytes, since
	// every MessageData in a frame normally targets the same address and
	// so shares an identical cleaned header. Called once per cleaned
	// entry, in MessageData order; a MessageData with multiple cleaned
	// entries produces multiple calls with the same msgIndex.
	AddMsgData(msgIndex int, header, data []byte)

	// RunScript invokes the script as a zero-argument function. Returns
	// ErrScriptUnbound for NoScript, or a wrapped error on evaluator
	// failure.
	RunScript(h ScriptHandle) error

	// NumData returns the numerical results published by the most recent
	// RunScript invocation.
	NumData() []NumResult

	// LitData returns the literal results published by the most recent
	// RunScript invocation.
	LitData() []LitResult
}
