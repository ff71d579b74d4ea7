// Package obdkit is the public façade over the protocol engine: it wires
// together catalog, build, clean, and parse behind two calls — Build and
// Parse — plus a drainable diagnostic log. obdkit never knows how the
// catalog was read or how scripts are evaluated; those are supplied by the
// caller as a *catalog.Catalog and an eval.Sandbox (see catalogio and
// evalexpr for reference implementations of each).
package obdkit

import (
	"fmt"

	"github.com/preet/libobdref-go/build"
	"github.com/preet/libobdref-go/catalog"
	"github.com/preet/libobdref-go/clean"
	"github.com/preet/libobdref-go/eval"
	"github.com/preet/libobdref-go/parse"
	"github.com/preet/libobdref-go/wire"
)

// Engine owns one catalog and one evaluator sandbox. Per the concurrency
// model, an Engine is not safe for concurrent use from multiple
// goroutines — callers must serialize their own access; multiple Engines
// may coexist independently.
type Engine struct {
	cat     *catalog.Catalog
	sandbox eval.Sandbox
	opts    build.Options

	log []string
}

// New constructs an Engine over an already-built catalog and sandbox. opts
// is optional; a zero Options struct is replaced with build.DefaultOptions().
func New(cat *catalog.Catalog, sandbox eval.Sandbox, opts build.Options) *Engine {
	if opts == (build.Options{}) {
		opts = build.DefaultOptions()
	}
	return &Engine{cat: cat, sandbox: sandbox, opts: opts}
}

// Build resolves (spec, protocol, address, name) and returns the request
// frame ready for a caller to transmit. Errors propagate from catalog.Resolve
// and package build unchanged in type, wrapped with call context.
func (e *Engine) Build(spec, protocol, address, name string) (*build.ParameterFrame, error) {
	pf, err := build.Build(e.cat, e.opts, spec, protocol, address, name)
	if err != nil {
		return nil, fmt.Errorf("obdkit: build %s/%s/%s/%s: %w", spec, protocol, address, name, err)
	}
	return pf, nil
}

// Parse cleans rawFrames against pf's expected headers (see package clean)
// and drives pf's evaluator scripts (see package parse), returning one
// Record per script invocation. rawFrames holds one entry per pf.Messages,
// each a list of raw [header_bytes ‖ data_bytes] frames for that message as
// described in §6's response expectation. FrameRejected conditions are
// recovered into the diagnostic log; a *clean.NoValidFramesError aborts
// and is returned like any other error.
func (e *Engine) Parse(pf *build.ParameterFrame, rawFrames [][]wire.Bytes) ([]parse.Record, error) {
	if len(rawFrames) != len(pf.Messages) {
		return nil, fmt.Errorf("obdkit: parse %s: got raw frames for %d messages, frame has %d",
			pf.Name, len(rawFrames), len(pf.Messages))
	}
	for i, md := range pf.Messages {
		md.RawFrames = rawFrames[i]
	}

	if err := clean.Clean(pf, e.logf); err != nil {
		return nil, fmt.Errorf("obdkit: parse %s: %w", pf.Name, err)
	}

	records, err := parse.Run(e.sandbox, pf)
	if err != nil {
		return nil, fmt.Errorf("obdkit: parse %s: %w", pf.Name, err)
	}
	return records, nil
}

// Drain returns the accumulated diagnostic log and clears it.
func (e *Engine) Drain() []string {
	out := e.log
	e.log = nil
	return out
}

func (e *Engine) logf(line string) {
	e.log = append(e.log, line)
}
