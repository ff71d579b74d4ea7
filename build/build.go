// Package build turns a resolved catalog parameter into the request bytes
// a caller sends to a vehicle: header construction per protocol, and data
// construction including ISO 15765 frame splitting/PCI bytes and ISO 14230
// length encoding. Its output, a *ParameterFrame, is later populated by
// package clean (from raw response frames) and consumed by package parse.
package build

import (
	"fmt"

	"github.com/preet/libobdref-go/catalog"
	"github.com/preet/libobdref-go/eval"
	"github.com/preet/libobdref-go/wire"
)

// Options carries the two ISO 15765 feature toggles from the catalog
// builder. Both default to true.
type Options struct {
	// SplitReqIntoFrames splits a request payload over 7 bytes into a
	// first 6-byte frame followed by 7-byte consecutive frames.
	SplitReqIntoFrames bool
	// AddPciByte prepends ISO 15765 PCI bytes to each request frame.
	AddPciByte bool
}

// DefaultOptions returns both toggles enabled, the common case.
func DefaultOptions() Options {
	return Options{SplitReqIntoFrames: true, AddPciByte: true}
}

// MessageData is one request/response unit: the header and (possibly
// split) data frames to send, the expected response header/mask/prefix to
// match incoming frames against, and — once package clean has run — the
// cleaned header/data entries recovered from raw response frames.
type MessageData struct {
	RequestHeader  wire.Bytes
	RequestData    []wire.Bytes
	RequestDelayMS int

	ExpectedHeader     wire.Bytes
	ExpectedHeaderMask wire.Bytes
	ExpectedDataPrefix wire.Bytes
	ExpectedDataCount  int // negative means unspecified

	// RawFrames is populated by the caller before invoking package clean:
	// each entry is [header_bytes ‖ data_bytes] as received from the
	// vehicle, with checksums/DLC/trailer already stripped.
	RawFrames []wire.Bytes

	// CleanHeaders and CleanData are populated by package clean; they are
	// always the same length, one entry per accepted logical message,
	// with multi-frame ISO 15765 messages merged into one CleanData
	// entry.
	CleanHeaders []wire.Bytes
	CleanData    []wire.Bytes
}

// ParameterFrame is the mutable working object produced by Build, cleaned
// by package clean, and parsed by package parse.
type ParameterFrame struct {
	Spec, Protocol, Address, Name string

	Class     catalog.ProtocolClass
	Options   map[string]bool // the protocol's declared options, e.g. length_byte
	ParseMode catalog.ParseMode
	Script    eval.ScriptHandle

	Messages []*MessageData
}

// Build resolves (spec, protocol, address, name) against cat and produces
// a ParameterFrame with a populated header and, for non-passive
// parameters, data frames ready to send.
func Build(cat *catalog.Catalog, opts Options, spec, protocol, address, name string) (*ParameterFrame, error) {
	resolved, err := cat.Resolve(spec, protocol, address, name)
	if err != nil {
		return nil, err
	}

	script, err := resolved.Parameter.SelectScript(protocol)
	if err != nil {
		return nil, err
	}

	md0, err := buildHeader(resolved)
	if err != nil {
		return nil, err
	}

	pf := &ParameterFrame{
		Spec:      spec,
		Protocol:  protocol,
		Address:   address,
		Name:      name,
		Class:     resolved.Protocol.Class,
		Options:   resolved.Protocol.Options,
		ParseMode: resolved.Parameter.ParseMode,
		Script:    script,
		Messages:  []*MessageData{md0},
	}

	if err := buildData(pf, resolved.Parameter.Requests); err != nil {
		return nil, err
	}

	if pf.Class == catalog.ClassISO15765_11Bit || pf.Class == catalog.ClassISO15765_29Bit {
		for _, md := range pf.Messages {
			if err := applyISO15765Formatting(md, opts); err != nil {
				return nil, err
			}
		}
	}

	if pf.Class == catalog.ClassISO14230 {
		for _, md := range pf.Messages {
			if err := applyISO14230Length(md, pf.Options["length_byte"]); err != nil {
				return nil, err
			}
		}
	}

	return pf, nil
}

func buildHeader(r *catalog.Resolved) (*MessageData, error) {
	switch r.Protocol.Class {
	case catalog.ClassJ1850, catalog.ClassISO9141:
		return buildLegacyHeader(r)
	case catalog.ClassISO14230:
		return buildISO14230Header(r)
	case catalog.ClassISO15765_11Bit:
		return buildISO15765_11Header(r)
	case catalog.ClassISO15765_29Bit:
		return buildISO15765_29Header(r)
	default:
		return nil, fmt.Errorf("build: unreachable protocol class %v", r.Protocol.Class)
	}
}

func parseByteAttr(s string) (byte, error) {
	v, err := wire.ParseUint(s)
	if err != nil {
		return 0, &MalformedHeaderSpecError{Reason: err.Error()}
	}
	if v > 0xFF {
		return 0, &MalformedHeaderSpecError{Reason: fmt.Sprintf("value %d does not fit in one byte", v)}
	}
	return byte(v), nil
}

func buildLegacyHeader(r *catalog.Resolved) (*MessageData, error) {
	req := r.Address.Request
	prioS, ok1 := req.Get("prio")
	targetS, ok2 := req.Get("target")
	sourceS, ok3 := req.Get("source")
	if !ok1 || !ok2 || !ok3 {
		return nil, &MalformedHeaderSpecError{Reason: "legacy header requires request prio, target, and source"}
	}
	prio, err := parseByteAttr(prioS)
	if err != nil {
		return nil, err
	}
	target, err := parseByteAttr(targetS)
	if err != nil {
		return nil, err
	}
	source, err := parseByteAttr(sourceS)
	if err != nil {
		return nil, err
	}

	header := wire.New(prio, target, source)
	expHeader := wire.New(0, 0, 0)
	expMask := wire.New(0, 0, 0)

	resp := r.Address.Response
	if v, ok := resp.Get("prio"); ok {
		b, err := parseByteAttr(v)
		if err != nil {
			return nil, err
		}
		expHeader[0], expMask[0] = b, 0xFF
	}
	if v, ok := resp.Get("target"); ok {
		b, err := parseByteAttr(v)
		if err != nil {
			return nil, err
		}
		expHeader[1], expMask[1] = b, 0xFF
	}
	if v, ok := resp.Get("source"); ok {
		b, err := parseByteAttr(v)
		if err != nil {
			return nil, err
		}
		expHeader[2], expMask[2] = b, 0xFF
	}

	return &MessageData{
		RequestHeader:      header,
		ExpectedHeader:     expHeader,
		ExpectedHeaderMask: expMask,
		ExpectedDataCount:  -1,
	}, nil
}

func buildISO14230Header(r *catalog.Resolved) (*MessageData, error) {
	req := r.Address.Request
	formatS, ok := req.Get("format")
	if !ok {
		return nil, &MalformedHeaderSpecError{Reason: "ISO 14230 header requires request format"}
	}
	format, err := parseByteAttr(formatS)
	if err != nil {
		return nil, err
	}

	header := wire.New(format)
	if format&0xC0 != 0 {
		targetS, ok1 := req.Get("target")
		sourceS, ok2 := req.Get("source")
		if !ok1 || !ok2 {
			return nil, &MalformedHeaderSpecError{Reason: "ISO 14230 header requires target and source when format's top bits are set"}
		}
		target, err := parseByteAttr(targetS)
		if err != nil {
			return nil, err
		}
		source, err := parseByteAttr(sourceS)
		if err != nil {
			return nil, err
		}
		header = header.Append(target, source)
	}

	expHeader := wire.New(0, 0, 0)
	expMask := wire.New(0, 0, 0)

	resp := r.Address.Response
	if v, ok := resp.Get("format"); ok {
		b, err := parseByteAttr(v)
		if err != nil {
			return nil, err
		}
		expHeader[0], expMask[0] = b, 0xC0
	}
	if v, ok := resp.Get("target"); ok {
		b, err := parseByteAttr(v)
		if err != nil {
			return nil, err
		}
		expHeader[1], expMask[1] = b, 0xFF
	}
	if v, ok := resp.Get("source"); ok {
		b, err := parseByteAttr(v)
		if err != nil {
			return nil, err
		}
		expHeader[2], expMask[2] = b, 0xFF
	}

	return &MessageData{
		RequestHeader:      header,
		ExpectedHeader:     expHeader,
		ExpectedHeaderMask: expMask,
		ExpectedDataCount:  -1,
	}, nil
}

func buildISO15765_11Header(r *catalog.Resolved) (*MessageData, error) {
	req := r.Address.Request
	idS, ok := req.Get("identifier")
	if !ok {
		return nil, &MalformedHeaderSpecError{Reason: "ISO 15765 11-bit header requires request identifier"}
	}
	id, err := wire.ParseUint(idS)
	if err != nil {
		return nil, &MalformedHeaderSpecError{Reason: err.Error()}
	}
	header := encode11Bit(id)

	expHeader := wire.New(0, 0)
	expMask := wire.New(0, 0)
	if respS, ok := r.Address.Response.Get("identifier"); ok {
		rid, err := wire.ParseUint(respS)
		if err != nil {
			return nil, &MalformedHeaderSpecError{Reason: err.Error()}
		}
		expHeader = encode11Bit(rid)
		expMask = wire.New(0xFF, 0xFF)
	}

	return &MessageData{
		RequestHeader:      header,
		ExpectedHeader:     expHeader,
		ExpectedHeaderMask: expMask,
		ExpectedDataCount:  -1,
	}, nil
}

func encode11Bit(v uint64) wire.Bytes {
	return wire.New(byte((v>>8)&0x0F), byte(v&0xFF))
}

func buildISO15765_29Header(r *catalog.Resolved) (*MessageData, error) {
	req := r.Address.Request
	keys := [4]string{"prio", "format", "target", "source"}
	var vals [4]byte
	for i, k := range keys {
		s, ok := req.Get(k)
		if !ok {
			return nil, &MalformedHeaderSpecError{Reason: fmt.Sprintf("ISO 15765 29-bit header requires request %s", k)}
		}
		b, err := parseByteAttr(s)
		if err != nil {
			return nil, err
		}
		vals[i] = b
	}
	header := wire.New(vals[0], vals[1], vals[2], vals[3])

	expHeader := wire.New(0, 0, 0, 0)
	expMask := wire.New(0, 0, 0, 0)
	// REDESIGN FLAG #2: response attributes come from the response
	// descriptor, not the request.
	resp := r.Address.Response
	for i, k := range keys {
		s, ok := resp.Get(k)
		if !ok {
			continue
		}
		b, err := parseByteAttr(s)
		if err != nil {
			return nil, err
		}
		expHeader[i], expMask[i] = b, 0xFF
	}

	return &MessageData{
		RequestHeader:      header,
		ExpectedHeader:     expHeader,
		ExpectedHeaderMask: expMask,
		ExpectedDataCount:  -1,
	}, nil
}
