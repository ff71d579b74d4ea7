package build

import (
	"strings"

	"github.com/preet/libobdref-go/catalog"
	"github.com/preet/libobdref-go/wire"
)

// buildData populates request data (and the expected-response prefix/
// count) for each declared request. A parameter with no requests is
// passive/parse-only and leaves pf.Messages as the single header-only
// entry buildHeader already appended. A single request reuses that entry;
// a multi-request parameter copies its header/mask into one new
// MessageData per additional request.
func buildData(pf *ParameterFrame, requests []catalog.RequestSpec) error {
	if len(requests) == 0 {
		return nil
	}

	base := pf.Messages[0]
	for i, rs := range requests {
		md := base
		if i > 0 {
			md = &MessageData{
				RequestHeader:      base.RequestHeader,
				ExpectedHeader:     base.ExpectedHeader,
				ExpectedHeaderMask: base.ExpectedHeaderMask,
			}
			pf.Messages = append(pf.Messages, md)
		}

		payload, err := parseTokens(rs.Tokens)
		if err != nil {
			return err
		}
		md.RequestData = []wire.Bytes{payload}

		if rs.HasDelay {
			md.RequestDelayMS = rs.DelayMS
		}

		if rs.ResponsePrefix != "" {
			prefix, err := wire.ParseHexString(strings.Join(wire.Fields(rs.ResponsePrefix), ""))
			if err != nil {
				return &MalformedDataSpecError{Reason: err.Error()}
			}
			md.ExpectedDataPrefix = prefix
		}

		if rs.HasBytes {
			md.ExpectedDataCount = rs.ResponseBytes
		} else {
			md.ExpectedDataCount = -1
		}
	}

	return nil
}

func parseTokens(tokens string) (wire.Bytes, error) {
	fields := wire.Fields(tokens)
	if len(fields) == 0 {
		return nil, &MalformedDataSpecError{Reason: "empty request token list"}
	}
	out := make(wire.Bytes, 0, len(fields))
	for _, tok := range fields {
		v, err := wire.ParseUint(tok)
		if err != nil {
			return nil, &MalformedDataSpecError{Reason: err.Error()}
		}
		if v > 0xFF {
			return nil, &MalformedDataSpecError{Reason: "request token does not fit in one byte"}
		}
		out = append(out, byte(v))
	}
	return out, nil
}

// applyISO15765Formatting splits a MessageData's single request frame when
// it exceeds 7 bytes (and splitting is enabled) and prepends PCI bytes
// (when enabled).
func applyISO15765Formatting(md *MessageData, opts Options) error {
	if len(md.RequestData) != 1 {
		return nil // passive parameter: nothing to frame
	}
	payload := md.RequestData[0]

	frames := []wire.Bytes{payload}
	if opts.SplitReqIntoFrames && len(payload) > 7 {
		frames = splitFrames(payload)
	}

	if opts.AddPciByte {
		if len(frames) == 1 {
			frames[0] = wire.New(byte(len(frames[0]))).Concat(frames[0])
		} else {
			total := len(payload)
			hi := byte((total>>8)&0x0F) | 0x10
			lo := byte(total & 0xFF)
			frames[0] = wire.New(hi, lo).Concat(frames[0])
			for i := 1; i < len(frames); i++ {
				pci := byte(0x20 + (i % 16))
				frames[i] = wire.New(pci).Concat(frames[i])
			}
		}
	}

	md.RequestData = frames
	return nil
}

// splitFrames cascades a payload over 7 bytes into a 6-byte first frame
// followed by 7-byte consecutive frames.
func splitFrames(payload wire.Bytes) []wire.Bytes {
	var frames []wire.Bytes
	n := 6
	if n > len(payload) {
		n = len(payload)
	}
	frames = append(frames, payload[:n])
	rest := payload[n:]
	for len(rest) > 0 {
		k := 7
		if k > len(rest) {
			k = len(rest)
		}
		frames = append(frames, rest[:k])
		rest = rest[k:]
	}
	return frames
}

// applyISO14230Length encodes the total pre-header payload length either
// as a trailing length byte on the header (lengthByte option true) or into
// the low 6 bits of the format byte (the header's first byte) otherwise.
func applyISO14230Length(md *MessageData, lengthByte bool) error {
	if len(md.RequestData) == 0 {
		return nil // passive parameter: no payload to measure
	}
	total := 0
	for _, frame := range md.RequestData {
		total += len(frame)
	}
	if total > 255 {
		return &LengthOverflowError{Length: total, Limit: 255}
	}

	if lengthByte {
		md.RequestHeader = md.RequestHeader.Append(byte(total))
		return nil
	}

	if total > 63 {
		return &LengthOverflowError{Length: total, Limit: 63}
	}
	header := wire.New(md.RequestHeader...)
	header[0] |= byte(total & 0x3F)
	md.RequestHeader = header
	return nil
}
