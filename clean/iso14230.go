package clean

import (
	"github.com/preet/libobdref-go/build"
	"github.com/preet/libobdref-go/wire"
)

// cleanISO14230 determines the actual header length and data length from
// each raw frame's format byte, builds a runtime 3-byte expected_header
// anchored on that format byte, and verifies it against the declared
// expected header/mask.
func cleanISO14230(md *build.MessageData, log Logger) error {
	for _, raw := range md.RawFrames {
		if len(raw) < 1 {
			logf(log, "FrameRejected: header mismatch (empty frame)")
			continue
		}
		idx := 0
		format := raw[idx]
		idx++

		hasTargetSource := format&0xC0 != 0
		var target, source byte
		if hasTargetSource {
			if len(raw) < idx+2 {
				logf(log, "FrameRejected: header mismatch (frame too short for target/source)")
				continue
			}
			target, source = raw[idx], raw[idx+1]
			idx += 2
		}

		var dataLen int
		if format&0x3F == 0 {
			if len(raw) < idx+1 {
				logf(log, "FrameRejected: header mismatch (frame too short for length byte)")
				continue
			}
			dataLen = int(raw[idx])
			idx++
		} else {
			dataLen = int(format & 0x3F)
		}

		if len(raw) < idx+dataLen {
			logf(log, "FrameRejected: header mismatch (frame too short for declared data length)")
			continue
		}
		data := raw[idx : idx+dataLen] // trailing junk beyond dataLen is ignored

		runtimeHeader := wire.New(format, target, source)
		if !runtimeHeader.MaskedEqual(md.ExpectedHeader, md.ExpectedHeaderMask) {
			logf(log, "FrameRejected: header mismatch")
			continue
		}
		if !data.HasPrefix(md.ExpectedDataPrefix) {
			logf(log, "FrameRejected: prefix mismatch")
			continue
		}

		md.CleanHeaders = append(md.CleanHeaders, runtimeHeader)
		md.CleanData = append(md.CleanData, data.DropFront(len(md.ExpectedDataPrefix)))
	}
	return nil
}
