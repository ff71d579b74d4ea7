package clean

import (
	"github.com/preet/libobdref-go/build"
)

const legacyHeaderLen = 3

// cleanLegacy implements the fixed-3-byte-header strategy shared by
// SAE J1850 and ISO 9141-2.
func cleanLegacy(md *build.MessageData, log Logger) error {
	for _, raw := range md.RawFrames {
		if len(raw) < legacyHeaderLen {
			logf(log, "FrameRejected: header mismatch (frame shorter than %d bytes)", legacyHeaderLen)
			continue
		}
		header, data := raw[:legacyHeaderLen], raw[legacyHeaderLen:]

		if !header.MaskedEqual(md.ExpectedHeader, md.ExpectedHeaderMask) {
			logf(log, "FrameRejected: header mismatch")
			continue
		}
		// Open Question #1: the prefix must match in full before any byte
		// is consumed, or the frame is rejected unchanged — never
		// partially stripped.
		if !data.HasPrefix(md.ExpectedDataPrefix) {
			logf(log, "FrameRejected: prefix mismatch")
			continue
		}

		md.CleanHeaders = append(md.CleanHeaders, header)
		md.CleanData = append(md.CleanData, data.DropFront(len(md.ExpectedDataPrefix)))
	}
	return nil
}
