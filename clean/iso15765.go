package clean

import (
	"github.com/preet/libobdref-go/build"
	"github.com/preet/libobdref-go/wire"
)

type iso15765Entry struct {
	header   wire.Bytes
	data     wire.Bytes
	merged   bool // true once its bytes have been folded into an earlier first frame
	reframed bool // true once data has been replaced by its reassembled payload
}

// cleanISO15765 splits each raw frame at headerLen (2 for 11-bit, 4 for
// 29-bit identifiers), verifies the header mask, then reassembles
// multi-frame sequences: a first frame (PCI upper nibble 0x1) carries a
// 12-bit total length in its first two data bytes; consecutive frames
// (PCI upper nibble 0x2, numbered 0x21.. wrapping 0x2F -> 0x20) are folded
// in with a single forward walk per first frame — no rescans from the
// start, so unrelated frames may freely interleave between a first frame
// and its consecutive frames.
func cleanISO15765(md *build.MessageData, headerLen int, log Logger) error {
	entries := make([]*iso15765Entry, 0, len(md.RawFrames))
	for _, raw := range md.RawFrames {
		if len(raw) < headerLen {
			logf(log, "FrameRejected: header mismatch (frame shorter than header)")
			continue
		}
		header, data := raw[:headerLen], raw[headerLen:]
		if !header.MaskedEqual(md.ExpectedHeader, md.ExpectedHeaderMask) {
			logf(log, "FrameRejected: header mismatch")
			continue
		}
		entries = append(entries, &iso15765Entry{header: header, data: data})
	}

	for i, e := range entries {
		if e.merged || len(e.data) == 0 || e.data[0]>>4 != 0x1 {
			continue
		}
		if len(e.data) < 2 {
			logf(log, "FrameRejected: header mismatch (short first-frame PCI)")
			e.data = wire.Bytes{}
			continue
		}
		total := (int(e.data[0]&0x0F) << 8) | int(e.data[1])
		acc := make(wire.Bytes, len(e.data)-2)
		copy(acc, e.data[2:])

		expectPCI := byte(0x21)
		for j := i + 1; j < len(entries) && len(acc) < total; j++ {
			cf := entries[j]
			if cf.merged || !cf.header.Equal(e.header) || len(cf.data) == 0 {
				continue
			}
			if cf.data[0] != expectPCI {
				continue
			}
			acc = append(acc, cf.data[1:]...)
			cf.merged = true
			expectPCI++
			if expectPCI == 0x30 {
				expectPCI = 0x20
			}
		}
		if len(acc) > total {
			acc = acc[:total]
		}
		e.data = acc
		e.reframed = true
	}

	for _, e := range entries {
		if e.merged {
			continue
		}
		var stripped wire.Bytes
		if len(e.data) == 0 {
			logf(log, "FrameRejected: header mismatch (empty data)")
			continue
		}
		switch {
		case e.reframed:
			stripped = e.data // already PCI-stripped during reassembly above
		case e.data[0]>>4 == 0x0:
			stripped = e.data.DropFront(1)
		default:
			logf(log, "FrameRejected: header mismatch (orphan consecutive frame)")
			continue
		}
		if !stripped.HasPrefix(md.ExpectedDataPrefix) {
			logf(log, "FrameRejected: prefix mismatch")
			continue
		}
		md.CleanHeaders = append(md.CleanHeaders, e.header)
		md.CleanData = append(md.CleanData, stripped.DropFront(len(md.ExpectedDataPrefix)))
	}

	return nil
}
