// Package clean splits raw received frames into header/data, verifies the
// header against each MessageData's expected header and mask, reassembles
// ISO 15765 multi-frame sequences, and strips PCI bytes and the declared
// response prefix. Its three strategies (legacy, ISO 14230, ISO 15765) are
// selected by the ParameterFrame's resolved protocol classification.
package clean

import (
	"fmt"

	"github.com/preet/libobdref-go/build"
	"github.com/preet/libobdref-go/catalog"
)

// Logger receives one line per recoverable per-frame rejection. It may be
// nil, in which case rejections are simply dropped without a trace.
type Logger func(line string)

// NoValidFramesError reports that, after cleaning, no entry survived for a
// MessageData — a fatal condition distinct from any single frame's
// rejection.
type NoValidFramesError struct {
	MessageIndex int
}

func (e *NoValidFramesError) Error() string {
	return fmt.Sprintf("clean: no valid frames after cleaning message %d", e.MessageIndex)
}

// Clean processes every MessageData's RawFrames in pf, populating
// CleanHeaders/CleanData. It returns the first NoValidFramesError
// encountered; per-frame rejections are recovered internally and reported
// to log instead.
func Clean(pf *build.ParameterFrame, log Logger) error {
	for i, md := range pf.Messages {
		var err error
		switch {
		case pf.Class.Legacy():
			err = cleanLegacy(md, log)
		case pf.Class == catalog.ClassISO14230:
			err = cleanISO14230(md, log)
		default:
			headerLen := 2
			if pf.Class == catalog.ClassISO15765_29Bit {
				headerLen = 4
			}
			err = cleanISO15765(md, headerLen, log)
		}
		if err != nil {
			return err
		}
		if len(md.CleanData) == 0 {
			return &NoValidFramesError{MessageIndex: i}
		}
	}
	return nil
}

func logf(log Logger, format string, args ...interface{}) {
	if log == nil {
		return
	}
	log(fmt.Sprintf(format, args...))
}
