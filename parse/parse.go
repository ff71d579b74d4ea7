// Package parse drives a parameter's evaluator scripts against the cleaned
// header/data entries produced by package clean. It implements the two
// parse modes a catalog parameter may declare — SEPARATELY (one script
// invocation per cleaned entry) and COMBINED (one invocation per
// ParameterFrame) — against the eval.Sandbox contract, never assuming
// anything about how the sandbox itself evaluates a script.
package parse

import (
	"fmt"

	"github.com/preet/libobdref-go/build"
	"github.com/preet/libobdref-go/catalog"
	"github.com/preet/libobdref-go/eval"
)

// SourceAddressProperty names the synthetic literal datum parse appends to
// every SEPARATELY-mode record.
const SourceAddressProperty = "Source Address"

// Record is one evaluator invocation's harvested output.
type Record struct {
	NumData []eval.NumResult
	LitData []eval.LitResult
}

// EvaluatorFailure reports that the sandbox returned an error while running
// a script.
type EvaluatorFailure struct {
	Parameter string
	Err       error
}

func (e *EvaluatorFailure) Error() string {
	return fmt.Sprintf("parse: parameter %q: evaluator failure: %v", e.Parameter, e.Err)
}

func (e *EvaluatorFailure) Unwrap() error { return e.Err }

// Run invokes pf's script against its cleaned data, following pf.ParseMode,
// and returns one Record per invocation: one per cleaned entry for
// SEPARATELY, exactly one for COMBINED. A parameter with no script
// (eval.NoScript) produces no records and no error — a passive,
// structural-only parameter.
func Run(sb eval.Sandbox, pf *build.ParameterFrame) ([]Record, error) {
	if pf.Script == eval.NoScript {
		return nil, nil
	}
	if pf.ParseMode == catalog.ParseCombined {
		rec, err := runCombined(sb, pf)
		if err != nil {
			return nil, err
		}
		return []Record{rec}, nil
	}
	return runSeparately(sb, pf)
}

func runSeparately(sb eval.Sandbox, pf *build.ParameterFrame) ([]Record, error) {
	var records []Record
	for _, md := range pf.Messages {
		for i, data := range md.CleanData {
			header := md.CleanHeaders[i]

			sb.ClearAllData()
			sb.AddListDataBytes([]byte(data))
			if err := sb.RunScript(pf.Script); err != nil {
				return nil, &EvaluatorFailure{Parameter: pf.Name, Err: err}
			}

			rec := Record{
				NumData: sb.NumData(),
				LitData: append(sb.LitData(), eval.LitResult{
					Property:    SourceAddressProperty,
					Value:       true,
					ValueIfTrue: header.String(),
				}),
			}
			records = append(records, rec)
		}
	}
	return records, nil
}

func runCombined(sb eval.Sandbox, pf *build.ParameterFrame) (Record, error) {
	sb.ClearAllData()
	for msgIndex, md := range pf.Messages {
		for i, data := range md.CleanData {
			header := md.CleanHeaders[i]
			sb.AddMsgData(msgIndex, []byte(header), []byte(data))
		}
	}
	if err := sb.RunScript(pf.Script); err != nil {
		return Record{}, &EvaluatorFailure{Parameter: pf.Name, Err: err}
	}
	return Record{NumData: sb.NumData(), LitData: sb.LitData()}, nil
}
