package evalexpr

import "github.com/preet/libobdref-go/eval"

// scriptEnv is the expr environment every compiled script runs against. Its
// exported methods are exactly the accessor surface §6 promises scripts:
// BYTE for SEPARATELY mode, REQ(n).DATA(k).BYTE(b) for COMBINED mode, plus
// NUM/LIT to publish results — expr-lang resolves bare identifiers like
// `BYTE(3)` against the env's methods when compiled with expr.Env(env).
type scriptEnv struct {
	current  []byte
	requests []reqData

	num []eval.NumResult
	lit []eval.LitResult
}

type reqData struct {
	header  []byte
	entries [][]byte
}

// BYTE returns the b-th byte of the current SEPARATELY-mode data as an int,
// the numeric type expr scripts compute with.
func (e *scriptEnv) BYTE(b int) int {
	return int(e.current[b])
}

// REQ returns the accessor for the n-th COMBINED-mode request bucket.
func (e *scriptEnv) REQ(n int) *reqAccessor {
	return &reqAccessor{entries: e.requests[n].entries}
}

// NUM publishes one numerical result for the current script invocation.
func (e *scriptEnv) NUM(property, units string, value, min, max float64) bool {
	e.num = append(e.num, eval.NumResult{Property: property, Units: units, Value: value, Min: min, Max: max})
	return true
}

// LIT publishes one literal result for the current script invocation.
func (e *scriptEnv) LIT(property string, value bool, valueIfTrue, valueIfFalse string) bool {
	e.lit = append(e.lit, eval.LitResult{
		Property:     property,
		Value:        value,
		ValueIfTrue:  valueIfTrue,
		ValueIfFalse: valueIfFalse,
	})
	return true
}

// reqAccessor is REQ(n)'s return value: a handle onto one MessageData's
// cleaned entries.
type reqAccessor struct {
	entries [][]byte
}

// DATA returns the accessor for the k-th cleaned entry in this request.
func (r *reqAccessor) DATA(k int) *dataAccessor {
	return &dataAccessor{bytes: r.entries[k]}
}

// dataAccessor is REQ(n).DATA(k)'s return value.
type dataAccessor struct {
	bytes []byte
}

// BYTE returns the b-th byte of this entry's data as an int.
func (d *dataAccessor) BYTE(b int) int {
	return int(d.bytes[b])
}
