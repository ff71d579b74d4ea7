package catalog

import (
	"fmt"
	"strconv"
)

// MalformedDataSpecError reports a catalog parameter whose request
// attributes could not be interpreted as either the single- or the
// multi-request form.
type MalformedDataSpecError struct {
	Reason string
}

func (e *MalformedDataSpecError) Error() string {
	return fmt.Sprintf("catalog: malformed data spec: %s", e.Reason)
}

// buildRequestSpecs interprets a parameter's attribute bag into an ordered
// list of RequestSpecs, recognizing the single-request form ("request",
// "request.delay", "response.prefix", "response.bytes") and the
// multi-request form ("request0", "request0.delay", "response0.prefix",
// "response0.bytes", "request1", ...). Mixing the two is an error.
// Absence of any request* attribute means a passive, parse-only parameter
// and yields an empty, non-error result.
func buildRequestSpecs(attrs map[string]string) ([]RequestSpec, error) {
	_, hasSingle := attrs["request"]

	hasMulti := false
	for n := 0; ; n++ {
		if _, ok := attrs[fmt.Sprintf("request%d", n)]; !ok {
			break
		}
		hasMulti = true
		break // presence of request0 alone is enough to decide the form
	}

	switch {
	case hasSingle && hasMulti:
		return nil, &MalformedDataSpecError{Reason: "both single-request and multi-request forms present"}
	case hasSingle:
		spec, err := requestSpecFromAttrs(attrs, "request", "response.prefix", "response.bytes")
		if err != nil {
			return nil, err
		}
		return []RequestSpec{spec}, nil
	case hasMulti:
		var out []RequestSpec
		for n := 0; ; n++ {
			reqKey := fmt.Sprintf("request%d", n)
			if _, ok := attrs[reqKey]; !ok {
				break
			}
			spec, err := requestSpecFromAttrs(attrs, reqKey,
				fmt.Sprintf("response%d.prefix", n), fmt.Sprintf("response%d.bytes", n))
			if err != nil {
				return nil, err
			}
			out = append(out, spec)
		}
		return out, nil
	default:
		return nil, nil
	}
}

func requestSpecFromAttrs(attrs map[string]string, reqKey, prefixKey, bytesKey string) (RequestSpec, error) {
	spec := RequestSpec{Tokens: attrs[reqKey]}

	delayKey := reqKey + ".delay"
	if v, ok := attrs[delayKey]; ok {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return RequestSpec{}, &MalformedDataSpecError{Reason: fmt.Sprintf("%s: %v", delayKey, err)}
		}
		spec.HasDelay = true
		spec.DelayMS = ms
	}

	if v, ok := attrs[prefixKey]; ok {
		spec.ResponsePrefix = v
	}

	if v, ok := attrs[bytesKey]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return RequestSpec{}, &MalformedDataSpecError{Reason: fmt.Sprintf("%s: %v", bytesKey, err)}
		}
		spec.HasBytes = true
		spec.ResponseBytes = n
	}

	if spec.Tokens == "" {
		return RequestSpec{}, &MalformedDataSpecError{Reason: fmt.Sprintf("%s: empty request token list", reqKey)}
	}

	return spec, nil
}
