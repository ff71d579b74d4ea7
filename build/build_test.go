package build

import (
	"testing"

	"github.com/preet/libobdref-go/catalog"
	"github.com/preet/libobdref-go/eval"
	"github.com/preet/libobdref-go/wire"
)

type fakeSandbox struct{ next eval.ScriptHandle }

func (f *fakeSandbox) LoadScript(source string) (eval.ScriptHandle, error) {
	f.next++
	return f.next, nil
}
func (f *fakeSandbox) ClearAllData()                       {}
func (f *fakeSandbox) AddListDataBytes(data []byte)        {}
func (f *fakeSandbox) AddMsgData(msgIndex int, header, data []byte) {}
func (f *fakeSandbox) RunScript(h eval.ScriptHandle) error  { return nil }
func (f *fakeSandbox) NumData() []eval.NumResult           { return nil }
func (f *fakeSandbox) LitData() []eval.LitResult           { return nil }

func buildCatalog(t *testing.T, specs []catalog.SourceSpec) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Build(specs, &fakeSandbox{})
	if err != nil {
		t.Fatal(err)
	}
	return cat
}

// S1 setup: legacy ISO 9141-2 single request/response.
func TestLegacySingleRequest(t *testing.T) {
	specs := []catalog.SourceSpec{{
		Name: "TEST",
		Protocols: []catalog.SourceProtocol{{
			Name: "ISO 9141-2",
			Addresses: []catalog.SourceAddress{{
				Name:     "Default",
				Request:  catalog.SourceDescriptor{"prio": "0x68", "target": "0x6A", "source": "0xF1"},
				Response: catalog.SourceDescriptor{"prio": "0x48", "target": "0x6B", "source": "0x10"},
			}},
			Groups: []catalog.SourceGroup{{
				AddressName: "Default",
				Parameters: []catalog.SourceParameter{{
					Name:    "Engine RPM",
					Attrs:   map[string]string{"request": "0x01 0x0C", "response.prefix": "41 0C"},
					Scripts: []catalog.SourceScript{{Body: "x"}},
				}},
			}},
		}},
	}}
	cat := buildCatalog(t, specs)

	pf, err := Build(cat, DefaultOptions(), "TEST", "ISO 9141-2", "Default", "Engine RPM")
	if err != nil {
		t.Fatal(err)
	}
	if len(pf.Messages) != 1 {
		t.Fatalf("got %d messages, want 1", len(pf.Messages))
	}
	md := pf.Messages[0]
	if !md.RequestHeader.Equal(wire.New(0x68, 0x6A, 0xF1)) {
		t.Errorf("request header = %v", md.RequestHeader)
	}
	if !md.ExpectedHeader.Equal(wire.New(0x48, 0x6B, 0x10)) || !md.ExpectedHeaderMask.Equal(wire.New(0xFF, 0xFF, 0xFF)) {
		t.Errorf("expected header/mask = %v/%v", md.ExpectedHeader, md.ExpectedHeaderMask)
	}
	if len(md.RequestData) != 1 || !md.RequestData[0].Equal(wire.New(0x01, 0x0C)) {
		t.Errorf("request data = %v", md.RequestData)
	}
	if !md.ExpectedDataPrefix.Equal(wire.New(0x41, 0x0C)) {
		t.Errorf("expected data prefix = %v", md.ExpectedDataPrefix)
	}
}

func legacyRequestOnlyCatalog(t *testing.T, attrs map[string]string) *catalog.Catalog {
	t.Helper()
	return buildCatalog(t, []catalog.SourceSpec{{
		Name: "TEST",
		Protocols: []catalog.SourceProtocol{{
			Name: "ISO 9141-2",
			Addresses: []catalog.SourceAddress{{
				Name:    "Default",
				Request: catalog.SourceDescriptor{"prio": "0x68", "target": "0x6A", "source": "0xF1"},
			}},
			Groups: []catalog.SourceGroup{{
				AddressName: "Default",
				Parameters: []catalog.SourceParameter{{
					Name:  "Param",
					Attrs: attrs,
				}},
			}},
		}},
	}})
}

// S6: multi-request parameter with differing prefixes shares a header.
func TestMultiRequestSharesHeader(t *testing.T) {
	cat := legacyRequestOnlyCatalog(t, map[string]string{
		"request0":         "0x01 0x0C",
		"response0.prefix": "41 0C",
		"request1":         "0x01 0x0D",
		"response1.prefix": "41 0D",
	})
	pf, err := Build(cat, DefaultOptions(), "TEST", "ISO 9141-2", "Default", "Param")
	if err != nil {
		t.Fatal(err)
	}
	if len(pf.Messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(pf.Messages))
	}
	if !pf.Messages[0].RequestHeader.Equal(pf.Messages[1].RequestHeader) {
		t.Errorf("headers differ: %v vs %v", pf.Messages[0].RequestHeader, pf.Messages[1].RequestHeader)
	}
	if !pf.Messages[0].ExpectedDataPrefix.Equal(wire.New(0x41, 0x0C)) {
		t.Errorf("message 0 prefix = %v", pf.Messages[0].ExpectedDataPrefix)
	}
	if !pf.Messages[1].ExpectedDataPrefix.Equal(wire.New(0x41, 0x0D)) {
		t.Errorf("message 1 prefix = %v", pf.Messages[1].ExpectedDataPrefix)
	}
}

func TestPassiveParameterHasNoData(t *testing.T) {
	cat := legacyRequestOnlyCatalog(t, map[string]string{})
	pf, err := Build(cat, DefaultOptions(), "TEST", "ISO 9141-2", "Default", "Param")
	if err != nil {
		t.Fatal(err)
	}
	if len(pf.Messages) != 1 || pf.Messages[0].RequestData != nil {
		t.Errorf("expected single header-only message, got %+v", pf.Messages)
	}
}

func iso15765Catalog(t *testing.T, reqID, respID, attrs map[string]string) *catalog.Catalog {
	t.Helper()
	p := catalog.SourceParameter{Name: "Param", Attrs: attrs}
	return buildCatalog(t, []catalog.SourceSpec{{
		Name: "TEST",
		Protocols: []catalog.SourceProtocol{{
			Name: "ISO 15765-4 (CAN 11/500)",
			Addresses: []catalog.SourceAddress{{
				Name:     "Default",
				Request:  catalog.SourceDescriptor(reqID),
				Response: catalog.SourceDescriptor(respID),
			}},
			Groups: []catalog.SourceGroup{{AddressName: "Default", Parameters: []catalog.SourceParameter{p}}},
		}},
	}})
}

// S5: split request with payload length 15.
func TestISO15765Split(t *testing.T) {
	tokens := make([]byte, 15)
	var toks string
	for i := range tokens {
		if i > 0 {
			toks += " "
		}
		toks += "00"
	}
	cat := iso15765Catalog(t,
		map[string]string{"identifier": "0x7E0"},
		map[string]string{"identifier": "0x7E8"},
		map[string]string{"request": toks})

	pf, err := Build(cat, DefaultOptions(), "TEST", "ISO 15765-4 (CAN 11/500)", "Default", "Param")
	if err != nil {
		t.Fatal(err)
	}
	md := pf.Messages[0]
	if len(md.RequestData) != 3 {
		t.Fatalf("got %d frames, want 3", len(md.RequestData))
	}
	if md.RequestData[0][0] != 0x10 || md.RequestData[0][1] != 0x0F {
		t.Errorf("first frame PCI = %02X %02X, want 10 0F", md.RequestData[0][0], md.RequestData[0][1])
	}
	if len(md.RequestData[0]) != 8 { // 2 PCI + 6 payload
		t.Errorf("first frame length = %d, want 8", len(md.RequestData[0]))
	}
	if md.RequestData[1][0] != 0x21 {
		t.Errorf("second frame PCI = %02X, want 21", md.RequestData[1][0])
	}
	if md.RequestData[2][0] != 0x22 {
		t.Errorf("third frame PCI = %02X, want 22", md.RequestData[2][0])
	}
}

func TestISO15765SingleFramePCI(t *testing.T) {
	cat := iso15765Catalog(t,
		map[string]string{"identifier": "0x7E0"},
		map[string]string{"identifier": "0x7E8"},
		map[string]string{"request": "0x01 0x0C"})
	pf, err := Build(cat, DefaultOptions(), "TEST", "ISO 15765-4 (CAN 11/500)", "Default", "Param")
	if err != nil {
		t.Fatal(err)
	}
	md := pf.Messages[0]
	if len(md.RequestData) != 1 || !md.RequestData[0].Equal(wire.New(0x02, 0x01, 0x0C)) {
		t.Errorf("got %v, want [02 01 0C]", md.RequestData)
	}
}

func TestISO15765_29Bit_ResponseFromResponseDescriptor(t *testing.T) {
	cat := buildCatalog(t, []catalog.SourceSpec{{
		Name: "TEST",
		Protocols: []catalog.SourceProtocol{{
			Name: "ISO 15765-4 (CAN 29/500) Extended Id",
			Addresses: []catalog.SourceAddress{{
				Name: "Default",
				Request: catalog.SourceDescriptor{
					"prio": "0x18", "format": "0xDB", "target": "0x33", "source": "0xF1",
				},
				Response: catalog.SourceDescriptor{
					"prio": "0x18", "format": "0xDA", "target": "0xF1", "source": "0x33",
				},
			}},
			Groups: []catalog.SourceGroup{{
				AddressName: "Default",
				Parameters:  []catalog.SourceParameter{{Name: "Param", Attrs: map[string]string{"request": "01 0C"}}},
			}},
		}},
	}})
	pf, err := Build(cat, DefaultOptions(), "TEST", "ISO 15765-4 (CAN 29/500) Extended Id", "Default", "Param")
	if err != nil {
		t.Fatal(err)
	}
	md := pf.Messages[0]
	if !md.ExpectedHeader.Equal(wire.New(0x18, 0xDA, 0xF1, 0x33)) {
		t.Errorf("expected header = %v, want response-descriptor values [18 DA F1 33]", md.ExpectedHeader)
	}
	if !md.ExpectedHeaderMask.Equal(wire.New(0xFF, 0xFF, 0xFF, 0xFF)) {
		t.Errorf("expected mask = %v", md.ExpectedHeaderMask)
	}
}

// S4: ISO 14230 embedded length.
func TestISO14230EmbeddedLength(t *testing.T) {
	cat := buildCatalog(t, []catalog.SourceSpec{{
		Name: "TEST",
		Protocols: []catalog.SourceProtocol{{
			Name:    "ISO 14230",
			Options: map[string]bool{"length_byte": false},
			Addresses: []catalog.SourceAddress{{
				Name:    "Default",
				Request: catalog.SourceDescriptor{"format": "0x00"},
			}},
			Groups: []catalog.SourceGroup{{
				AddressName: "Default",
				Parameters:  []catalog.SourceParameter{{Name: "Param", Attrs: map[string]string{"request": "0x01"}}},
			}},
		}},
	}})
	pf, err := Build(cat, DefaultOptions(), "TEST", "ISO 14230", "Default", "Param")
	if err != nil {
		t.Fatal(err)
	}
	if pf.Messages[0].RequestHeader[0]&0x3F != 1 {
		t.Errorf("header[0] = %#x, want low 6 bits == 1", pf.Messages[0].RequestHeader[0])
	}
}

func TestISO14230LengthByteAppended(t *testing.T) {
	cat := buildCatalog(t, []catalog.SourceSpec{{
		Name: "TEST",
		Protocols: []catalog.SourceProtocol{{
			Name:    "ISO 14230",
			Options: map[string]bool{"length_byte": true},
			Addresses: []catalog.SourceAddress{{
				Name:    "Default",
				Request: catalog.SourceDescriptor{"format": "0x80", "target": "0x10", "source": "0xF1"},
			}},
			Groups: []catalog.SourceGroup{{
				AddressName: "Default",
				Parameters:  []catalog.SourceParameter{{Name: "Param", Attrs: map[string]string{"request": "0x01 0x0C"}}},
			}},
		}},
	}})
	pf, err := Build(cat, DefaultOptions(), "TEST", "ISO 14230", "Default", "Param")
	if err != nil {
		t.Fatal(err)
	}
	md := pf.Messages[0]
	if len(md.RequestHeader) != 4 {
		t.Fatalf("got header len %d, want 4 (format+target+source+length)", len(md.RequestHeader))
	}
	if md.RequestHeader[3] != 2 {
		t.Errorf("length byte = %d, want 2", md.RequestHeader[3])
	}
}

func TestISO14230LengthOverflow(t *testing.T) {
	toks := ""
	for i := 0; i < 64; i++ {
		if i > 0 {
			toks += " "
		}
		toks += "00"
	}
	cat := buildCatalog(t, []catalog.SourceSpec{{
		Name: "TEST",
		Protocols: []catalog.SourceProtocol{{
			Name:    "ISO 14230",
			Options: map[string]bool{"length_byte": false},
			Addresses: []catalog.SourceAddress{{
				Name:    "Default",
				Request: catalog.SourceDescriptor{"format": "0x00"},
			}},
			Groups: []catalog.SourceGroup{{
				AddressName: "Default",
				Parameters:  []catalog.SourceParameter{{Name: "Param", Attrs: map[string]string{"request": toks}}},
			}},
		}},
	}})
	_, err := Build(cat, DefaultOptions(), "TEST", "ISO 14230", "Default", "Param")
	var lo *LengthOverflowError
	if err == nil {
		t.Fatal("expected LengthOverflowError for a 64-byte payload embedded without a length byte")
	}
	if !asLengthOverflow(err, &lo) {
		t.Fatalf("got %v, want LengthOverflowError", err)
	}
}

func asLengthOverflow(err error, target **LengthOverflowError) bool {
	if e, ok := err.(*LengthOverflowError); ok {
		*target = e
		return true
	}
	return false
}

// TestISO14230ExpectedHeaderDefaultsToWildcard checks that an address with
// no response.format attribute accepts any incoming format byte (expected
// header and mask both zero for byte 0), rather than narrowing to the
// request's own format byte.
func TestISO14230ExpectedHeaderDefaultsToWildcard(t *testing.T) {
	cat := buildCatalog(t, []catalog.SourceSpec{{
		Name: "TEST",
		Protocols: []catalog.SourceProtocol{{
			Name:    "ISO 14230",
			Options: map[string]bool{"length_byte": false},
			Addresses: []catalog.SourceAddress{{
				Name:    "Default",
				Request: catalog.SourceDescriptor{"format": "0x80", "target": "0x10", "source": "0xF1"},
			}},
			Groups: []catalog.SourceGroup{{
				AddressName: "Default",
				Parameters:  []catalog.SourceParameter{{Name: "Param", Attrs: map[string]string{"request": "0x01"}}},
			}},
		}},
	}})
	pf, err := Build(cat, DefaultOptions(), "TEST", "ISO 14230", "Default", "Param")
	if err != nil {
		t.Fatal(err)
	}
	md := pf.Messages[0]
	if md.ExpectedHeader[0] != 0 || md.ExpectedHeaderMask[0] != 0 {
		t.Errorf("expected header/mask[0] = %#x/%#x, want 0/0 (no response.format declared)",
			md.ExpectedHeader[0], md.ExpectedHeaderMask[0])
	}
}

// TestISO14230ExpectedHeaderHonorsResponseFormat checks the counterpart: an
// explicit response.format sets the expected format byte and narrows the
// mask to 0xC0, ignoring the length bits packed into the low 6 bits.
func TestISO14230ExpectedHeaderHonorsResponseFormat(t *testing.T) {
	cat := buildCatalog(t, []catalog.SourceSpec{{
		Name: "TEST",
		Protocols: []catalog.SourceProtocol{{
			Name:    "ISO 14230",
			Options: map[string]bool{"length_byte": false},
			Addresses: []catalog.SourceAddress{{
				Name:     "Default",
				Request:  catalog.SourceDescriptor{"format": "0x80", "target": "0x10", "source": "0xF1"},
				Response: catalog.SourceDescriptor{"format": "0x80"},
			}},
			Groups: []catalog.SourceGroup{{
				AddressName: "Default",
				Parameters:  []catalog.SourceParameter{{Name: "Param", Attrs: map[string]string{"request": "0x01"}}},
			}},
		}},
	}})
	pf, err := Build(cat, DefaultOptions(), "TEST", "ISO 14230", "Default", "Param")
	if err != nil {
		t.Fatal(err)
	}
	md := pf.Messages[0]
	if md.ExpectedHeader[0] != 0x80 || md.ExpectedHeaderMask[0] != 0xC0 {
		t.Errorf("expected header/mask[0] = %#x/%#x, want 0x80/0xC0", md.ExpectedHeader[0], md.ExpectedHeaderMask[0])
	}
}
