package catalog

import (
	"fmt"
	"strings"

	"github.com/preet/libobdref-go/eval"
)

// Level names the tree depth a lookup failed at.
type Level int

const (
	LevelSpec Level = iota
	LevelProtocol
	LevelAddress
	LevelGroup
	LevelParameter
)

func (l Level) String() string {
	switch l {
	case LevelSpec:
		return "spec"
	case LevelProtocol:
		return "protocol"
	case LevelAddress:
		return "address"
	case LevelGroup:
		return "parameter group"
	case LevelParameter:
		return "parameter"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// NotFoundError reports which level of the Spec/Protocol/Address/Group/
// Parameter tree a lookup could not find.
type NotFoundError struct {
	Level                               Level
	Spec, Protocol, Address, Parameter string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("catalog: %s not found (spec=%q protocol=%q address=%q parameter=%q)",
		e.Level, e.Spec, e.Protocol, e.Address, e.Parameter)
}

// Build indexes a tree of SourceSpecs into an immutable Catalog, registering
// every script body found along the way with sb so that Parameter.SelectScript
// can later hand back a stable eval.ScriptHandle. sb may be nil only when the
// catalog carries no scripts at all (a purely structural test fixture);
// otherwise a nil sb with a non-empty script body is a programmer error and
// Build panics, since that would silently produce unusable handles.
func Build(specs []SourceSpec, sb eval.Sandbox) (*Catalog, error) {
	cat := &Catalog{specs: make(map[string]*Spec, len(specs))}
	for _, ss := range specs {
		spec := &Spec{Name: ss.Name, protocols: make(map[string]*Protocol, len(ss.Protocols))}
		for _, sp := range ss.Protocols {
			proto, err := buildProtocol(sp, sb)
			if err != nil {
				return nil, fmt.Errorf("catalog: spec %q: %w", ss.Name, err)
			}
			spec.protocols[sp.Name] = proto
		}
		cat.specs[ss.Name] = spec
	}
	return cat, nil
}

func buildProtocol(sp SourceProtocol, sb eval.Sandbox) (*Protocol, error) {
	class, err := ClassifyProtocol(sp.Name)
	if err != nil {
		return nil, err
	}

	proto := &Protocol{
		Name:      sp.Name,
		Class:     class,
		Options:   map[string]bool{},
		addresses: make(map[string]*Address, len(sp.Addresses)),
		groups:    make(map[string]*Group, len(sp.Groups)),
	}
	for k, v := range sp.Options {
		proto.Options[k] = v
	}

	for _, sa := range sp.Addresses {
		proto.addresses[sa.Name] = &Address{
			Name:     sa.Name,
			Request:  Descriptor(sa.Request),
			Response: Descriptor(sa.Response),
		}
	}

	for _, sg := range sp.Groups {
		group := &Group{AddressName: sg.AddressName, Parameters: make([]*Parameter, 0, len(sg.Parameters))}
		for _, sparam := range sg.Parameters {
			param, err := buildParameter(sparam, sb)
			if err != nil {
				return nil, fmt.Errorf("protocol %q address %q: %w", sp.Name, sg.AddressName, err)
			}
			group.Parameters = append(group.Parameters, param)
		}
		proto.groups[sg.AddressName] = group
	}

	return proto, nil
}

func buildParameter(sparam SourceParameter, sb eval.Sandbox) (*Parameter, error) {
	mode := ParseSeparately
	if sparam.ParseMode == "combined" {
		mode = ParseCombined
	}

	requests, err := buildRequestSpecs(sparam.Attrs)
	if err != nil {
		return nil, fmt.Errorf("parameter %q: %w", sparam.Name, err)
	}

	param := &Parameter{
		Name:      sparam.Name,
		Requests:  requests,
		ParseMode: mode,
	}

	for _, s := range sparam.Scripts {
		var handle eval.ScriptHandle
		if sb == nil {
			if strings.TrimSpace(s.Body) != "" {
				panic("catalog: script body present but no eval.Sandbox supplied to Build")
			}
			handle = eval.NoScript
		} else {
			handle, err = sb.LoadScript(s.Body)
			if err != nil {
				return nil, fmt.Errorf("parameter %q: load script %q: %w", sparam.Name, s.Protocols, err)
			}
		}
		param.scripts = append(param.scripts, scriptEntry{Pattern: s.Protocols, Handle: handle})
	}

	return param, nil
}

// Names returns the parameter names for (spec, protocol, address), in
// declaration order.
func (c *Catalog) Names(spec, protocol, address string) ([]string, error) {
	_, _, group, err := c.resolveGroup(spec, protocol, address)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(group.Parameters))
	for i, p := range group.Parameters {
		names[i] = p.Name
	}
	return names, nil
}

// Resolved bundles the Protocol, Address, and Parameter a lookup found,
// since the builder needs all three to construct a request.
type Resolved struct {
	Protocol  *Protocol
	Address   *Address
	Parameter *Parameter
}

// Resolve locates a parameter by (spec, protocol, address, name),
// returning a *NotFoundError naming the missing level on failure.
func (c *Catalog) Resolve(spec, protocol, address, name string) (*Resolved, error) {
	proto, addr, group, err := c.resolveGroup(spec, protocol, address)
	if err != nil {
		return nil, err
	}
	for _, p := range group.Parameters {
		if p.Name == name {
			return &Resolved{Protocol: proto, Address: addr, Parameter: p}, nil
		}
	}
	return nil, &NotFoundError{Level: LevelParameter, Spec: spec, Protocol: protocol, Address: address, Parameter: name}
}

func (c *Catalog) resolveGroup(specName, protocolName, addressName string) (*Protocol, *Address, *Group, error) {
	spec, ok := c.specs[specName]
	if !ok {
		return nil, nil, nil, &NotFoundError{Level: LevelSpec, Spec: specName}
	}
	proto, ok := spec.protocols[protocolName]
	if !ok {
		return nil, nil, nil, &NotFoundError{Level: LevelProtocol, Spec: specName, Protocol: protocolName}
	}
	addr, ok := proto.addresses[addressName]
	if !ok {
		return nil, nil, nil, &NotFoundError{Level: LevelAddress, Spec: specName, Protocol: protocolName, Address: addressName}
	}
	group, ok := proto.groups[addressName]
	if !ok {
		return nil, nil, nil, &NotFoundError{Level: LevelGroup, Spec: specName, Protocol: protocolName, Address: addressName}
	}
	return proto, addr, group, nil
}
