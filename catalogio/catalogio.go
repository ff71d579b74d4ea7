// Package catalogio reads a declarative OBD parameter catalog from YAML
// into the catalog.SourceSpec tree that catalog.Build consumes. It is a
// reader only: numeric literals inside attribute values ("0x0C", "0b101",
// "12") are left as strings exactly as they appear in the document, since
// package build owns wire.ParseUint and the parsing rules for request
// tokens — catalogio never duplicates that logic.
package catalogio

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/preet/libobdref-go/catalog"
)

// document mirrors the on-disk shape: a list of named specs, each holding
// protocols, in turn holding addresses/groups/parameters/scripts per
// the recognized attribute keys.
type document struct {
	Specs []specNode `yaml:"specs"`
}

type specNode struct {
	Name      string         `yaml:"name"`
	Protocols []protocolNode `yaml:"protocols"`
}

type protocolNode struct {
	Name      string            `yaml:"name"`
	Options   map[string]string `yaml:"options"`
	Addresses []addressNode     `yaml:"addresses"`
	Groups    []groupNode       `yaml:"groups"`
}

type addressNode struct {
	Name     string            `yaml:"name"`
	Request  map[string]string `yaml:"request"`
	Response map[string]string `yaml:"response"`
}

type groupNode struct {
	Address    string          `yaml:"address"`
	Parameters []parameterNode `yaml:"parameters"`
}

type parameterNode struct {
	Name    string            `yaml:"name"`
	Parse   string            `yaml:"parse"` // "combined" or "separately", default separately
	Attrs   map[string]string `yaml:"attrs"`
	Scripts []scriptNode      `yaml:"scripts"`
}

type scriptNode struct {
	Protocols string `yaml:"protocols"`
	Body      string `yaml:"body"`
}

// MalformedDocumentError reports a protocol option whose name is not
// recognized or whose value is other than "true"/"false". YAML decode
// failures are returned as a wrapped yaml error, not as this type.
type MalformedDocumentError struct {
	Reason string
}

func (e *MalformedDocumentError) Error() string {
	return fmt.Sprintf("catalogio: malformed catalog document: %s", e.Reason)
}

// ReadFile opens path and decodes it via Read.
func ReadFile(path string) ([]catalog.SourceSpec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalogio: open %s: %w", path, err)
	}
	defer f.Close()
	return Read(f)
}

// Read decodes a YAML catalog document from r into the catalog.SourceSpec
// tree catalog.Build expects.
func Read(r io.Reader) ([]catalog.SourceSpec, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("catalogio: read: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("catalogio: parse yaml: %w", err)
	}

	specs := make([]catalog.SourceSpec, 0, len(doc.Specs))
	for _, sn := range doc.Specs {
		spec, err := convertSpec(sn)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func convertSpec(sn specNode) (catalog.SourceSpec, error) {
	spec := catalog.SourceSpec{Name: sn.Name}
	for _, pn := range sn.Protocols {
		proto, err := convertProtocol(pn)
		if err != nil {
			return catalog.SourceSpec{}, fmt.Errorf("spec %q: %w", sn.Name, err)
		}
		spec.Protocols = append(spec.Protocols, proto)
	}
	return spec, nil
}

func convertProtocol(pn protocolNode) (catalog.SourceProtocol, error) {
	proto := catalog.SourceProtocol{
		Name:    pn.Name,
		Options: make(map[string]bool, len(pn.Options)),
	}
	for name, value := range pn.Options {
		key, err := normalizeOptionName(name)
		if err != nil {
			return catalog.SourceProtocol{}, fmt.Errorf("protocol %q: %w", pn.Name, err)
		}
		switch value {
		case "true":
			proto.Options[key] = true
		case "false":
			proto.Options[key] = false
		default:
			return catalog.SourceProtocol{}, &MalformedDocumentError{
				Reason: fmt.Sprintf("protocol %q option %q: value %q is not true/false", pn.Name, name, value),
			}
		}
	}

	for _, an := range pn.Addresses {
		proto.Addresses = append(proto.Addresses, catalog.SourceAddress{
			Name:     an.Name,
			Request:  catalog.SourceDescriptor(an.Request),
			Response: catalog.SourceDescriptor(an.Response),
		})
	}

	for _, gn := range pn.Groups {
		group := catalog.SourceGroup{AddressName: gn.Address}
		for _, param := range gn.Parameters {
			group.Parameters = append(group.Parameters, convertParameter(param))
		}
		proto.Groups = append(proto.Groups, group)
	}

	return proto, nil
}

// normalizeOptionName maps the on-disk option names to catalog's internal
// keys to catalog's internal option names.
func normalizeOptionName(name string) (string, error) {
	switch name {
	case "Length Byte":
		return "length_byte", nil
	case "Extended Address":
		return "extended_address", nil
	default:
		return "", &MalformedDocumentError{Reason: fmt.Sprintf("unrecognized protocol option %q", name)}
	}
}

func convertParameter(pn parameterNode) catalog.SourceParameter {
	param := catalog.SourceParameter{
		Name:      pn.Name,
		ParseMode: pn.Parse, // "" defaults to separately inside catalog.Build
		Attrs:     pn.Attrs,
	}
	for _, sn := range pn.Scripts {
		param.Scripts = append(param.Scripts, catalog.SourceScript{
			Protocols: sn.Protocols,
			Body:      sn.Body,
		})
	}
	return param
}
