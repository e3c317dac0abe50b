package db

import (
	"fmt"
	"strconv"
	"strings"
)

// FieldKind is the FT schema type of an indexed JSON attribute.
type FieldKind string

const (
	FieldTag     FieldKind = "TAG"
	FieldNumeric FieldKind = "NUMERIC"
	FieldVector  FieldKind = "VECTOR"
)

// DistanceCosine is the default vector distance metric.
const DistanceCosine = "COSINE"

// VectorSpec holds the HNSW parameters of a FLOAT32 vector attribute.
type VectorSpec struct {
	Dim            int
	Metric         string // COSINE when empty
	M              int    // 0 keeps the server default
	EFConstruction int    // 0 keeps the server default
}

// IndexField is one attribute of a JSON index schema, addressed by JSONPath and queried by alias.
type IndexField struct {
	Path   string
	Alias  string
	Kind   FieldKind
	Vector VectorSpec
}

// IndexDefinition describes an FT index over JSON documents stored under one key prefix.
type IndexDefinition struct {
	Name   string
	Prefix string
	Fields []IndexField
}

// NewIndex starts a JSON index definition. Fields are appended with Tag, Numeric and Vector.
func NewIndex(name, prefix string) *IndexDefinition {
	return &IndexDefinition{Name: name, Prefix: prefix}
}

// Tag adds a TAG attribute.
func (d *IndexDefinition) Tag(path, alias string) *IndexDefinition {
	d.Fields = append(d.Fields, IndexField{Path: path, Alias: alias, Kind: FieldTag})
	return d
}

// Numeric adds a NUMERIC attribute.
func (d *IndexDefinition) Numeric(path, alias string) *IndexDefinition {
	d.Fields = append(d.Fields, IndexField{Path: path, Alias: alias, Kind: FieldNumeric})
	return d
}

// Vector adds an HNSW vector attribute.
func (d *IndexDefinition) Vector(path, alias string, spec VectorSpec) *IndexDefinition {
	d.Fields = append(d.Fields, IndexField{Path: path, Alias: alias, Kind: FieldVector, Vector: spec})
	return d
}

// Validate reports the first problem with the definition, wrapping ErrInvalidIndex.
func (d *IndexDefinition) Validate() error {
	if !validIdentifier(d.Name) {
		return fmt.Errorf("%w: bad name %q", ErrInvalidIndex, d.Name)
	}
	if d.Prefix == "" {
		return fmt.Errorf("%w: %s has no key prefix", ErrInvalidIndex, d.Name)
	}
	if len(d.Fields) == 0 {
		return fmt.Errorf("%w: %s has no fields", ErrInvalidIndex, d.Name)
	}

	aliases := make(map[string]struct{}, len(d.Fields))
	for _, f := range d.Fields {
		if !strings.HasPrefix(f.Path, "$.") {
			return fmt.Errorf("%w: field %q is not a JSONPath", ErrInvalidIndex, f.Path)
		}
		if f.Alias == "" {
			return fmt.Errorf("%w: field %s needs an alias", ErrInvalidIndex, f.Path)
		}
		if _, dup := aliases[f.Alias]; dup {
			return fmt.Errorf("%w: duplicate alias %s", ErrInvalidIndex, f.Alias)
		}
		aliases[f.Alias] = struct{}{}

		switch f.Kind {
		case FieldTag, FieldNumeric:
		case FieldVector:
			if f.Vector.Dim <= 0 {
				return fmt.Errorf("%w: vector %s needs a positive dim", ErrInvalidIndex, f.Alias)
			}
		default:
			return fmt.Errorf("%w: field %s has unknown kind %q", ErrInvalidIndex, f.Alias, f.Kind)
		}
	}
	return nil
}

// CreateArgs renders the FT.CREATE arguments (without the command name).
func (d *IndexDefinition) CreateArgs() ([]string, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	args := []string{d.Name, "ON", "JSON", "PREFIX", "1", d.Prefix, "SCHEMA"}
	for _, f := range d.Fields {
		args = append(args, f.Path, "AS", f.Alias, string(f.Kind))
		if f.Kind == FieldVector {
			args = append(args, vectorArgs(f.Vector)...)
		}
	}
	return args, nil
}

func vectorArgs(v VectorSpec) []string {
	metric := v.Metric
	if metric == "" {
		metric = DistanceCosine
	}
	attrs := []string{"TYPE", "FLOAT32", "DIM", strconv.Itoa(v.Dim), "DISTANCE_METRIC", metric}
	if v.M > 0 {
		attrs = append(attrs, "M", strconv.Itoa(v.M))
	}
	if v.EFConstruction > 0 {
		attrs = append(attrs, "EF_CONSTRUCTION", strconv.Itoa(v.EFConstruction))
	}
	return append([]string{"HNSW", strconv.Itoa(len(attrs))}, attrs...)
}

// String returns the FT.CREATE command line, or the validation error.
func (d *IndexDefinition) String() string {
	args, err := d.CreateArgs()
	if err != nil {
		return err.Error()
	}
	return "FT.CREATE " + strings.Join(args, " ")
}

func validIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_', r == ':', r == '-':
		default:
			return false
		}
	}
	return true
}
