package saftcr

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// ElementMeta is the Schema Index's per-element record (spec.md §4.2).
type ElementMeta struct {
	Name               string
	TypeName           string
	Optional           bool
	DirectChildren     []ChildRef
	TransitiveChildren map[string]bool
	Parents            []string
}

// ChildRef names a direct child element and whether it is optional.
type ChildRef struct {
	Name     string
	Optional bool
}

// SchemaIndex is the arbiter of "is element X allowed under parent Y" and
// "is the missing element Z optional" (spec.md §4.2). It is built once at
// process start from an XSD document and is read-only thereafter.
type SchemaIndex struct {
	elements map[string]*ElementMeta
}

// IsChildOf reports whether child is a direct child of parent according to
// the schema.
func (s *SchemaIndex) IsChildOf(parent, child string) bool {
	meta, ok := s.elements[parent]
	if !ok {
		return false
	}
	for _, c := range meta.DirectChildren {
		if c.Name == child {
			return true
		}
	}
	return false
}

// IsOptional reports whether name is declared optional (minOccurs="0").
func (s *SchemaIndex) IsOptional(name string) bool {
	meta, ok := s.elements[name]
	return ok && meta.Optional
}

// TypeOf returns the declared XSD type name of an element, if any.
func (s *SchemaIndex) TypeOf(name string) string {
	if meta, ok := s.elements[name]; ok {
		return meta.TypeName
	}
	return ""
}

// ParentsOf returns every element that declares name as a direct child.
func (s *SchemaIndex) ParentsOf(name string) []string {
	if meta, ok := s.elements[name]; ok {
		return meta.Parents
	}
	return nil
}

// SoleParent returns the single parent tag of name if the Schema Index
// knows of exactly one, and true; otherwise ("", false). Used by the
// Structure Validator's error-locating rule, step 3 (spec.md §4.4).
func (s *SchemaIndex) SoleParent(name string) (string, bool) {
	parents := s.ParentsOf(name)
	if len(parents) == 1 {
		return parents[0], true
	}
	return "", false
}

// Lookup returns the full metadata record for name.
func (s *SchemaIndex) Lookup(name string) (*ElementMeta, bool) {
	meta, ok := s.elements[name]
	return meta, ok
}

// localName strips an XML namespace prefix ("xsd:element" -> "element").
func localName(tag string) string {
	if i := strings.IndexByte(tag, ':'); i >= 0 {
		return tag[i+1:]
	}
	return tag
}

// BuildSchemaIndex parses an XSD document once and returns the Schema
// Index. For every element declaration with a name it records its type,
// minOccurs-derived optionality, the direct children of its first nested
// sequence, and the transitive set of all nested element declarations.
// After the full tree is walked, the parents relation is derived by
// inverting DirectChildren (spec.md §4.2).
func BuildSchemaIndex(xsd *etree.Document) (*SchemaIndex, error) {
	root := xsd.Root()
	if root == nil {
		return nil, fmt.Errorf("saftcr: empty XSD document")
	}

	idx := &SchemaIndex{elements: make(map[string]*ElementMeta)}

	var walk func(el *etree.Element)
	walk = func(el *etree.Element) {
		if localName(el.Tag) == "element" {
			name := el.SelectAttrValue("name", "")
			if name != "" {
				meta := idx.elements[name]
				if meta == nil {
					meta = &ElementMeta{Name: name, TransitiveChildren: make(map[string]bool)}
					idx.elements[name] = meta
				}
				meta.TypeName = el.SelectAttrValue("type", meta.TypeName)
				meta.Optional = meta.Optional || el.SelectAttrValue("minOccurs", "1") == "0"

				if seq := firstSequence(el); seq != nil {
					for _, child := range seq.ChildElements() {
						if localName(child.Tag) != "element" {
							continue
						}
						cname := child.SelectAttrValue("name", "")
						if cname == "" {
							continue
						}
						copt := child.SelectAttrValue("minOccurs", "1") == "0"
						meta.DirectChildren = append(meta.DirectChildren, ChildRef{Name: cname, Optional: copt})
					}
				}

				for _, desc := range el.FindElements(".//element") {
					dname := desc.SelectAttrValue("name", "")
					if dname != "" {
						meta.TransitiveChildren[dname] = true
					}
				}
			}
		}
		for _, child := range el.ChildElements() {
			walk(child)
		}
	}
	walk(root)

	for parent, meta := range idx.elements {
		for _, c := range meta.DirectChildren {
			child := idx.elements[c.Name]
			if child == nil {
				child = &ElementMeta{Name: c.Name, TransitiveChildren: make(map[string]bool)}
				idx.elements[c.Name] = child
			}
			child.Parents = append(child.Parents, parent)
		}
	}

	return idx, nil
}

// firstSequence returns the first xsd:sequence nested (at any depth inside
// a complexType) under el, or nil.
func firstSequence(el *etree.Element) *etree.Element {
	for _, child := range el.ChildElements() {
		if localName(child.Tag) == "sequence" {
			return child
		}
		if found := firstSequence(child); found != nil {
			return found
		}
	}
	return nil
}
