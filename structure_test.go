package saftcr

import (
	"testing"

	"github.com/beevik/etree"
)

const structureXSD = `<?xml version="1.0"?>
<xsd:schema xmlns:xsd="http://www.w3.org/2001/XMLSchema">
  <xsd:element name="cashtransaction">
    <xsd:complexType>
      <xsd:sequence>
        <xsd:element name="nr" type="xsd:string"/>
        <xsd:element name="transDate" type="xsd:string"/>
        <xsd:element name="empID" type="xsd:string"/>
      </xsd:sequence>
    </xsd:complexType>
  </xsd:element>
</xsd:schema>`

func mustSchema(t *testing.T) *SchemaIndex {
	t.Helper()
	doc := etree.NewDocument()
	if err := doc.ReadFromString(structureXSD); err != nil {
		t.Fatal(err)
	}
	idx, err := BuildSchemaIndex(doc)
	if err != nil {
		t.Fatal(err)
	}
	return idx
}

func TestRunStructureValidationHealsMissingChild(t *testing.T) {
	schema := mustSchema(t)
	doc := etree.NewDocument()
	xml := "<cashtransaction><nr>1</nr><empID>E1</empID></cashtransaction>"
	if err := doc.ReadFromString(xml); err != nil {
		t.Fatal(err)
	}
	lm, err := BuildLineMap([]byte(xml), doc)
	if err != nil {
		t.Fatal(err)
	}

	findings := RunStructureValidation(doc, schema, lm)

	if len(findings) == 0 {
		t.Fatal("expected at least one structure finding for the missing transDate")
	}
	found := false
	for _, f := range findings {
		if f.ElementTag == "transDate" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a finding naming transDate, got %+v", findings)
	}

	root := doc.Root()
	if root.SelectElement("transDate") == nil {
		t.Fatal("expected a synthetic transDate element to be inserted")
	}
	if !lm.IsSynthetic(root.SelectElement("transDate")) {
		t.Error("inserted transDate should be marked synthetic in the Line Map")
	}

	// Idempotence: re-running validation against the healed tree should not
	// add more elements or keep finding the same gap (spec.md §8).
	again := RunStructureValidation(doc, schema, lm)
	for _, f := range again {
		if f.ElementTag == "transDate" {
			t.Error("structural repair should be idempotent: transDate already healed")
		}
	}
}

func TestRunStructureValidationRemovesDuplicateTag(t *testing.T) {
	schema := mustSchema(t)
	doc := etree.NewDocument()
	xml := "<cashtransaction><nr>1</nr><transDate>2024-01-15</transDate><empID>E1</empID><empID>E2</empID></cashtransaction>"
	if err := doc.ReadFromString(xml); err != nil {
		t.Fatal(err)
	}
	lm, err := BuildLineMap([]byte(xml), doc)
	if err != nil {
		t.Fatal(err)
	}

	RunStructureValidation(doc, schema, lm)

	same := childrenWithTag(doc.Root(), "empID")
	if len(same) != 1 {
		t.Fatalf("expected exactly one empID to survive, got %d", len(same))
	}
}

func TestDummyTextForType(t *testing.T) {
	if dummyTextForType("String") != SentinelString {
		t.Error("String type should produce the string sentinel")
	}
	if dummyTextForType("DateType") != SentinelDate {
		t.Error("DateType should produce the date sentinel")
	}
	if dummyTextForType("Nonnegativeinteger") != "0" {
		t.Error("Nonnegativeinteger should produce a zero sentinel")
	}
}

func TestAuditTrail(t *testing.T) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString("<a><b><c/></b></a>"); err != nil {
		t.Fatal(err)
	}
	c := doc.Root().FindElement(".//c")
	if got, want := auditTrail(c), "a/b/c"; got != want {
		t.Errorf("auditTrail() = %q, want %q", got, want)
	}
}
