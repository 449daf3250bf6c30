package saftcr

import (
	"testing"

	"github.com/beevik/etree"
)

func loadExtractor(t *testing.T, xml string) *Extractor {
	t.Helper()
	doc := etree.NewDocument()
	if err := doc.ReadFromString(xml); err != nil {
		t.Fatalf("parse: %v", err)
	}
	lm, err := BuildLineMap([]byte(xml), doc)
	if err != nil {
		t.Fatalf("line map: %v", err)
	}
	return NewExtractor(doc, lm)
}

const sampleAuditFile = `<auditfile>
  <masterFiles>
    <basics><type>transType</type><id>SALE</id><desc>Cash sale</desc><predefinedBasicID>11001</predefinedBasicID></basics>
  </masterFiles>
  <sourceDocuments>
    <cashtransaction><nr>1</nr><transID>T1</transID><transType>SALE</transType><transAmntIn>100</transAmntIn><transAmntEx>100</transAmntEx><transDate>2024-01-15</transDate><transTime>09:00:00</transTime><empID>E1</empID></cashtransaction>
    <cashtransaction><nr>2</nr><transID>T2</transID><transType>SALE</transType><transAmntIn>50</transAmntIn><transAmntEx>50</transAmntEx><transDate>2024-01-15</transDate><transTime>10:00:00</transTime><empID>E1</empID></cashtransaction>
  </sourceDocuments>
</auditfile>`

func TestExtractorCashTransactionsAndBasicsLookup(t *testing.T) {
	x := loadExtractor(t, sampleAuditFile)
	txns := x.CashTransactions()
	if len(txns) != 2 {
		t.Fatalf("got %d transactions, want 2", len(txns))
	}
	if !txns[0].NrValid || txns[0].NrValue != 1 {
		t.Errorf("first transaction nr not parsed correctly: %+v", txns[0])
	}
	basic, ok := x.LookupBasic("SALE")
	if !ok || basic.PredefinedID != "11001" {
		t.Fatalf("LookupBasic(SALE) = (%+v, %v)", basic, ok)
	}
}

func TestCheckNumberingContinuityPasses(t *testing.T) {
	x := loadExtractor(t, sampleAuditFile)
	vv := NewValueValidator()
	findings := vv.checkNumbering(x)
	for _, f := range findings {
		if f.ErrorKind == KindContinuousNumberingPerRegister || f.ErrorKind == KindNotContinuousNumbering {
			t.Errorf("unexpected numbering finding on a contiguous sequence: %+v", f)
		}
	}
}

const brokenNumberingFile = `<auditfile>
  <sourceDocuments>
    <cashtransaction><nr>1</nr><cashRegisterID>R1</cashRegisterID></cashtransaction>
    <cashtransaction><nr>3</nr><cashRegisterID>R1</cashRegisterID></cashtransaction>
  </sourceDocuments>
</auditfile>`

func TestCheckNumberingContinuityDetectsBreak(t *testing.T) {
	x := loadExtractor(t, brokenNumberingFile)
	vv := NewValueValidator()
	findings := vv.checkNumbering(x)

	found := false
	for _, f := range findings {
		if f.ErrorKind == KindContinuousNumberingPerRegister {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a per-register continuity break, got %+v", findings)
	}
}

// TestCheckNumberingKeepsMalformedNrFindingAlongsideContinuityBreak covers
// a file combining a malformed nr value with a numbering gap in the same
// register: both findings must survive, not just the continuity break.
func TestCheckNumberingKeepsMalformedNrFindingAlongsideContinuityBreak(t *testing.T) {
	x := loadExtractor(t, `<auditfile>
  <sourceDocuments>
    <cashtransaction><nr>abc</nr><cashRegisterID>R1</cashRegisterID></cashtransaction>
    <cashtransaction><nr>1</nr><cashRegisterID>R1</cashRegisterID></cashtransaction>
    <cashtransaction><nr>3</nr><cashRegisterID>R1</cashRegisterID></cashtransaction>
  </sourceDocuments>
</auditfile>`)
	vv := NewValueValidator()
	findings := vv.checkNumbering(x)

	var sawMalformed, sawBreak bool
	for _, f := range findings {
		if f.ErrorKind == KindValueDoesNotContainNr {
			sawMalformed = true
		}
		if f.ErrorKind == KindContinuousNumberingPerRegister {
			sawBreak = true
		}
	}
	if !sawMalformed {
		t.Error("expected the malformed nr finding to survive")
	}
	if !sawBreak {
		t.Error("expected the continuity break finding to survive")
	}
}

func TestCheckPredefinedBasicCorrectness(t *testing.T) {
	x := loadExtractor(t, `<auditfile>
    <masterFiles>
      <basics><id>SALE</id><predefinedBasicID>12001</predefinedBasicID></basics>
    </masterFiles>
    <sourceDocuments>
      <cashtransaction><nr>1</nr><transType>SALE</transType></cashtransaction>
    </sourceDocuments>
  </auditfile>`)
	vv := NewValueValidator()
	findings := vv.checkPredefinedBasicCorrectness(x)
	if len(findings) != 1 || findings[0].ErrorKind != KindWrongPredefinedBasicUsed {
		t.Fatalf("expected one WRONG_PREDEFINED_BASIC_USED finding, got %+v", findings)
	}
}

func TestCheckBasicsRelationSkipsSentinels(t *testing.T) {
	x := loadExtractor(t, `<auditfile>
    <sourceDocuments>
      <cashtransaction><nr>1</nr><transType>`+SentinelString+`</transType></cashtransaction>
    </sourceDocuments>
  </auditfile>`)
	vv := NewValueValidator()
	findings := vv.checkBasicsRelation(x)
	if len(findings) != 0 {
		t.Errorf("sentinel values should be skipped by the basics relation check, got %+v", findings)
	}
}
