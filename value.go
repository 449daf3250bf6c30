package saftcr

import (
	"sort"

	"github.com/shopspring/decimal"
)

// reconciliationBasics is the predefined-basic set eligible for report
// reconciliation (spec.md §4.7a).
var reconciliationBasics = map[string]bool{
	"11001": true, "11002": true, "11004": true, "11005": true, "11006": true,
	"11009": true, "11012": true, "11013": true, "11015": true, "11016": true, "11017": true,
}

// ctLineBasics is the reconciliation set minus {11005} (spec.md §4.7e,
// "mandatory_if_available_ct_line").
var ctLineBasics = map[string]bool{
	"11001": true, "11002": true, "11004": true, "11006": true,
	"11009": true, "11012": true, "11013": true, "11015": true, "11016": true, "11017": true,
}

var paymentBasics = map[string]bool{
	"11001": true, "11002": true, "11003": true, "11004": true, "11005": true, "11006": true,
	"11008": true, "11009": true, "11012": true, "11015": true, "11016": true, "11017": true, "11999": true,
}

const tipsPredefinedBasic = "10001"

var tolerance = decimal.NewFromFloat(0.001)

// ValueValidator runs the business-rule reconciliation of spec.md §4.7. It
// only runs once structure validation has not aborted reading (the caller
// decides that; this type assumes it is being asked to run).
type ValueValidator struct{}

// NewValueValidator returns a Value Validator; it has no state of its own.
func NewValueValidator() *ValueValidator { return &ValueValidator{} }

// ValidateAll runs every sub-check and returns the combined findings.
func (vv *ValueValidator) ValidateAll(x *Extractor) []Finding {
	var findings []Finding
	findings = append(findings, vv.reconcileReports(x)...)
	findings = append(findings, vv.checkNumbering(x)...)
	findings = append(findings, vv.checkBasicsRelation(x)...)
	findings = append(findings, vv.checkArticleRelation(x)...)
	findings = append(findings, vv.checkMandatoryIfAvailable(x)...)
	findings = append(findings, vv.checkPredefinedBasicCorrectness(x)...)
	return findings
}

// reconcileReports implements spec.md §4.7(a).
func (vv *ValueValidator) reconcileReports(x *Extractor) []Finding {
	var findings []Finding
	byRegister := make(map[string][]CashTrans)
	for _, ct := range x.CashTransactions() {
		byRegister[ct.RegisterID] = append(byRegister[ct.RegisterID], ct)
	}

	for _, report := range x.EventReports() {
		if report.PrecedesFirstZ {
			continue
		}
		txns := byRegister[report.RegisterID]

		var eligible []CashTrans
		for _, ct := range txns {
			if ct.Datetime.Before(report.ReportDatetimeStart) || ct.Datetime.After(report.Datetime) {
				continue
			}
			if ct.Datetime.Equal(report.ReportDatetimeStart) {
				continue
			}
			if ct.VoidTrans || ct.IsTraining() {
				continue
			}
			basic, ok := x.LookupBasic(ct.TransType)
			if !ok || !reconciliationBasics[basic.PredefinedID] {
				continue
			}
			eligible = append(eligible, ct)
		}

		if len(eligible) == 0 {
			findings = append(findings, Finding{Check: CheckValue, Status: StatusError, ErrorKind: KindEventReportCouldNotRun, SourceRow: report.SourceRow, HasRow: report.SourceRow != 0})
			continue
		}

		cashSum := decimal.Zero
		tipsSum := decimal.Zero
		for _, ct := range eligible {
			cashSum = cashSum.Add(ct.AmntIncl)
			for _, r := range ct.Raises {
				basic, ok := x.LookupBasic(r.RaiseType)
				if ok && basic.PredefinedID == tipsPredefinedBasic {
					tipsSum = tipsSum.Add(r.Amount)
				}
			}
		}
		cashSum = cashSum.Add(report.ReturnAmnt.Abs())

		if cashSum.Sub(report.CashSaleAmnt).Abs().GreaterThan(tolerance) {
			findings = append(findings, Finding{Check: CheckValue, Status: StatusError, ErrorKind: KindEventReportTotalCashSales, SourceRow: report.SourceRow, HasRow: report.SourceRow != 0})
		}
		if tipsSum.Sub(report.TipAmnt).Abs().GreaterThan(tolerance) {
			findings = append(findings, Finding{Check: CheckValue, Status: StatusError, ErrorKind: KindEventReportTips, SourceRow: report.SourceRow, HasRow: report.SourceRow != 0})
		}
		if report.Type == ReportZ {
			delta := report.GrandTotalCashSaleAmnt.Sub(report.GrandTotalCashSalePrevious)
			if delta.Sub(report.CashSaleAmnt).Abs().GreaterThan(tolerance) {
				findings = append(findings, Finding{Check: CheckValue, Status: StatusError, ErrorKind: KindEventReportGrandTotalSales, SourceRow: report.SourceRow, HasRow: report.SourceRow != 0})
			}
		}
	}
	return findings
}

// checkNumbering implements spec.md §4.7(b).
func (vv *ValueValidator) checkNumbering(x *Extractor) []Finding {
	var findings []Finding
	byRegister := make(map[string][]CashTrans)
	for _, ct := range x.CashTransactions() {
		if !ct.NrValid {
			findings = append(findings, Finding{Check: CheckStructure, Status: StatusError, ErrorKind: KindValueDoesNotContainNr, SourceRow: ct.SourceRow, HasRow: ct.SourceRow != 0})
			if indexOfByte(ct.Nr, ',') < 0 {
				continue
			}
			// A comma-formatted nr takes part in the numbering checks as 0.
		}
		byRegister[ct.RegisterID] = append(byRegister[ct.RegisterID], ct)
	}

	for _, txns := range byRegister {
		sort.Slice(txns, func(i, j int) bool { return txns[i].NrValue < txns[j].NrValue })
		for i := 1; i < len(txns); i++ {
			if txns[i].NrValue != txns[i-1].NrValue+1 {
				findings = append(findings, Finding{Check: CheckValue, Status: StatusError, ErrorKind: KindContinuousNumberingPerRegister})
				break
			}
		}
	}

	var all []CashTrans
	for _, txns := range byRegister {
		all = append(all, txns...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].NrValue < all[j].NrValue })
	deduped := dedupByNr(all)
	for i := 1; i < len(deduped); i++ {
		if deduped[i].NrValue != deduped[i-1].NrValue+1 {
			findings = append(findings, Finding{
				Check:      CheckValue,
				Status:     StatusError,
				ErrorKind:  KindNotContinuousNumbering,
				SourceRow:  deduped[i].SourceRow,
				HasRow:     deduped[i].SourceRow != 0,
				Parameters: []string{deduped[i].Nr, deduped[i-1].Nr},
			})
		}
	}
	return findings
}

func dedupByNr(txns []CashTrans) []CashTrans {
	var out []CashTrans
	for i, ct := range txns {
		if i > 0 && ct.NrValue == txns[i-1].NrValue {
			continue
		}
		out = append(out, ct)
	}
	return out
}

// checkBasicsRelation implements spec.md §4.7(c).
func (vv *ValueValidator) checkBasicsRelation(x *Extractor) []Finding {
	var findings []Finding
	check := func(value string, row int) {
		if value == "" || IsSentinel(value) {
			return
		}
		if _, ok := x.LookupBasic(value); !ok {
			findings = append(findings, Finding{Check: CheckValue, Status: StatusError, ErrorKind: KindNoRelationToBasicsFound, SourceRow: row, HasRow: row != 0, Parameters: []string{value}})
		}
	}

	for _, ev := range x.Events() {
		check(ev.BasicType, ev.SourceRow)
	}
	for _, ct := range x.CashTransactions() {
		check(ct.TransType, ct.SourceRow)
		for _, l := range ct.CTLines {
			check(l.LineType, l.SourceRow)
		}
		for _, p := range ct.Payments {
			check(p.PaymentType, p.SourceRow)
		}
		for _, r := range ct.Raises {
			check(r.RaiseType, r.SourceRow)
		}
	}
	return findings
}

// checkArticleRelation implements spec.md §4.7(d).
func (vv *ValueValidator) checkArticleRelation(x *Extractor) []Finding {
	var findings []Finding
	for _, ct := range x.CashTransactions() {
		for _, l := range ct.CTLines {
			if l.ArtID == "" || IsSentinel(l.ArtID) {
				continue
			}
			if _, ok := x.LookupArticle(l.ArtID); !ok {
				findings = append(findings, Finding{Check: CheckValue, Status: StatusError, ErrorKind: KindNoRelationToArticlesFound, SourceRow: l.SourceRow, HasRow: l.SourceRow != 0, Parameters: []string{l.ArtID}})
			}
		}
	}
	return findings
}

var eventReportTrigger = map[string]bool{"13008": true, "13009": true}
var eventTransIDTrigger = map[string]bool{
	"13010": true, "13011": true, "13012": true, "13013": true, "13014": true,
	"13015": true, "13016": true, "13019": true, "13028": true,
}
var paymentRefIDTrigger = map[string]bool{"12002": true, "12003": true, "12011": true}
var basicsPredefinedTrigger = map[string]bool{"10": true, "11": true, "12": true, "13": true}

// checkMandatoryIfAvailable implements spec.md §4.7(e). Per §9 open
// question (c), void transactions are treated as implicitly satisfying
// every CashTrans-rooted constraint in this table, matching the source's
// behavior; the paymentRefID rule is still applied to their payments.
func (vv *ValueValidator) checkMandatoryIfAvailable(x *Extractor) []Finding {
	var findings []Finding
	missing := func(row int, elementName string, predefined string) {
		findings = append(findings, Finding{
			Check: CheckValue, Status: StatusError, ErrorKind: KindElementNotFoundWhenExpected,
			SourceRow: row, HasRow: row != 0, Parameters: []string{predefined, elementName},
		})
	}

	for _, ev := range x.Events() {
		basic, ok := x.LookupBasic(ev.BasicType)
		if !ok {
			continue
		}
		if eventReportTrigger[basic.PredefinedID] && ev.Report == "" {
			missing(ev.SourceRow, "eventReport", basic.PredefinedID)
		}
		if eventTransIDTrigger[basic.PredefinedID] && ev.TransID == "" {
			missing(ev.SourceRow, "transID", basic.PredefinedID)
		}
	}

	for _, ct := range x.CashTransactions() {
		for _, p := range ct.Payments {
			basic, ok := x.LookupBasic(p.PaymentType)
			if ok && paymentRefIDTrigger[basic.PredefinedID] && p.PaymentRefID == "" {
				missing(p.SourceRow, "paymentRefID", basic.PredefinedID)
			}
		}

		if ct.VoidTrans {
			continue
		}
		basic, ok := x.LookupBasic(ct.TransType)
		if !ok {
			continue
		}
		if ctLineBasics[basic.PredefinedID] {
			if len(ct.CTLines) == 0 {
				missing(ct.SourceRow, "ctLine", basic.PredefinedID)
			}
			for _, l := range ct.CTLines {
				if l.Qnt.Equal(decimal.Zero) {
					missing(l.SourceRow, "qnt", basic.PredefinedID)
				}
				if l.ArtID == "" {
					missing(l.SourceRow, "artID", basic.PredefinedID)
				}
			}
		}
		if paymentBasics[basic.PredefinedID] && len(ct.Payments) == 0 {
			missing(ct.SourceRow, "payment", basic.PredefinedID)
		}
	}

	for _, basic := range x.Basics() {
		if basicsPredefinedTrigger[basic.Type] && basic.PredefinedID == "" {
			missing(basic.SourceRow, "predefinedBasicID", basic.Type)
		}
	}

	return findings
}

// checkPredefinedBasicCorrectness implements spec.md §4.7(f).
func (vv *ValueValidator) checkPredefinedBasicCorrectness(x *Extractor) []Finding {
	var findings []Finding
	wrong := func(row int, predefined string) {
		findings = append(findings, Finding{Check: CheckValue, Status: StatusError, ErrorKind: KindWrongPredefinedBasicUsed, SourceRow: row, HasRow: row != 0, Parameters: []string{predefined}})
	}

	eventOK := func(cat string) bool {
		return cat == "06" || cat == "13" || cat == "14" || (len(cat) > 0 && cat[0] == '6')
	}

	for _, ev := range x.Events() {
		basic, ok := x.LookupBasic(ev.BasicType)
		if !ok {
			continue
		}
		if !eventOK(basic.Category()) {
			wrong(ev.SourceRow, basic.PredefinedID)
		}
	}
	for _, ct := range x.CashTransactions() {
		basic, ok := x.LookupBasic(ct.TransType)
		if ok && basic.Category() != "11" {
			wrong(ct.SourceRow, basic.PredefinedID)
		}
		for _, p := range ct.Payments {
			pb, ok := x.LookupBasic(p.PaymentType)
			if ok && pb.Category() != "12" {
				wrong(p.SourceRow, pb.PredefinedID)
			}
		}
		for _, r := range ct.Raises {
			rb, ok := x.LookupBasic(r.RaiseType)
			if ok && rb.Category() != "10" {
				wrong(r.SourceRow, rb.PredefinedID)
			}
		}
	}
	return findings
}
