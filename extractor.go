package saftcr

import (
	"strconv"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
)

// Extractor materialises the domain entities of model.go from a parsed (and
// possibly structurally repaired) document, lazily and cached for the life
// of one file analysis (spec.md §3 "Lifecycle", §9 "Lazy domain caches").
// Each getter is a once-computed field rather than a package-level cache,
// so concurrent analyses of different files never share state.
type Extractor struct {
	doc *etree.Document
	lm  *LineMap

	metadata  *Metadata
	basics    []Basics
	articles  []Article
	employees []Employee
	events    []Event
	reports   []EventReport
	cashTrans []CashTrans
}

// NewExtractor wraps a parsed document for lazy domain extraction.
func NewExtractor(doc *etree.Document, lm *LineMap) *Extractor {
	return &Extractor{doc: doc, lm: lm}
}

func (x *Extractor) root() *etree.Element {
	return x.doc.Root()
}

func (x *Extractor) row(el *etree.Element) (int, bool) {
	if el == nil {
		return 0, false
	}
	return x.lm.Row(el)
}

// Metadata returns the audit file's singleton header block.
func (x *Extractor) Metadata() Metadata {
	if x.metadata != nil {
		return *x.metadata
	}
	root := x.root()
	m := Metadata{}
	if root == nil {
		x.metadata = &m
		return m
	}
	if c := root.FindElement(".//company"); c != nil {
		m.CompanyID = textOf(c, "registrationNumber", "companyIdent")
		m.CompanyName = textOf(c, "name")
	}
	if h := root.FindElement(".//header"); h != nil {
		m.SoftwareCompany = textOf(h, "softwareCompanyName")
		m.SoftwareDesc = textOf(h, "softwareDesc")
		m.SoftwareVersion = textOf(h, "softwareVersion")
		m.HeaderCreated = parseDateTime(textOf(h, "auditFileDateCreated"), textOf(h, ""))
	}
	for _, addr := range root.FindElements(".//streetAddress") {
		m.Addresses = append(m.Addresses, elementText(addr))
	}
	x.metadata = &m
	return m
}

// Basics returns every Basics code-table row.
func (x *Extractor) Basics() []Basics {
	if x.basics != nil {
		return x.basics
	}
	root := x.root()
	for _, el := range findAllByTag(root, "basics") {
		row, _ := x.row(el)
		x.basics = append(x.basics, Basics{
			Type:         textOf(el, "type"),
			ID:           textOf(el, "id"),
			Desc:         textOf(el, "desc"),
			PredefinedID: textOf(el, "predefinedBasicID"),
			SourceRow:    row,
		})
	}
	return x.basics
}

// LookupBasic resolves a basic by id, falling back to desc, per spec.md
// §4.7(c).
func (x *Extractor) LookupBasic(idOrDesc string) (Basics, bool) {
	for _, b := range x.Basics() {
		if b.ID == idOrDesc {
			return b, true
		}
	}
	for _, b := range x.Basics() {
		if b.Desc == idOrDesc {
			return b, true
		}
	}
	return Basics{}, false
}

// Articles returns every Article row.
func (x *Extractor) Articles() []Article {
	if x.articles != nil {
		return x.articles
	}
	root := x.root()
	for _, el := range findAllByTag(root, "article") {
		row, _ := x.row(el)
		x.articles = append(x.articles, Article{
			ArtID:     textOf(el, "artID"),
			GroupID:   textOf(el, "groupID"),
			Desc:      textOf(el, "desc"),
			Date:      parseDate(textOf(el, "date")),
			SourceRow: row,
		})
	}
	return x.articles
}

// LookupArticle resolves an article by artID, per spec.md §4.7(d).
func (x *Extractor) LookupArticle(artID string) (Article, bool) {
	for _, a := range x.Articles() {
		if a.ArtID == artID {
			return a, true
		}
	}
	return Article{}, false
}

// Employees returns every Employee row.
func (x *Extractor) Employees() []Employee {
	if x.employees != nil {
		return x.employees
	}
	root := x.root()
	for _, el := range findAllByTag(root, "employee") {
		row, _ := x.row(el)
		x.employees = append(x.employees, Employee{
			EmpID:     textOf(el, "empID"),
			Names:     textOf(el, "names"),
			Role:      textOf(el, "role"),
			RoleDesc:  textOf(el, "roleDesc"),
			SourceRow: row,
		})
	}
	return x.employees
}

// Events returns every positional Event record.
func (x *Extractor) Events() []Event {
	if x.events != nil {
		return x.events
	}
	root := x.root()
	for _, el := range findAllByTag(root, "event") {
		row, _ := x.row(el)
		x.events = append(x.events, Event{
			EventID:   textOf(el, "eventID"),
			BasicType: textOf(el, "eventType"),
			TransID:   textOf(el, "transID"),
			Report:    textOf(el, "eventReport"),
			Datetime:  parseDateTime(textOf(el, "eventDatetime"), ""),
			SourceRow: row,
		})
	}
	return x.events
}

// EventReports returns every Z/X report, ordered by datetime within each
// register, with the running previous-Z carry fields populated.
func (x *Extractor) EventReports() []EventReport {
	if x.reports != nil {
		return x.reports
	}
	root := x.root()
	byRegister := make(map[string][]EventReport)
	for _, el := range findAllByTag(root, "eventReport") {
		row, _ := x.row(el)
		rtype := ReportUnknown
		switch textOf(el, "eventReportType") {
		case "Z", "Z report", "Zreport":
			rtype = ReportZ
		case "X", "X report", "Xreport":
			rtype = ReportX
		}
		r := EventReport{
			ReportID:               textOf(el, "reportID"),
			RegisterID:             textOf(el, "cashRegisterID"),
			Type:                   rtype,
			Datetime:               parseDateTime(textOf(el, "eventReportDatetime"), ""),
			CashSaleAmnt:           decimalOf(el, "totalCashSaleAmnt"),
			GrandTotalCashSaleAmnt: decimalOf(el, "grandTotalCashSaleAmnt"),
			TipAmnt:                decimalOf(el, "tipAmnt"),
			ReturnNum:              decimalOf(el, "reportReturnNum"),
			ReturnAmnt:             decimalOf(el, "reportReturnAmnt"),
			DiscountNum:            decimalOf(el, "reportDiscountNum"),
			DiscountAmnt:           decimalOf(el, "reportDiscountAmnt"),
			SourceRow:              row,
		}
		byRegister[r.RegisterID] = append(byRegister[r.RegisterID], r)
	}

	var all []EventReport
	for _, reports := range byRegister {
		sortReportsByTime(reports)
		var lastZ *EventReport
		seenZ := false
		for i := range reports {
			r := &reports[i]
			r.PrecedesFirstZ = !seenZ
			if lastZ != nil {
				r.ReportDatetimeStart = lastZ.Datetime
				r.GrandTotalCashSalePrevious = lastZ.GrandTotalCashSaleAmnt
			}
			if r.Type == ReportZ {
				seenZ = true
				z := *r
				lastZ = &z
			}
			all = append(all, *r)
		}
	}
	x.reports = all
	return x.reports
}

// CashTransactions returns every cash transaction, with nested lines,
// payments, and raises, in document order.
func (x *Extractor) CashTransactions() []CashTrans {
	if x.cashTrans != nil {
		return x.cashTrans
	}
	root := x.root()
	for _, el := range findAllByTag(root, "cashtransaction") {
		row, _ := x.row(el)
		amntTp := textOf(el, "amntTp")
		incl := decimalOf(el, "transAmntIn")
		excl := decimalOf(el, "transAmntEx")
		if amntTp == "D" {
			incl = incl.Neg()
			excl = excl.Neg()
		}
		nrText := textOf(el, "nr")
		nrVal, nrValid := parseNr(nrText)

		ct := CashTrans{
			Nr:         nrText,
			NrValue:    nrVal,
			NrValid:    nrValid,
			TransID:    textOf(el, "transID"),
			TransType:  textOf(el, "transType"),
			RegisterID: textOf(el, "cashRegisterID"),
			AmntIncl:   incl,
			AmntExcl:   excl,
			Datetime:   parseDateTime(textOf(el, "transDate"), textOf(el, "transTime")),
			VoidTrans:  textOf(el, "voidTrans") == "true" || textOf(el, "voidTrans") == "1",
			TrainingID: textOf(el, "trainingID"),
			Signature:  textOf(el, "signature"),
			CertData:   textOf(el, "certificateData"),
			EmpID:      textOf(el, "empID"),
			TransDate:  textOf(el, "transDate"),
			TransTime:  textOf(el, "transTime"),
			RefID:      textOf(el, "refID"),
			SourceRow:  row,
		}

		for _, l := range el.FindElements(".//ctLine") {
			ct.CTLines = append(ct.CTLines, CTLine{
				LineType:  textOf(l, "lineType"),
				ArtID:     textOf(l, "artID"),
				Qnt:       decimalOf(l, "qnt"),
				SourceRow: rowOf(x, l),
			})
		}
		for _, p := range el.FindElements(".//payment") {
			ct.Payments = append(ct.Payments, Payment{
				PaymentType:  textOf(p, "paymentType"),
				PaymentRefID: textOf(p, "paymentRefID"),
				Amount:       decimalOf(p, "amount"),
				SourceRow:    rowOf(x, p),
			})
		}
		for _, r := range el.FindElements(".//raise") {
			ct.Raises = append(ct.Raises, Raise{
				RaiseType: textOf(r, "raiseType"),
				Amount:    decimalOf(r, "amount"),
				SourceRow: rowOf(x, r),
			})
		}

		x.cashTrans = append(x.cashTrans, ct)
	}
	return x.cashTrans
}

func rowOf(x *Extractor, el *etree.Element) int {
	row, _ := x.row(el)
	return row
}

// --- small etree helpers shared by the extractor ---

func findAllByTag(root *etree.Element, tag string) []*etree.Element {
	if root == nil {
		return nil
	}
	return root.FindElements(".//" + tag)
}

func textOf(el *etree.Element, tags ...string) string {
	if el == nil {
		return ""
	}
	for _, tag := range tags {
		if tag == "" {
			continue
		}
		if child := el.SelectElement(tag); child != nil {
			return elementText(child)
		}
	}
	if len(tags) == 0 {
		return elementText(el)
	}
	return ""
}

func elementText(el *etree.Element) string {
	if el == nil {
		return ""
	}
	return el.Text()
}

func decimalOf(el *etree.Element, tag string) decimal.Decimal {
	s := textOf(el, tag)
	if s == "" || IsSentinel(s) {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t
	}
	return time.Time{}
}

// parseDateTime combines a date and (optional) time string into one
// time.Time. The source format's treatment of Danish daylight-saving time
// is inconsistent; this keeps the ambiguity rather than resolving it,
// per spec.md §9 open question (a) — times are parsed as written, in UTC.
func parseDateTime(date, clock string) time.Time {
	if date == "" {
		return time.Time{}
	}
	layout := "2006-01-02"
	value := date
	if clock != "" {
		layout = "2006-01-02T15:04:05"
		value = date
		if len(date) == 10 {
			value = date + "T" + clock
		}
	}
	if t, err := time.Parse(layout, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, date); err == nil {
		return t
	}
	return parseDate(date)
}

// parseNr parses a transaction's nr field per spec.md §4.7(b): a pure
// numeric string parses normally; a comma marks a locale-formatted number
// (the caller treats this as VALUE_DOES_NOT_CONTAIN_NR and substitutes 0);
// otherwise the longest digit run is extracted.
func parseNr(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, true
	}
	if indexOfByte(s, ',') >= 0 {
		return 0, false
	}
	run := longestDigitRun(s)
	if run == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(run, 64)
	return v, err == nil
}

func indexOfByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

func longestDigitRun(s string) string {
	best, cur := "", ""
	for _, r := range s {
		if r >= '0' && r <= '9' {
			cur += string(r)
			if len(cur) > len(best) {
				best = cur
			}
		} else {
			cur = ""
		}
	}
	return best
}

func sortReportsByTime(reports []EventReport) {
	for i := 1; i < len(reports); i++ {
		for j := i; j > 0 && reports[j].Datetime.Before(reports[j-1].Datetime); j-- {
			reports[j], reports[j-1] = reports[j-1], reports[j]
		}
	}
}
