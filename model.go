package saftcr

import (
	"time"

	"github.com/shopspring/decimal"
)

// Basics is a row of the audit file's own code table, mapping a local code
// to a predefined national taxonomy id. See GLOSSARY "Predefined basic".
type Basics struct {
	Type         string // e.g. "EventType", "LineType", "PaymentType", ...
	ID           string
	Desc         string
	PredefinedID string
	SourceRow    int
}

// Category returns the first two digits of the predefined-basic code, or ""
// if the code is shorter than two digits.
func (b Basics) Category() string {
	if len(b.PredefinedID) < 2 {
		return ""
	}
	return b.PredefinedID[:2]
}

// Article is a row of the audit file's article (item) table.
type Article struct {
	ArtID     string
	GroupID   string
	Desc      string
	Date      time.Time
	SourceRow int
}

// Employee is a row of the audit file's employee table.
type Employee struct {
	EmpID     string
	Names     string
	Role      string
	RoleDesc  string
	SourceRow int
}

// Event is a positional record inside a cash transaction or report,
// referencing a Basics entry for its event type.
type Event struct {
	EventID   string
	BasicType string // raw code, resolved against Basics by the Value Validator
	TransID   string
	Report    string
	Datetime  time.Time
	SourceRow int
}

// EventReportType distinguishes the two closing-report flavors.
type EventReportType int

const (
	// ReportUnknown is the zero value.
	ReportUnknown EventReportType = iota
	// ReportZ is an end-of-shift closing report.
	ReportZ
	// ReportX is an intermediate interim report.
	ReportX
)

func (t EventReportType) String() string {
	switch t {
	case ReportZ:
		return "Z report"
	case ReportX:
		return "X report"
	default:
		return "unknown"
	}
}

// EventReport is a Z or X report for one register.
type EventReport struct {
	ReportID   string
	RegisterID string
	Type       EventReportType
	Datetime   time.Time

	CashSaleAmnt           decimal.Decimal
	GrandTotalCashSaleAmnt decimal.Decimal
	TipAmnt                decimal.Decimal
	ReturnNum              decimal.Decimal
	ReturnAmnt             decimal.Decimal
	DiscountNum            decimal.Decimal
	DiscountAmnt           decimal.Decimal

	// ReportDatetimeStart and GrandTotalCashSalePrevious carry the
	// register's running "previous-Z" state; populated by the Domain Model
	// Extractor while building the ordered report list for a register.
	ReportDatetimeStart        time.Time
	GrandTotalCashSalePrevious decimal.Decimal
	PrecedesFirstZ             bool
	SourceRow                  int
}

// CTLine is one line (item) of a cash transaction.
type CTLine struct {
	LineType  string
	ArtID     string
	Qnt       decimal.Decimal
	SourceRow int
}

// Payment is one payment leg of a cash transaction.
type Payment struct {
	PaymentType  string
	PaymentRefID string
	Amount       decimal.Decimal
	SourceRow    int
}

// Raise is an add-on amount on a cash transaction, e.g. a tip or rounding.
type Raise struct {
	RaiseType string
	Amount    decimal.Decimal
	SourceRow int
}

// CashTrans is one cash-register transaction.
type CashTrans struct {
	Nr         string // raw text as it appeared in the file
	NrValue    float64
	NrValid    bool // false when no number could be read from Nr (empty, contains a comma, or has no digits)
	TransID    string
	TransType  string
	RegisterID string
	AmntIncl   decimal.Decimal
	AmntExcl   decimal.Decimal
	Datetime   time.Time
	VoidTrans  bool
	TrainingID string
	Signature  string
	CertData   string
	EmpID      string
	TransDate  string
	TransTime  string
	RefID      string

	CTLines  []CTLine
	Payments []Payment
	Raises   []Raise

	SourceRow int
}

// IsTraining reports whether this transaction was flagged as a training
// transaction (excluded from reconciliation, §4.7a).
func (c CashTrans) IsTraining() bool {
	return c.TrainingID != ""
}

// Metadata is the singleton header information of the audit file.
type Metadata struct {
	CompanyID       string
	CompanyName     string
	SoftwareCompany string
	SoftwareDesc    string
	SoftwareVersion string
	HeaderCreated   time.Time
	Addresses       []string
}

// AuditFile is the root of the parsed, domain-extracted document. Nothing
// in this package populates it; the Extractor's getters supply each of
// these collections lazily instead.
type AuditFile struct {
	Metadata  Metadata
	Basics    []Basics
	Articles  []Article
	Employees []Employee
	Events    []Event
	Reports   []EventReport
	CashTrans []CashTrans
}
