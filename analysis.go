package saftcr

import (
	"context"
	"fmt"

	"github.com/beevik/etree"

	"github.com/nemhandel/saftcr/logging"
)

// AnalysisContext bundles every shared, process-wide collaborator a file
// analysis needs: the read-only Schema Index and trust set, and the
// signature mode-discovery state, whose priority list is updated as
// signatures verify. Building one of these is expensive (it
// parses an XSD and a certificate directory); build it once per process
// and reuse it across files (spec.md §5 "Shared resources").
//
// Per spec.md §9's dependency-inversion note, no validator holds a pointer
// back to an orchestrator: Analyze threads this context, and a fresh
// findings sink, into each pass directly.
type AnalysisContext struct {
	Schema    *SchemaIndex
	Trust     *TrustStore
	Signature *SignatureValidator
	Logger    *logging.Logger
}

// NewAnalysisContext builds the process-wide state from an XSD document and
// a trust store. Pass nil for trust to skip certificate trust matching
// (every issuer will then be reported CERTIFICATE_NOT_TRUSTED_ISSUER).
func NewAnalysisContext(xsd *etree.Document, trust *TrustStore, logger *logging.Logger) (*AnalysisContext, error) {
	schema, err := BuildSchemaIndex(xsd)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &AnalysisContext{
		Schema:    schema,
		Trust:     trust,
		Signature: NewSignatureValidator(),
		Logger:    logger,
	}, nil
}

// Analyze runs the full five-pass pipeline against one file and returns its
// aggregated report. It never panics past this call (spec.md §7): any
// unexpected failure inside a single pass is caught and recorded as that
// check's "complete error" kind, so one broken pass cannot suppress the
// others. A read failure that survives Document Loader healing returns a
// non-nil error with no report, per spec.md §5 ("if the file is unreadable,
// returns without producing a report").
func (ac *AnalysisContext) Analyze(ctx context.Context, path string) (*Report, error) {
	var findings []Finding
	if namingFinding := ValidateNaming(path); namingFinding != nil {
		// Naming is independent of readability; still attempt the rest.
		findings = append(findings, *namingFinding)
	}

	load, err := LoadDocument(path, ac.Schema)
	if err != nil {
		return nil, fmt.Errorf("saftcr: %w", err)
	}

	findings = append(findings, load.Findings...)
	findings = append(findings, ac.runLoadedPasses(ctx, load)...)

	report := Aggregate(findings)
	return &report, nil
}

func (ac *AnalysisContext) runLoadedPasses(ctx context.Context, load *LoadResult) []Finding {
	var findings []Finding

	structureFindings, structureOK := ac.recover(func() []Finding {
		return RunStructureValidation(load.Doc, ac.Schema, load.LineMap)
	}, CheckStructure)
	findings = append(findings, structureFindings...)
	if !structureOK {
		findings = append(findings,
			Finding{Check: CheckCertificate, Status: StatusError, ErrorKind: KindCannotDoCheckReadError},
			Finding{Check: CheckSignature, Status: StatusError, ErrorKind: KindCannotDoCheckReadError},
		)
		return findings
	}

	extractor := NewExtractor(load.Doc, load.LineMap)
	companyID := extractor.Metadata().CompanyID

	certFindings, _ := ac.recover(func() []Finding {
		cv := NewCertificateValidator(ac.Trust)
		return cv.ValidateAll(ctx, extractor)
	}, CheckCertificate)
	findings = append(findings, certFindings...)

	sigFindings, _ := ac.recover(func() []Finding {
		return ac.Signature.ValidateAll(extractor, companyID)
	}, CheckSignature)
	findings = append(findings, sigFindings...)

	valueFindings, _ := ac.recover(func() []Finding {
		return NewValueValidator().ValidateAll(extractor)
	}, CheckValue)
	findings = append(findings, valueFindings...)

	return findings
}

// recover runs fn under a panic boundary, logging and converting a panic
// into that check's "complete error" sentinel finding instead of letting it
// propagate (spec.md §7).
func (ac *AnalysisContext) recover(fn func() []Finding, check Check) (findings []Finding, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ac.Logger.Errorw("validator panic recovered", "check", check.String(), "panic", r)
			findings = []Finding{{Check: check, Status: StatusError, ErrorKind: completeErrorKind(check)}}
			ok = false
		}
	}()
	return fn(), true
}

func completeErrorKind(c Check) ErrorKind {
	switch c {
	case CheckCertificate:
		return KindCertificateCouldNotRun
	case CheckSignature:
		return KindSignatureCompleteError
	case CheckValue:
		return KindValueCompleteError
	default:
		return KindCannotDoCheckReadError
	}
}
