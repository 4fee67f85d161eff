package fhirstore

import (
	"encoding/json"

	"github.com/fhirstore/gofhir/pkg/store/storeerr"
	"github.com/fhirstore/gofhir/pkg/validator"
)

// operationOutcomeIssue mirrors pkg/validator.ValidationIssue, per
// SPEC_FULL.md §7a: the store's error-to-outcome mapping reuses that shape
// instead of inventing a second one.
type operationOutcomeIssue struct {
	Severity    string   `json:"severity"`
	Code        string   `json:"code"`
	Diagnostics string   `json:"diagnostics,omitempty"`
	Expression  []string `json:"expression,omitempty"`
}

type operationOutcome struct {
	ResourceType string                  `json:"resourceType"`
	Issue        []operationOutcomeIssue `json:"issue"`
}

// outcomeFromError builds the single-issue OperationOutcome spec.md §7
// requires on every non-2xx response.
func outcomeFromError(err error) []byte {
	kind := storeerr.KindOf(err)
	severity := validator.SeverityError
	if kind == storeerr.KindInternal {
		severity = validator.SeverityFatal
	}
	issue := operationOutcomeIssue{
		Severity:    severity,
		Code:        kind.IssueCode(),
		Diagnostics: err.Error(),
	}
	out := operationOutcome{ResourceType: "OperationOutcome", Issue: []operationOutcomeIssue{issue}}
	data, _ := json.Marshal(out)
	return data
}

// outcomeFromValidation converts a *validator.ValidationResult into one
// OperationOutcome issue per finding, per SPEC_FULL.md §7a.
func outcomeFromValidation(result *validator.ValidationResult) []byte {
	out := operationOutcome{ResourceType: "OperationOutcome"}
	for _, iss := range result.Issues {
		out.Issue = append(out.Issue, operationOutcomeIssue{
			Severity:    iss.Severity,
			Code:        iss.Code,
			Diagnostics: iss.Diagnostics,
			Expression:  iss.Expression,
		})
	}
	if len(out.Issue) == 0 {
		out.Issue = []operationOutcomeIssue{{
			Severity: validator.SeverityInformation,
			Code:     "informational",
			Diagnostics: "validation successful",
		}}
	}
	data, _ := json.Marshal(out)
	return data
}

// outcomeOK builds the minimal success OperationOutcome $validate returns
// when no validator is configured (well-formedness-only fallback).
func outcomeOK(message string) []byte {
	out := operationOutcome{
		ResourceType: "OperationOutcome",
		Issue: []operationOutcomeIssue{{
			Severity:    validator.SeverityInformation,
			Code:        "informational",
			Diagnostics: message,
		}},
	}
	data, _ := json.Marshal(out)
	return data
}
