package rules

import (
	"fmt"
	"strings"

	"github.com/de-tools/cloud-sentry/pkg/models/domain"
)

const (
	RulePublicAccessBlock = "public-access-block"
	RuleDefaultEncryption = "default-encryption"

	// Control metadata attached to every evidence payload.
	KSIID     = "KSI-SVC-04"
	ControlID = "CM-6"

	// PlaybookRef is the default remediation playbook for baseline failures.
	PlaybookRef = "remediation_playbooks/s3_public_access_fix.tf"
)

// Rule is one baseline check. Check is a pure predicate over the
// configuration snapshot; it never performs I/O.
type Rule struct {
	ID       string
	Severity domain.Severity
	Criteria string
	Check    func(domain.BucketConfig) (domain.Status, string)
}

// Registry returns the baseline rule set in stable evaluation order.
func Registry() []Rule {
	return []Rule{
		{
			ID:       RulePublicAccessBlock,
			Severity: domain.SeverityHigh,
			Criteria: "All Public Access Block settings MUST be enabled.",
			Check:    checkPublicAccessBlock,
		},
		{
			ID:       RuleDefaultEncryption,
			Severity: domain.SeverityHigh,
			Criteria: "Default server-side encryption MUST be enabled.",
			Check:    checkDefaultEncryption,
		},
	}
}

// Evaluate runs every registered rule against the snapshot and returns one
// result per rule, in registry order. Rules are independent: a failing rule
// never short-circuits the rest. A missing facet is a FAIL verdict, never an
// error; Evaluate only returns an error for malformed input, which callers
// treat as an internal-error condition.
func Evaluate(cfg domain.BucketConfig) ([]domain.EvaluationResult, error) {
	if cfg.Resource.ARN == "" {
		return nil, fmt.Errorf("bucket config has no resource ARN")
	}

	results := make([]domain.EvaluationResult, 0, len(Registry()))
	for _, rule := range Registry() {
		status, reason := rule.Check(cfg)
		results = append(results, domain.EvaluationResult{
			ResourceID: cfg.Resource.ARN,
			Rule:       rule.ID,
			Status:     status,
			Severity:   rule.Severity,
			Reason:     reason,
		})
	}
	return results, nil
}

// ErrorResults marks every registered rule as indeterminate for a resource.
// Used when evaluation itself failed, so the audit trail still lists the
// resource with a full per-rule breakdown.
func ErrorResults(res domain.Resource, err error) []domain.EvaluationResult {
	results := make([]domain.EvaluationResult, 0, len(Registry()))
	for _, rule := range Registry() {
		results = append(results, domain.EvaluationResult{
			ResourceID: res.ARN,
			Rule:       rule.ID,
			Status:     domain.StatusError,
			Severity:   rule.Severity,
			Reason:     fmt.Sprintf("evaluation failed: %v", err),
		})
	}
	return results
}

func checkPublicAccessBlock(cfg domain.BucketConfig) (domain.Status, string) {
	pab := cfg.PublicAccessBlock
	switch pab.State {
	case domain.FacetUnavailable:
		return domain.StatusError, fmt.Sprintf("public access block state could not be determined: %s", pab.Reason)
	case domain.FacetNotConfigured:
		return domain.StatusFail, "no public access block configuration is present"
	}

	var disabled []string
	if !pab.BlockPublicACLs {
		disabled = append(disabled, "BlockPublicAcls")
	}
	if !pab.IgnorePublicACLs {
		disabled = append(disabled, "IgnorePublicAcls")
	}
	if !pab.BlockPublicPolicy {
		disabled = append(disabled, "BlockPublicPolicy")
	}
	if !pab.RestrictPublicBuckets {
		disabled = append(disabled, "RestrictPublicBuckets")
	}
	if len(disabled) > 0 {
		return domain.StatusFail, fmt.Sprintf("public access block settings disabled: %s", strings.Join(disabled, ", "))
	}
	return domain.StatusPass, ""
}

func checkDefaultEncryption(cfg domain.BucketConfig) (domain.Status, string) {
	enc := cfg.Encryption
	switch enc.State {
	case domain.FacetUnavailable:
		return domain.StatusError, fmt.Sprintf("default encryption state could not be determined: %s", enc.Reason)
	case domain.FacetNotConfigured:
		return domain.StatusFail, "no default encryption configuration is present"
	}

	if len(enc.Algorithms) == 0 {
		return domain.StatusFail, "default encryption configuration has no encryption rules"
	}
	return domain.StatusPass, ""
}
