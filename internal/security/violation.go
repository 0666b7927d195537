package security

import "time"

// ViolationKind enumerates the taxonomy from spec §7.
type ViolationKind string

const (
	ViolationResourceExhausted ViolationKind = "ResourceExhausted"
	ViolationPolicyCspBlock    ViolationKind = "PolicyCspBlock"
	ViolationPolicyElementBlock ViolationKind = "PolicyElementBlock"
	ViolationPolicyAttrBlock   ViolationKind = "PolicyAttrBlock"
	ViolationPolicyScheme      ViolationKind = "PolicySchemeRefusal"
	ViolationPolicyMixedContent ViolationKind = "PolicyMixedContent"
	ViolationAttrTruncated     ViolationKind = "AttrTruncated"
	ViolationIntegrityFailure  ViolationKind = "IntegrityFailure"
)

// Violation is a structured record of a rejected request or stripped
// element (spec §4.2). No user data is recorded beyond origins.
type Violation struct {
	Kind        ViolationKind
	Directive   string // populated for CSP violations
	ResourceURL string
	DocumentURL string
	Summary     string
	Timestamp   time.Time
}

// ViolationSummary is the UI-facing projection of a Violation (spec §6
// "ViolationRecorded(ViolationSummary)").
type ViolationSummary struct {
	Kind      ViolationKind
	Directive string
	Summary   string
}

// ToSummary projects v for outbound UI events.
func (v Violation) ToSummary() ViolationSummary {
	return ViolationSummary{Kind: v.Kind, Directive: v.Directive, Summary: v.Summary}
}
