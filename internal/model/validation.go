package model

// RuleKind names the validation rule that produced an issue.
type RuleKind string

const (
	RuleBatch     RuleKind = "batch"
	RuleFilename  RuleKind = "filename"
	RuleExtension RuleKind = "extension"
	RuleSize      RuleKind = "size"
	RuleMIMEType  RuleKind = "mime_type"
	RuleQuery     RuleKind = "query"
)

// ValidationIssue is one failed rule for one file.
type ValidationIssue struct {
	Filename string   `json:"filename"`
	Rule     RuleKind `json:"rule"`
	Reason   string   `json:"reason"`
}

// ValidationResult is the verdict for a whole batch. Errors is empty iff Valid.
// Files holds the pre-upload records and is only populated for a valid batch.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationIssue `json:"errors"`
	Files  []UploadedFile    `json:"-"`
}
