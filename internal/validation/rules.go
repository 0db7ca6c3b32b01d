package validation

import (
	"errors"
	"fmt"
	"strings"

	"docsearch/internal/model"
)

// Rule is one independent predicate over an inspected file.
// Check returns nil when the file satisfies the rule; the error text becomes the issue reason.
type Rule interface {
	Kind() model.RuleKind
	Check(f model.UploadedFile) error
}

// blocking is implemented by rules whose failure makes the remaining rules meaningless for that file.
type blocking interface {
	Blocking() bool
}

// FilenameRule requires a non-empty client filename.
type FilenameRule struct{}

func (FilenameRule) Kind() model.RuleKind { return model.RuleFilename }

func (FilenameRule) Blocking() bool { return true }

func (FilenameRule) Check(f model.UploadedFile) error {
	if strings.TrimSpace(f.Filename) == "" {
		return errors.New("invalid file name")
	}
	return nil
}

// ExtensionRule accepts files whose extension is in the allow-list.
type ExtensionRule struct {
	allowed map[string]struct{}
}

// NewExtensionRule builds an ExtensionRule; entries are matched case-insensitively, with or without a leading dot.
func NewExtensionRule(allowed []string) ExtensionRule {
	return ExtensionRule{allowed: toSet(allowed, func(s string) string {
		return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".")
	})}
}

func (ExtensionRule) Kind() model.RuleKind { return model.RuleExtension }

func (r ExtensionRule) Check(f model.UploadedFile) error {
	if _, ok := r.allowed[f.Extension]; ok {
		return nil
	}
	if f.Extension == "" {
		return fmt.Errorf("unsupported file type: %s has no extension", f.Filename)
	}
	return fmt.Errorf("unsupported file type: extension %q is not allowed", f.Extension)
}

// SizeRule rejects files larger than Max bytes.
type SizeRule struct {
	Max int64
}

func (SizeRule) Kind() model.RuleKind { return model.RuleSize }

func (r SizeRule) Check(f model.UploadedFile) error {
	if f.SizeBytes > r.Max {
		return fmt.Errorf("file too large: %d bytes exceeds the %d byte limit", f.SizeBytes, r.Max)
	}
	return nil
}

// MIMERule accepts files whose sniffed content type is in the allow-list.
type MIMERule struct {
	allowed map[string]struct{}
}

// NewMIMERule builds a MIMERule; entries are compared without parameters.
func NewMIMERule(allowed []string) MIMERule {
	return MIMERule{allowed: toSet(allowed, baseMediaType)}
}

func (MIMERule) Kind() model.RuleKind { return model.RuleMIMEType }

func (r MIMERule) Check(f model.UploadedFile) error {
	if _, ok := r.allowed[f.MIMEType]; ok {
		return nil
	}
	return fmt.Errorf("unsupported MIME type: %s", f.MIMEType)
}

// ExtensionOf returns the lowercase substring after the last dot, or "" when there is none.
func ExtensionOf(filename string) string {
	i := strings.LastIndex(filename, ".")
	if i < 0 {
		return ""
	}
	return strings.ToLower(filename[i+1:])
}

func toSet(values []string, norm func(string) string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if n := norm(v); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}
