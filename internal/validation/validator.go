// Package validation decides whether an upload batch is accepted.
// A batch is accepted only when every file passes every rule.
package validation

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"docsearch/internal/config"
	"docsearch/internal/model"
)

// UnreadableError reports an I/O failure while reading an upload's bytes.
type UnreadableError struct {
	Filename string
	Err      error
}

func (e *UnreadableError) Error() string {
	return fmt.Sprintf("read %q: %v", e.Filename, e.Err)
}

func (e *UnreadableError) Unwrap() error { return e.Err }

// Validator applies an ordered rule set to every file of a batch.
type Validator struct {
	rules []Rule
}

// New returns a Validator applying rules in the given order.
func New(rules ...Rule) *Validator {
	return &Validator{rules: rules}
}

// FromConfig returns the standard rule set: filename, extension, size, MIME type.
func FromConfig(cfg config.UploadConfig) *Validator {
	return New(
		FilenameRule{},
		NewExtensionRule(cfg.AllowedExtensions),
		SizeRule{Max: cfg.MaxFileSize},
		NewMIMERule(cfg.AllowedMIMETypes),
	)
}

// Validate inspects every upload and collects one issue per failed rule per file.
// Only I/O failures are returned as an error; rule failures are reported in the result.
func (v *Validator) Validate(ctx context.Context, uploads []model.Upload) (model.ValidationResult, error) {
	if len(uploads) == 0 {
		return model.ValidationResult{
			Errors: []model.ValidationIssue{{Rule: model.RuleBatch, Reason: "no files provided"}},
		}, nil
	}

	var (
		issues []model.ValidationIssue
		files  = make([]model.UploadedFile, 0, len(uploads))
	)
	for _, u := range uploads {
		if err := ctx.Err(); err != nil {
			return model.ValidationResult{}, err
		}

		f, err := v.inspect(u)
		if err != nil {
			return model.ValidationResult{}, err
		}
		for _, rule := range v.rules {
			err := rule.Check(f)
			if err == nil {
				continue
			}
			issues = append(issues, model.ValidationIssue{
				Filename: u.Filename,
				Rule:     rule.Kind(),
				Reason:   err.Error(),
			})
			if b, ok := rule.(blocking); ok && b.Blocking() {
				break
			}
		}
		files = append(files, f)
	}

	if len(issues) > 0 {
		return model.ValidationResult{Errors: issues}, nil
	}
	return model.ValidationResult{Valid: true, Errors: []model.ValidationIssue{}, Files: files}, nil
}

// inspect builds the pre-upload record, sniffing the content type and measuring unknown sizes.
func (v *Validator) inspect(u model.Upload) (model.UploadedFile, error) {
	f := model.UploadedFile{
		ID:        uuid.NewString(),
		Filename:  u.Filename,
		Extension: ExtensionOf(u.Filename),
		SizeBytes: u.Size,
	}
	if u.Filename == "" || u.Open == nil {
		return f, nil
	}

	rc, err := u.Open()
	if err != nil {
		return f, &UnreadableError{Filename: u.Filename, Err: err}
	}
	defer rc.Close()

	mimeType, measured, err := sniff(rc, u.Size < 0)
	if err != nil {
		return f, &UnreadableError{Filename: u.Filename, Err: err}
	}
	f.MIMEType = mimeType
	if u.Size < 0 {
		f.SizeBytes = measured
	}
	return f, nil
}
