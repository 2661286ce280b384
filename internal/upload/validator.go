package upload

import (
	"fmt"
	"path/filepath"
	"strings"

	"medword/internal/model"
	"medword/internal/pkg/apperr"
	"medword/internal/pkg/pdfextract"
)

const DefaultMaxBytes = 50 << 20

var allowedExtensions = map[string]struct{}{
	".pdf":  {},
	".docx": {},
	".doc":  {},
	".txt":  {},
}

// Validator checks source files before they are sent to the backend.
type Validator struct {
	maxBytes int64
	// hasText is swapped in tests.
	hasText func([]byte) (bool, error)
}

func NewValidator(maxBytes int64) *Validator {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Validator{maxBytes: maxBytes, hasText: pdfextract.HasText}
}

func (v *Validator) Validate(fileName string, content []byte) error {
	const op = "validate upload"

	name := strings.TrimSpace(filepath.Base(fileName))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return apperr.Validation(op, "file name is required")
	}
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := allowedExtensions[ext]; !ok {
		return apperr.Validation(op, fmt.Sprintf("file type %q is not supported", ext))
	}
	if len(content) == 0 {
		return apperr.Validation(op, "file is empty")
	}
	if int64(len(content)) > v.maxBytes {
		return apperr.Validation(op, fmt.Sprintf("file %s is too large. Maximum size is %s", name, model.SizeLabel(v.maxBytes)))
	}

	if ext == ".pdf" {
		ok, err := v.hasText(content)
		if err != nil {
			return &apperr.Error{Kind: apperr.KindValidation, Op: op, Message: "file is not a readable PDF", Err: err}
		}
		if !ok {
			return apperr.Validation(op, "PDF contains no extractable text")
		}
	}
	return nil
}
