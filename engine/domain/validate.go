package domain

import "strings"

const maxTypeNameLen = 64

// ValidTypeName reports whether name is an acceptable normalized relationship
// type token: non-empty, bounded length, uppercase letters, digits and
// underscores, starting with a letter.
func ValidTypeName(name string) bool {
	if name == "" || len(name) > maxTypeNameLen {
		return false
	}
	if name[0] < 'A' || name[0] > 'Z' {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			continue
		}
		return false
	}
	return true
}

// ValidateTypeName returns a ValidationError for unacceptable names.
func ValidateTypeName(name string) error {
	if !ValidTypeName(name) {
		return NewValidationError("name", name, ErrInvalidTypeName)
	}
	return nil
}

// ValidateEdge checks a ConceptEdge at the ingestion gate.
func ValidateEdge(e ConceptEdge) error {
	if strings.TrimSpace(e.SourceID) == "" {
		return NewValidationError("source_id", e.SourceID, ErrInvalidEdge)
	}
	if strings.TrimSpace(e.TargetID) == "" {
		return NewValidationError("target_id", e.TargetID, ErrInvalidEdge)
	}
	if e.SourceID == e.TargetID {
		return NewValidationError("target_id", e.TargetID, ErrInvalidEdge)
	}
	if strings.TrimSpace(e.Type) == "" {
		return NewValidationError("type", e.Type, ErrInvalidEdge)
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		return NewValidationError("confidence", e.Type, ErrInvalidEdge)
	}
	return nil
}

// ValidateVocabularyType checks a record before it is written.
func ValidateVocabularyType(vt VocabularyType) error {
	if err := ValidateTypeName(vt.Name); err != nil {
		return err
	}
	if vt.CategorySource == CategorySourceBuiltin && !vt.IsBuiltin {
		return NewValidationError("category_source", string(vt.CategorySource), ErrInvalidTypeName)
	}
	if vt.CategoryConfidence < 0 || vt.CategoryConfidence > 1 {
		return NewValidationError("category_confidence", vt.Name, ErrInvalidTypeName)
	}
	if vt.UsageCount < 0 {
		return NewValidationError("usage_count", vt.Name, ErrInvalidTypeName)
	}
	return nil
}
