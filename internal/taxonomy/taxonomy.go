// Package taxonomy classifies free-form tag names into stable categories.
//
// Incoming tags are free text supplied by callers; the taxonomy gives
// browsing and filtering a fixed structure (tech_stack, problem_type,
// error_code) without requiring the caller to classify tags itself.
// Classification is deterministic and pure: the same name always yields
// the same category.
package taxonomy

import "strings"

// Category is the classification bucket for a tag.
type Category string

const (
	CategoryTechStack   Category = "tech_stack"
	CategoryProblemType Category = "problem_type"
	CategoryErrorCode   Category = "error_code"
)

// Valid reports whether the category is one of the known buckets.
func (c Category) Valid() bool {
	switch c {
	case CategoryTechStack, CategoryProblemType, CategoryErrorCode:
		return true
	}
	return false
}

// Categories returns all known categories in display order.
func Categories() []Category {
	return []Category{CategoryTechStack, CategoryProblemType, CategoryErrorCode}
}

// techKeywords are substrings indicating a technology or tool name.
// The list is fixed data, not user-configurable.
var techKeywords = []string{
	"react", "vue", "angular", "node", "python", "java", "go", "rust",
	"docker", "kubernetes", "aws", "gcp", "azure", "postgresql", "mysql",
	"mongodb", "redis", "typescript", "javascript", "css", "html",
}

// errorPatterns are substrings indicating an error identifier or status code.
var errorPatterns = []string{"error", "exception", "fail", "http", "status", "code"}

// Classify determines the category for a tag name.
//
// Matching is case-insensitive and evaluated in precedence order: technology
// keywords win over error patterns, which win over the problem_type default.
// A name composed entirely of digits is treated as an error code (HTTP
// status codes and the like).
func Classify(name string) Category {
	lower := strings.ToLower(name)

	for _, kw := range techKeywords {
		if strings.Contains(lower, kw) {
			return CategoryTechStack
		}
	}

	for _, p := range errorPatterns {
		if strings.Contains(lower, p) {
			return CategoryErrorCode
		}
	}
	if isAllDigits(name) {
		return CategoryErrorCode
	}

	return CategoryProblemType
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
