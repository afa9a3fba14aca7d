package reason

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/c360studio/semlink/sparql"
)

// DefaultMaxRefinements bounds RefineQueryWithOntology when the caller
// passes zero.
const DefaultMaxRefinements = 3

// ErrNoOntology is returned when neither ontology text nor a path is given.
var ErrNoOntology = errors.New("ontology_ttl or ontology_path is required")

// OntologyValidation is the result of ValidateQueryAgainstOntology.
type OntologyValidation struct {
	Valid       bool        `json:"valid"`
	Issues      []string    `json:"issues"`
	Suggestions []string    `json:"suggestions"`
	Violations  []Violation `json:"violations,omitempty"`
}

// LoadOntology returns ontologyTTL, or the contents of ontologyPath when
// the text is empty.
func LoadOntology(ontologyTTL, ontologyPath string) (string, error) {
	if ontologyTTL != "" {
		return ontologyTTL, nil
	}
	if ontologyPath == "" {
		return "", ErrNoOntology
	}
	data, err := os.ReadFile(ontologyPath)
	if err != nil {
		return "", fmt.Errorf("read ontology: %w", err)
	}
	return string(data), nil
}

// ValidateQueryAgainstOntology runs the OBQC checks for query. Each
// violation becomes an issue; suggestions come from the fix guidance for
// those issues.
func ValidateQueryAgainstOntology(ctx context.Context, query, ontologyTTL, ontologyPath string) (*OntologyValidation, error) {
	ont, err := LoadOntology(ontologyTTL, ontologyPath)
	if err != nil {
		return nil, err
	}
	violations, err := checkQuery(ctx, query, ont)
	if err != nil {
		return nil, err
	}

	res := &OntologyValidation{
		Valid:       len(violations) == 0,
		Issues:      []string{},
		Suggestions: []string{},
		Violations:  violations,
	}
	for _, v := range violations {
		res.Issues = append(res.Issues, v.String())
	}
	if !res.Valid {
		fixes := sparql.GenerateFixes(query, sparql.Validation{Violations: res.Issues})
		res.Suggestions = fixes.Guidance
	}
	return res, nil
}

// RefinementStep records one round of RefineQueryWithOntology.
type RefinementStep struct {
	Type         string   `json:"type"`
	IssuesFound  int      `json:"issues_found"`
	FixedQuery   string   `json:"fixed_query"`
	Explanations []string `json:"explanations"`
	Guidance     []string `json:"guidance"`
}

// Refinement step types.
const (
	StepPatternCheck       = "pattern_check"
	StepOntologyValidation = "ontology_validation"
)

// Refinement is the result of RefineQueryWithOntology.
type Refinement struct {
	Success            bool             `json:"success"`
	OriginalQuery      string           `json:"original_query"`
	RefinedQuery       string           `json:"refined_query"`
	Iterations         []RefinementStep `json:"iterations"`
	IsValid            bool             `json:"is_valid"`
	RefinementComplete bool             `json:"refinement_complete"`
	IterationsCount    int              `json:"iterations_count"`
	Message            string           `json:"message,omitempty"`
}

// RefineQueryWithOntology first applies pattern fixes such as a missing
// LIMIT, then alternates ontology validation and fix generation until the
// query validates, no fix applies, or maxIterations rounds have run.
func RefineQueryWithOntology(ctx context.Context, query, ontologyTTL, ontologyPath string, maxIterations int) (*Refinement, error) {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxRefinements
	}
	ont, err := LoadOntology(ontologyTTL, ontologyPath)
	if err != nil {
		return nil, err
	}

	res := &Refinement{
		Success:       true,
		OriginalQuery: query,
		RefinedQuery:  query,
		Iterations:    []RefinementStep{},
	}
	current := query
	iterations := 0

	if check := sparql.CheckPatterns(current); len(check.Warnings) > 0 {
		fixes := sparql.GenerateFixes(current, sparql.Validation{Warnings: check.Warnings})
		if fixes.NeedsFixes {
			current = fixes.FixedQuery
			res.Iterations = append(res.Iterations, RefinementStep{
				Type:         StepPatternCheck,
				IssuesFound:  len(check.Warnings),
				FixedQuery:   current,
				Explanations: fixes.FixExplanations,
				Guidance:     fixes.Guidance,
			})
			iterations++
		}
	}

	for iterations < maxIterations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := ValidateQueryAgainstOntology(ctx, current, ont, "")
		if err != nil {
			return nil, err
		}
		if v.Valid {
			res.IsValid = true
			res.RefinementComplete = true
			break
		}
		fixes := sparql.GenerateFixes(current, sparql.Validation{Violations: v.Issues})
		if !fixes.NeedsFixes {
			break
		}
		current = fixes.FixedQuery
		res.Iterations = append(res.Iterations, RefinementStep{
			Type:         StepOntologyValidation,
			IssuesFound:  len(v.Issues),
			FixedQuery:   current,
			Explanations: fixes.FixExplanations,
			Guidance:     fixes.Guidance,
		})
		iterations++
	}

	res.RefinedQuery = current
	res.IterationsCount = iterations
	if iterations >= maxIterations && !res.IsValid {
		res.RefinementComplete = false
		res.Message = fmt.Sprintf("Reached maximum iterations (%d) without fully resolving all issues.", maxIterations)
	}
	return res, nil
}
