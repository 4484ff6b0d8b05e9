package grading

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// RubricCriterion is one grading criterion with its share of the total marks.
type RubricCriterion struct {
	Description    string `json:"description"`
	AllocatedMarks int    `json:"allocatedMarks"`
}

// Rubric is the ordered criteria list for one request.
type Rubric struct {
	TotalMarks int               `json:"totalMarks"`
	Criteria   []RubricCriterion `json:"criteria"`
}

// AllocateMarks distributes totalMarks across criteria. Every criterion gets
// totalMarks/n and the first totalMarks%n criteria get one extra mark, so the
// allocations always sum to totalMarks.
func AllocateMarks(totalMarks int, criteria []string) (Rubric, error) {
	n := len(criteria)
	if n == 0 {
		return Rubric{}, fmt.Errorf("%w: no criteria", ErrInvalidRubric)
	}
	if totalMarks < 1 {
		return Rubric{}, fmt.Errorf("%w: total marks must be positive, got %d", ErrInvalidRubric, totalMarks)
	}

	base := totalMarks / n
	remainder := totalMarks % n

	rubric := Rubric{TotalMarks: totalMarks, Criteria: make([]RubricCriterion, n)}
	for i, description := range criteria {
		marks := base
		if i < remainder {
			marks++
		}
		rubric.Criteria[i] = RubricCriterion{Description: description, AllocatedMarks: marks}
	}

	return rubric, nil
}

// RenderPrompt builds the grading prompt. The output depends only on its
// arguments.
func RenderPrompt(subject string, rubric Rubric, bundle SourceBundle) string {
	if subject == "" {
		subject = "source"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Evaluate the following %s code and provide scores out of %d. Break down the score as follows:\n", subject, rubric.TotalMarks)
	for i, criterion := range rubric.Criteria {
		fmt.Fprintf(&b, "%d. %s: %d marks\n", i+1, criterion.Description, criterion.AllocatedMarks)
	}

	b.WriteString("\nCode:\n")
	for _, file := range bundle.Files {
		fmt.Fprintf(&b, "--- %s ---\n", file.Path)
		b.WriteString(file.Content)
		if !strings.HasSuffix(file.Content, "\n") {
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Provide a detailed analysis, individual scores for each criterion, and the total score out of %d in the following JSON format:\n\n", rubric.TotalMarks)
	b.WriteString("{\n")
	b.WriteString("  \"analysis\": \"Overall analysis of the code.\",\n")
	b.WriteString("  \"scores\": {\n")
	for i, criterion := range rubric.Criteria {
		separator := ","
		if i == len(rubric.Criteria)-1 {
			separator = ""
		}
		fmt.Fprintf(&b, "    %s: %d%s\n", quoteJSON(criterion.Description), criterion.AllocatedMarks, separator)
	}
	b.WriteString("  },\n")
	fmt.Fprintf(&b, "  \"totalScore\": %d\n", rubric.TotalMarks)
	b.WriteString("}")

	return b.String()
}

func quoteJSON(value string) string {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(value); err != nil {
		return fmt.Sprintf("%q", value)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
