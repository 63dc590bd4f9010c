package estimate

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ashureev/estimabot/internal/domain"
)

var errMissingField = errors.New("missing field")

// decodeEstimate parses a completion strictly: exactly pdf_title and content,
// no other fields, no trailing data. Code fences around the object are
// tolerated.
func decodeEstimate(raw string) (domain.Estimate, error) {
	dec := json.NewDecoder(strings.NewReader(stripFence(raw)))
	dec.DisallowUnknownFields()

	var payload struct {
		Title   *string `json:"pdf_title"`
		Content *string `json:"content"`
	}
	if err := dec.Decode(&payload); err != nil {
		return domain.Estimate{}, fmt.Errorf("decode estimate: %w", err)
	}
	if dec.More() {
		return domain.Estimate{}, errors.New("decode estimate: trailing data after object")
	}
	if payload.Title == nil {
		return domain.Estimate{}, fmt.Errorf("decode estimate: %w: pdf_title", errMissingField)
	}
	if payload.Content == nil || strings.TrimSpace(*payload.Content) == "" {
		return domain.Estimate{}, fmt.Errorf("decode estimate: %w: content", errMissingField)
	}
	return domain.Estimate{
		Title:   strings.TrimSpace(*payload.Title),
		Content: *payload.Content,
	}, nil
}

func stripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

var (
	// **Label:** value, **Label**: value, optionally as a list item.
	labelLine = regexp.MustCompile(`^(\s*)([-*+]\s+|\d+[.)]\s+)?\*\*[^*\n]+?(?::\*\*|\*\*:)\s*(.*?)\s*$`)
	// [contacto], [fecha], $[monto]
	placeholder = regexp.MustCompile(`^\$?\s*\[[^\]]*\]\.?$`)
	blockStart  = regexp.MustCompile(`^(\s*)(?:[-*+]\s|\d+[.)]\s|\|)`)
)

// pruneEmptyFields removes label lines whose value is empty or a template
// placeholder. A label with no value that introduces a list or table is a
// section header and is kept; a list item only counts as one when the list
// below it is nested deeper.
func pruneEmptyFields(md string) string {
	lines := strings.Split(md, "\n")
	out := make([]string, 0, len(lines))
	for i, line := range lines {
		m := labelLine.FindStringSubmatch(line)
		if m == nil {
			out = append(out, line)
			continue
		}
		indent, marker, value := m[1], m[2], m[3]
		switch {
		case placeholder.MatchString(value):
			continue
		case value == "" && !introducesBlock(lines[i+1:], len(indent), marker != ""):
			continue
		}
		out = append(out, line)
	}
	return collapseBlankLines(strings.Join(out, "\n"))
}

// introducesBlock reports whether the next non-blank line opens a list or
// table body. Another label line is a sibling field, not a body.
func introducesBlock(rest []string, indent int, isItem bool) bool {
	for _, l := range rest {
		if strings.TrimSpace(l) == "" {
			continue
		}
		if labelLine.MatchString(l) {
			return false
		}
		m := blockStart.FindStringSubmatch(l)
		if m == nil {
			return false
		}
		return !isItem || len(m[1]) > indent
	}
	return false
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	blank := false
	for _, l := range lines {
		isBlank := strings.TrimSpace(l) == ""
		if isBlank && blank {
			continue
		}
		blank = isBlank
		out = append(out, l)
	}
	return strings.TrimSpace(strings.Join(out, "\n")) + "\n"
}

var unsafeFileChars = regexp.MustCompile(`[\\/:*?"<>|\x00-\x1f]+`)

const maxFileNameRunes = 100

// fileName derives a document file name from the estimate heading.
func fileName(heading string) string {
	name := unsafeFileChars.ReplaceAllString(heading, " ")
	name = strings.Join(strings.Fields(name), " ")
	name = strings.Trim(name, ". ")
	if r := []rune(name); len(r) > maxFileNameRunes {
		name = strings.TrimSpace(string(r[:maxFileNameRunes]))
	}
	if name == "" {
		name = "presupuesto"
	}
	return name + ".pdf"
}
