package chdata

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"
)

//go:embed concept_labels.json
var conceptLabelsJSON []byte

// conceptTables is the structure of concept_labels.json: tag-name aliases
// (renames between taxonomy versions) and row-label synonyms for the table
// fallback. The two mappings are a pair; adding a concept means updating
// both.
type conceptTables struct {
	Description string              `json:"description"`
	Version     string              `json:"version"`
	Aliases     map[string]string   `json:"aliases"`
	Labels      map[string][]string `json:"labels"`
}

var globalConcepts conceptTables

func init() {
	if err := json.Unmarshal(conceptLabelsJSON, &globalConcepts); err != nil {
		panic(fmt.Sprintf("failed to load concept_labels.json: %v", err))
	}
}

// CanonicalConcept resolves legacy tag names to the canonical concept key
// used for persistence. Unaliased names are returned unchanged.
func CanonicalConcept(name string) string {
	if canon, ok := globalConcepts.Aliases[name]; ok {
		return canon
	}
	return name
}

// LabelSynonyms returns the row-label substrings that identify a concept in
// legacy table layouts, or nil when the concept has no table mapping.
func LabelSynonyms(concept string) []string {
	return globalConcepts.Labels[concept]
}

// FactExtractor answers per-concept value lookups against one parsed
// document. Stage one is tag-based inline XBRL lookup through the resolved
// taxonomy binding; stage two scans table rows for a known label synonym.
// First success wins; every failure is contained to the single attempt.
type FactExtractor struct {
	doc     *ParsedDocument
	binding TaxonomyBinding
	logger  *slog.Logger
}

// NewFactExtractor builds an extractor for one document. The binding is
// resolved once by the caller and reused for every concept.
func NewFactExtractor(doc *ParsedDocument, binding TaxonomyBinding, logger *slog.Logger) *FactExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FactExtractor{doc: doc, binding: binding, logger: logger}
}

// ExtractAmount returns the numeric value for a financial-role concept, or
// an invalid NullDecimal when neither stage finds one.
func (e *FactExtractor) ExtractAmount(concept string) decimal.NullDecimal {
	if v, ok := e.tagAmount(concept); ok {
		return v
	}
	return e.tableAmount(concept)
}

// ExtractText returns the raw text of a business-role concept (e.g. a date
// string) from the document's hidden region, falling back to a table label
// match. Returns "" when nothing is found.
func (e *FactExtractor) ExtractText(concept string) string {
	if e.binding.BusinessBound() {
		want := e.binding.BusinessPrefix + ":" + concept
		for _, f := range e.doc.Facts {
			if f.NonNumeric && f.Hidden && f.Name == want {
				return f.Text
			}
		}
	}
	return e.tableText(concept)
}

// tagAmount is the tag-based stage: only runs when the core role is bound,
// and matches facts whose name is "{prefix}:{tag}" with the tag resolving to
// the requested canonical concept.
func (e *FactExtractor) tagAmount(concept string) (decimal.NullDecimal, bool) {
	if !e.binding.CoreBound() {
		return decimal.NullDecimal{}, false
	}

	for _, f := range e.doc.Facts {
		if f.NonNumeric {
			continue
		}
		prefix, local, ok := strings.Cut(f.Name, ":")
		if !ok || prefix != e.binding.CorePrefix {
			continue
		}
		if CanonicalConcept(local) != concept {
			continue
		}

		v, err := NormalizeAmount(f.Text, f.Sign)
		if err != nil {
			e.logger.Debug("fact conversion failed",
				"concept", concept, "raw", f.Text, "error", err)
			continue
		}
		if !v.Valid {
			// Sentinel ("-", "N/A"): tagged but carries no value.
			continue
		}
		return v, true
	}

	return decimal.NullDecimal{}, false
}

// tableAmount is the fallback stage: scan table rows for a first cell whose
// text case-insensitively contains a known label synonym, and parse the
// second cell. There is no sign marker here; the sign is whatever the
// literal text encodes.
func (e *FactExtractor) tableAmount(concept string) decimal.NullDecimal {
	synonyms := LabelSynonyms(concept)
	if len(synonyms) == 0 {
		return decimal.NullDecimal{}
	}

	for _, row := range e.doc.Rows {
		if len(row) < 2 {
			continue
		}
		label := strings.ToUpper(row[0])
		for _, syn := range synonyms {
			if !strings.Contains(label, syn) {
				continue
			}
			v, err := NormalizeAmount(row[1], "")
			if err != nil {
				e.logger.Debug("table cell conversion failed",
					"concept", concept, "label", row[0], "raw", row[1], "error", err)
				break
			}
			if v.Valid {
				return v
			}
			break // matched label with an empty cell; keep scanning rows
		}
	}

	return decimal.NullDecimal{}
}

// tableText returns the raw second-cell text of the first row matching a
// concept's label synonym.
func (e *FactExtractor) tableText(concept string) string {
	for _, row := range e.doc.Rows {
		if len(row) < 2 {
			continue
		}
		label := strings.ToUpper(row[0])
		for _, syn := range LabelSynonyms(concept) {
			if strings.Contains(label, syn) {
				return row[1]
			}
		}
	}
	return ""
}
