package ingest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/borelli28/SIEM/core"

	"gopkg.in/yaml.v3"
)

// sigmaRule is the subset of a Sigma YAML detection rule the importer
// understands: a flat selection of field/value equality terms combined
// with AND.
type sigmaRule struct {
	Title       string               `yaml:"title"`
	Description string               `yaml:"description"`
	Level       string               `yaml:"level"`
	Detection   map[string]yaml.Node `yaml:"detection"`
}

// ParseSigmaRule converts Sigma YAML into a detection rule for the given
// account. The selection terms become an AND-chained query expression.
func ParseSigmaRule(data []byte, accountID string) (*core.Rule, error) {
	var sr sigmaRule
	if err := yaml.Unmarshal(data, &sr); err != nil {
		return nil, fmt.Errorf("invalid Sigma YAML: %w", err)
	}
	if sr.Title == "" {
		return nil, fmt.Errorf("Sigma rule missing title")
	}

	selection, ok := sr.Detection["selection"]
	if !ok {
		return nil, fmt.Errorf("Sigma rule missing detection.selection")
	}

	var terms map[string]string
	if err := selection.Decode(&terms); err != nil {
		return nil, fmt.Errorf("unsupported detection.selection shape: %w", err)
	}
	if len(terms) == 0 {
		return nil, fmt.Errorf("Sigma rule has empty detection.selection")
	}

	condition, err := sigmaCondition(terms)
	if err != nil {
		return nil, err
	}

	return core.NewRule(accountID, sr.Title, sr.Description, condition,
		core.NormalizeSeverity(sr.Level)), nil
}

// sigmaCondition renders selection terms as an AND-chained query. Fields are
// sorted so the same rule always yields the same condition text.
func sigmaCondition(terms map[string]string) (string, error) {
	fields := make([]string, 0, len(terms))
	for field := range terms {
		if !core.IsQueryableField(field) {
			return "", fmt.Errorf("Sigma selection field %q is not queryable", field)
		}
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		value := strings.ReplaceAll(terms[field], `"`, "")
		parts = append(parts, fmt.Sprintf(`%s = "%s"`, field, value))
	}
	return strings.Join(parts, " AND "), nil
}
