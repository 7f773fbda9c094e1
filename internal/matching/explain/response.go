// internal/matching/explain/response.go
package explain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"benefit-matcher/internal/common/validation"
	"benefit-matcher/internal/models"
)

var ErrMalformedResponse = errors.New("MALFORMED_RESPONSE")

const responseSchemaJSON = `{
  "type": "object",
  "required": ["analyses"],
  "properties": {
    "analyses": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["benefitId", "matchScore", "hardRequirements"],
        "properties": {
          "benefitId": {"type": "string", "minLength": 1},
          "matchScore": {"type": "number"},
          "hardRequirements": {"type": "array", "items": {"$ref": "#/definitions/requirement"}},
          "softRequirements": {"type": "array", "items": {"$ref": "#/definitions/requirement"}},
          "positiveFactors": {"type": "array", "items": {"type": "string"}},
          "uncertainFactors": {"type": "array", "items": {"type": "string"}},
          "missingInformation": {"type": "array", "items": {"type": "string"}}
        }
      }
    }
  },
  "definitions": {
    "requirement": {
      "type": "object",
      "required": ["requirement", "status"],
      "properties": {
        "requirement": {"type": "string"},
        "status": {"type": "string"},
        "reasoning": {"type": "string"}
      }
    }
  }
}`

var responseSchema = validation.MustCompile("match-analysis-batch", responseSchemaJSON)

type rawAnalysis struct {
	BenefitID          string                         `json:"benefitId"`
	MatchScore         float64                        `json:"matchScore"`
	HardRequirements   []models.RequirementAssessment `json:"hardRequirements"`
	SoftRequirements   []models.RequirementAssessment `json:"softRequirements"`
	PositiveFactors    []string                       `json:"positiveFactors"`
	UncertainFactors   []string                       `json:"uncertainFactors"`
	MissingInformation []string                       `json:"missingInformation"`
}

// stripFences removes a surrounding markdown code fence, with or without a
// language tag.
func stripFences(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// parseResponse decodes and validates a model response. Both
// {"analyses":[...]} and a bare array are accepted.
func parseResponse(text string) ([]rawAnalysis, error) {
	body := []byte(stripFences(text))
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrMalformedResponse)
	}
	if body[0] == '[' {
		var buf bytes.Buffer
		buf.WriteString(`{"analyses":`)
		buf.Write(body)
		buf.WriteString(`}`)
		body = buf.Bytes()
	}

	if res := responseSchema.ValidateBytes(body); !res.Valid {
		return nil, fmt.Errorf("%w: %s", ErrMalformedResponse, strings.Join(res.GetErrorMessages(), "; "))
	}

	var envelope struct {
		Analyses []rawAnalysis `json:"analyses"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return envelope.Analyses, nil
}

func normalizeStatus(s string) string {
	switch strings.ToLower(strings.TrimSpace(strings.ReplaceAll(s, " ", "_"))) {
	case models.StatusMet:
		return models.StatusMet
	case models.StatusNotMet, "notmet", "not-met":
		return models.StatusNotMet
	}
	return models.StatusUnknown
}

func normalizeRequirements(in []models.RequirementAssessment) []models.RequirementAssessment {
	out := make([]models.RequirementAssessment, 0, len(in))
	for _, r := range in {
		r.Status = normalizeStatus(r.Status)
		out = append(out, r)
	}
	return out
}

func clampScore(v float64) int {
	if math.IsNaN(v) {
		return FallbackScore
	}
	return int(math.Round(math.Max(0, math.Min(100, v))))
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func toAnalysis(raw rawAnalysis, b models.Benefit) models.MatchAnalysis {
	return models.MatchAnalysis{
		BenefitID:          b.BenefitID,
		BenefitName:        b.DisplayName(),
		MatchScore:         clampScore(raw.MatchScore),
		HardRequirements:   normalizeRequirements(raw.HardRequirements),
		SoftRequirements:   normalizeRequirements(raw.SoftRequirements),
		PositiveFactors:    nonNil(raw.PositiveFactors),
		UncertainFactors:   nonNil(raw.UncertainFactors),
		MissingInformation: nonNil(raw.MissingInformation),
		Warnings:           b.Warnings,
	}
}
