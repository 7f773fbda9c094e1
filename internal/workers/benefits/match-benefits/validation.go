// internal/workers/benefits/match-benefits/validation.go
package matchbenefits

import "benefit-matcher/internal/common/validation"

// inputSchemaJSON covers the job envelope. Profile leaves are typed by
// decoding into models.UserProfile.
const inputSchemaJSON = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["profile"],
	"properties": {
		"requestId": {"type": "string", "maxLength": 128},
		"profile": {
			"type": "object",
			"properties": {
				"personal": {"type": "object"},
				"children": {"type": "object"},
				"housing": {"type": "object"},
				"financial": {"type": "object"},
				"work": {"type": "object"},
				"health": {"type": "object"},
				"specialCircumstances": {"type": "object"}
			}
		},
		"catalog": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["benefitId"],
				"properties": {
					"benefitId": {"type": "string", "minLength": 1}
				}
			}
		},
		"options": {
			"type": "object",
			"properties": {
				"rerank": {"type": "boolean"}
			}
		}
	}
}`

var inputSchema = validation.MustCompile("match-benefits-input", inputSchemaJSON)

func GetInputSchema() *validation.Schema {
	return inputSchema
}
