// internal/catalog/validate.go
package catalog

import (
	"context"
	"fmt"
	"strings"

	"benefit-matcher/internal/common/logger"
	"benefit-matcher/internal/matching/eligibility"
	"benefit-matcher/internal/models"
)

// Issue is a problem found in one catalog entry. Fatal issues exclude the
// entry from the snapshot.
type Issue struct {
	BenefitID string `json:"benefitId"`
	Message   string `json:"message"`
	Fatal     bool   `json:"fatal"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.BenefitID, i.Message)
}

// Validate checks ids and eligibility logic. It returns the entries that may
// be matched against, in input order, and every issue found. The first entry
// with a given id wins.
func Validate(benefits []models.Benefit) ([]models.Benefit, []Issue) {
	valid := make([]models.Benefit, 0, len(benefits))
	var issues []Issue
	seen := make(map[string]bool, len(benefits))

	for i, b := range benefits {
		id := strings.TrimSpace(b.BenefitID)
		if id == "" {
			issues = append(issues, Issue{BenefitID: fmt.Sprintf("#%d", i), Message: "missing benefitId", Fatal: true})
			continue
		}
		if seen[id] {
			issues = append(issues, Issue{BenefitID: id, Message: "duplicate benefitId", Fatal: true})
			continue
		}
		seen[id] = true

		if b.Eligibility.HasLogic() {
			pred, err := eligibility.Compile(b.Eligibility.Logic)
			if err != nil {
				issues = append(issues, Issue{BenefitID: id, Message: err.Error(), Fatal: true})
				continue
			}
			for _, path := range pred.UnknownPaths() {
				issues = append(issues, Issue{
					BenefitID: id,
					Message:   fmt.Sprintf("unknown variable %q always resolves as missing", path),
				})
			}
		}
		valid = append(valid, b)
	}
	return valid, issues
}

// ValidatingStore drops entries that fail Validate and logs every issue.
type ValidatingStore struct {
	inner  Store
	logger logger.Logger
}

func NewValidatingStore(inner Store, log logger.Logger) *ValidatingStore {
	return &ValidatingStore{
		inner:  inner,
		logger: log.WithFields(map[string]interface{}{"component": "catalog"}),
	}
}

func (s *ValidatingStore) Load(ctx context.Context) ([]models.Benefit, error) {
	benefits, err := s.inner.Load(ctx)
	if err != nil {
		return nil, err
	}
	valid, issues := Validate(benefits)
	for _, issue := range issues {
		fields := map[string]interface{}{"benefitId": issue.BenefitID, "issue": issue.Message}
		if issue.Fatal {
			s.logger.Error("catalog entry rejected", fields)
		} else {
			s.logger.Warn("catalog entry has a problem", fields)
		}
	}
	s.logger.Info("catalog loaded", map[string]interface{}{
		"entries":  len(benefits),
		"valid":    len(valid),
		"rejected": len(benefits) - len(valid),
	})
	return valid, nil
}
