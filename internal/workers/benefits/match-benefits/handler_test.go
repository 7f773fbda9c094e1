package matchbenefits

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	apperrors "benefit-matcher/internal/common/errors"
	"benefit-matcher/internal/common/logger"
	"benefit-matcher/internal/matching"
	"benefit-matcher/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeStore struct {
	benefits []models.Benefit
	err      error
	calls    int
}

func (s *fakeStore) Load(context.Context) ([]models.Benefit, error) {
	s.calls++
	return s.benefits, s.err
}

func createTestConfig() *Config {
	return &Config{
		Timeout:        5 * time.Second,
		MaxCatalogSize: 10,
	}
}

func newTestHandler(t *testing.T, store *fakeStore) *Handler {
	cfg := matching.DefaultConfig()
	cfg.Explain.BatchInterval = 0
	m := matching.NewMatcher(cfg, nil, nil, nil, logger.NewTestLogger(t))
	if store == nil {
		return NewHandler(createTestConfig(), m, nil, nil, logger.NewTestLogger(t))
	}
	return NewHandler(createTestConfig(), m, store, nil, logger.NewTestLogger(t))
}

func createTestProfile() *models.UserProfile {
	return &models.UserProfile{
		Personal: models.PersonalInfo{
			Age:          models.Ptr(30),
			Municipality: models.Ptr("Utrecht"),
		},
		Housing: models.HousingInfo{
			Situation:    models.Ptr("rent"),
			RentBaseOnly: models.Ptr(650.0),
		},
		Financial: models.FinancialInfo{
			AnnualIncomeGross: models.Ptr(20000.0),
		},
	}
}

func createTestCatalog() []models.Benefit {
	return []models.Benefit{
		{
			BenefitID: "huurtoeslag",
			NameNL:    "Huurtoeslag",
			Category:  "housing",
			Eligibility: models.EligibilityCriteria{
				Logic: json.RawMessage(`{"<=": [{"var": "financial.annualIncomeGross"}, 35000]}`),
			},
		},
		{
			BenefitID: "aow",
			NameNL:    "AOW",
			Category:  "pension",
			Eligibility: models.EligibilityCriteria{
				Logic: json.RawMessage(`{">=": [{"var": "personal.age"}, 67]}`),
			},
		},
	}
}

func assertCode(t *testing.T, err error, code apperrors.ErrorCode) *apperrors.StandardError {
	t.Helper()
	var stdErr *apperrors.StandardError
	require.True(t, stderrors.As(err, &stdErr), "expected StandardError, got %v", err)
	assert.Equal(t, code, stdErr.Code)
	return stdErr
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_InlineCatalog(t *testing.T) {
	store := &fakeStore{}
	h := newTestHandler(t, store)

	output, err := h.Execute(context.Background(), &Input{
		RequestID: "req-1",
		Profile:   createTestProfile(),
		Catalog:   createTestCatalog(),
	})

	require.NoError(t, err)
	assert.Equal(t, "req-1", output.RequestID)
	require.Len(t, output.Matches, 1)
	assert.Equal(t, "huurtoeslag", output.Matches[0].BenefitID)
	assert.Equal(t, 1, output.Rejected.TotalRejected)
	assert.NotEmpty(t, output.Diagnostics)
	assert.Equal(t, 0, store.calls)
}

func TestHandler_Execute_LoadsCatalogFromStore(t *testing.T) {
	store := &fakeStore{benefits: createTestCatalog()}
	h := newTestHandler(t, store)

	output, err := h.Execute(context.Background(), &Input{Profile: createTestProfile()})

	require.NoError(t, err)
	assert.Equal(t, 1, store.calls)
	assert.NotEmpty(t, output.RequestID)
	require.Len(t, output.Matches, 1)
}

func TestHandler_Execute_EmptyInlineCatalogIsNotAnError(t *testing.T) {
	store := &fakeStore{benefits: createTestCatalog()}
	h := newTestHandler(t, store)

	output, err := h.Execute(context.Background(), &Input{
		Profile: createTestProfile(),
		Catalog: []models.Benefit{},
	})

	require.NoError(t, err)
	assert.Empty(t, output.Matches)
	assert.Equal(t, 0, output.Rejected.TotalRejected)
	assert.Equal(t, 0, store.calls)
}

func TestHandler_Execute_InlineCatalogIsValidated(t *testing.T) {
	h := newTestHandler(t, nil)
	benefits := append(createTestCatalog(), models.Benefit{BenefitID: "huurtoeslag", NameNL: "Duplicate"})

	output, err := h.Execute(context.Background(), &Input{
		Profile: createTestProfile(),
		Catalog: benefits,
	})

	require.NoError(t, err)
	require.Len(t, output.Matches, 1)
	assert.Equal(t, "Huurtoeslag", output.Matches[0].BenefitName)
}

// ==========================
// Error Mapping Tests
// ==========================

func TestHandler_Execute_Errors(t *testing.T) {
	tooMany := make([]models.Benefit, 11)
	for i := range tooMany {
		tooMany[i] = models.Benefit{BenefitID: fmt.Sprintf("b-%d", i)}
	}

	tests := []struct {
		name      string
		store     *fakeStore
		input     *Input
		wantCode  apperrors.ErrorCode
		retryable bool
	}{
		{
			name:     "missing profile",
			store:    &fakeStore{},
			input:    &Input{Catalog: createTestCatalog()},
			wantCode: apperrors.ErrCodeInvalidMatchInput,
		},
		{
			name:     "no catalog and no store",
			input:    &Input{Profile: createTestProfile()},
			wantCode: apperrors.ErrCodeInvalidMatchInput,
		},
		{
			name:     "inline catalog too large",
			store:    &fakeStore{},
			input:    &Input{Profile: createTestProfile(), Catalog: tooMany},
			wantCode: apperrors.ErrCodeInvalidMatchInput,
		},
		{
			name:      "store failure",
			store:     &fakeStore{err: stderrors.New("connection refused")},
			input:     &Input{Profile: createTestProfile()},
			wantCode:  apperrors.ErrCodeCatalogLoadFailed,
			retryable: true,
		},
		{
			name:      "store deadline",
			store:     &fakeStore{err: fmt.Errorf("query benefits: %w", context.DeadlineExceeded)},
			input:     &Input{Profile: createTestProfile()},
			wantCode:  apperrors.ErrCodeMatchTimeout,
			retryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, tt.store)

			output, err := h.Execute(context.Background(), tt.input)

			require.Error(t, err)
			assert.Nil(t, output)
			stdErr := assertCode(t, err, tt.wantCode)
			assert.Equal(t, tt.retryable, stdErr.Retryable)
		})
	}
}

// ==========================
// Input Parsing Tests
// ==========================

func TestParseInput(t *testing.T) {
	tests := []struct {
		name      string
		variables string
		wantErr   bool
		check     func(t *testing.T, input *Input)
	}{
		{
			name: "full input",
			variables: `{
				"requestId": "req-9",
				"profile": {"personal": {"age": 30}, "financial": {"annualIncomeGross": 20000}},
				"catalog": [{"benefitId": "huurtoeslag", "nameNL": "Huurtoeslag"}],
				"options": {"rerank": false},
				"processVariable": "ignored"
			}`,
			check: func(t *testing.T, input *Input) {
				assert.Equal(t, "req-9", input.RequestID)
				assert.Equal(t, 30, *input.Profile.Personal.Age)
				require.Len(t, input.Catalog, 1)
				require.NotNil(t, input.Options.Rerank)
				assert.False(t, *input.Options.Rerank)
			},
		},
		{
			name:      "profile only",
			variables: `{"profile": {}}`,
			check: func(t *testing.T, input *Input) {
				assert.NotNil(t, input.Profile)
				assert.Nil(t, input.Catalog)
				assert.Nil(t, input.Options)
			},
		},
		{name: "missing profile", variables: `{"requestId": "x"}`, wantErr: true},
		{name: "profile is not an object", variables: `{"profile": "john"}`, wantErr: true},
		{name: "catalog entry without id", variables: `{"profile": {}, "catalog": [{"nameNL": "x"}]}`, wantErr: true},
		{name: "rerank option is not a boolean", variables: `{"profile": {}, "options": {"rerank": "yes"}}`, wantErr: true},
		{name: "wrong leaf type", variables: `{"profile": {"personal": {"age": "thirty"}}}`, wantErr: true},
		{name: "not json", variables: `{profile`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, err := ParseInput([]byte(tt.variables))
			if tt.wantErr {
				require.Error(t, err)
				assertCode(t, err, apperrors.ErrCodeInvalidMatchInput)
				return
			}
			require.NoError(t, err)
			tt.check(t, input)
		})
	}
}

func TestOutput_JSONShape(t *testing.T) {
	h := newTestHandler(t, nil)
	output, err := h.Execute(context.Background(), &Input{
		Profile: createTestProfile(),
		Catalog: []models.Benefit{},
	})
	require.NoError(t, err)

	b, err := json.Marshal(output)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &decoded))
	for _, key := range []string{"requestId", "matches", "rejected", "diagnostics", "degraded"} {
		assert.Contains(t, decoded, key)
	}
	assert.Equal(t, []interface{}{}, decoded["matches"])
}
