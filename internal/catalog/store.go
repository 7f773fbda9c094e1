// internal/catalog/store.go
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"benefit-matcher/internal/common/logger"
	"benefit-matcher/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/lib/pq"
)

var ErrCatalogLoadFailed = errors.New("CATALOG_LOAD_FAILED")

// Store loads the current benefit catalog snapshot.
type Store interface {
	Load(ctx context.Context) ([]models.Benefit, error)
}

// PostgresStore reads benefit documents from a table with columns
// benefit_id (text), document (jsonb) and active (bool).
type PostgresStore struct {
	db     *sql.DB
	table  string
	logger logger.Logger
}

func NewPostgresStore(db *sql.DB, table string, log logger.Logger) *PostgresStore {
	if table == "" {
		table = "benefits"
	}
	return &PostgresStore{
		db:     db,
		table:  table,
		logger: log.WithFields(map[string]interface{}{"component": "catalog", "source": "postgres"}),
	}
}

func (s *PostgresStore) query() string {
	return fmt.Sprintf("SELECT benefit_id, document FROM %s WHERE active ORDER BY benefit_id", pq.QuoteIdentifier(s.table))
}

func (s *PostgresStore) Load(ctx context.Context) ([]models.Benefit, error) {
	rows, err := s.db.QueryContext(ctx, s.query())
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", ErrCatalogLoadFailed, err)
	}
	defer rows.Close()

	benefits := []models.Benefit{}
	for rows.Next() {
		var (
			id  string
			doc []byte
		)
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", ErrCatalogLoadFailed, err)
		}
		var b models.Benefit
		if err := json.Unmarshal(doc, &b); err != nil {
			s.logger.Warn("skipping undecodable benefit document", map[string]interface{}{
				"benefitId": id,
				"error":     err,
			})
			continue
		}
		b.BenefitID = id
		benefits = append(benefits, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows: %v", ErrCatalogLoadFailed, err)
	}
	return benefits, nil
}

// ElasticsearchStore reads every document of a benefits index.
type ElasticsearchStore struct {
	client  *elasticsearch.Client
	index   string
	maxSize int
	logger  logger.Logger
}

func NewElasticsearchStore(client *elasticsearch.Client, index string, maxSize int, log logger.Logger) *ElasticsearchStore {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &ElasticsearchStore{
		client:  client,
		index:   index,
		maxSize: maxSize,
		logger:  log.WithFields(map[string]interface{}{"component": "catalog", "source": "elasticsearch"}),
	}
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string          `json:"_id"`
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (s *ElasticsearchStore) Load(ctx context.Context) ([]models.Benefit, error) {
	body, _ := json.Marshal(map[string]interface{}{
		"query": map[string]interface{}{"match_all": map[string]interface{}{}},
		"size":  s.maxSize,
		"sort":  []interface{}{"_doc"},
	})
	req := esapi.SearchRequest{
		Index: []string{s.index},
		Body:  strings.NewReader(string(body)),
	}

	res, err := req.Do(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", ErrCatalogLoadFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("%w: search failed: %s", ErrCatalogLoadFailed, res.String())
	}

	var r searchResponse
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrCatalogLoadFailed, err)
	}

	benefits := make([]models.Benefit, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		var b models.Benefit
		if err := json.Unmarshal(hit.Source, &b); err != nil {
			s.logger.Warn("skipping undecodable benefit document", map[string]interface{}{
				"docId": hit.ID,
				"error": err,
			})
			continue
		}
		if b.BenefitID == "" {
			b.BenefitID = hit.ID
		}
		benefits = append(benefits, b)
	}
	if len(r.Hits.Hits) == s.maxSize {
		s.logger.Warn("catalog may be truncated at max size", map[string]interface{}{"maxSize": s.maxSize})
	}
	return benefits, nil
}
