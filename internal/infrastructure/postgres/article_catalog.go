package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/stock-consolidator/internal/domain/repository"
)

var _ repository.ArticleCatalog = (*ArticleCatalog)(nil)

// ArticleCatalog maestro de artículos.
type ArticleCatalog struct {
	q Querier
}

func NewArticleCatalog(q Querier) *ArticleCatalog {
	return &ArticleCatalog{q: q}
}

// LookupArticleDescription "" si el artículo no está en el maestro.
func (c *ArticleCatalog) LookupArticleDescription(ctx context.Context, companyCode, articleCode string) (string, error) {
	var description string
	err := c.q.QueryRow(ctx,
		`SELECT description FROM articles WHERE company_code = $1 AND article_code = $2`,
		companyCode, articleCode,
	).Scan(&description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("lookup article: %w", err)
	}
	return description, nil
}

// Upsert alta o actualización de un artículo (seed).
func (c *ArticleCatalog) Upsert(ctx context.Context, companyCode, articleCode, description string) error {
	_, err := c.q.Exec(ctx, `
		INSERT INTO articles (company_code, article_code, description) VALUES ($1, $2, $3)
		ON CONFLICT (company_code, article_code) DO UPDATE SET description = EXCLUDED.description`,
		companyCode, articleCode, description)
	if err != nil {
		return fmt.Errorf("upsert article: %w", err)
	}
	return nil
}
