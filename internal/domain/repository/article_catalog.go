package repository

import "context"

// ArticleCatalog consulta del maestro de artículos. Best-effort: "" si no se conoce.
type ArticleCatalog interface {
	LookupArticleDescription(ctx context.Context, companyCode, articleCode string) (string, error)
}
