package consolidation

import (
	"context"

	"github.com/jhoicas/stock-consolidator/internal/domain/repository"
)

// TxRunner ejecuta fn dentro de una transacción acotada, con repositorios atados a ella.
// Si fn devuelve error se hace Rollback de todo lo escrito; si no, Commit.
type TxRunner interface {
	Run(ctx context.Context, fn func(ctx context.Context, r repository.Repos) error) error
}
