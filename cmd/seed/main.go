// seed prepara la base PostgreSQL del consolidador: aplica migraciones, carga el maestro de
// artículos exportado del ERP (CSV "empresa;artículo;descripción" en ISO-8859-1) y un escenario
// de demostración.
//
// Uso: go run ./cmd/seed [ruta/articulos.csv]
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jhoicas/stock-consolidator/internal/domain/repository"
	"github.com/jhoicas/stock-consolidator/internal/infrastructure/postgres"
	"github.com/jhoicas/stock-consolidator/internal/infrastructure/seed"
	"github.com/jhoicas/stock-consolidator/pkg/config"
	"github.com/jhoicas/stock-consolidator/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cargar configuración: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Conexión a PostgreSQL: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := postgres.Migrate(pool, log.Component("migrate")); err != nil {
		fmt.Fprintf(os.Stderr, "Migraciones: %v\n", err)
		os.Exit(1)
	}

	if len(os.Args) > 1 {
		f, err := os.Open(os.Args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Abrir CSV: %v\n", err)
			os.Exit(1)
		}
		articles, err := seed.ReadArticles(f, true)
		f.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Leer CSV: %v\n", err)
			os.Exit(1)
		}
		if err := seed.LoadArticles(ctx, postgres.NewArticleCatalog(pool), articles); err != nil {
			fmt.Fprintf(os.Stderr, "Cargar artículos: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Artículos cargados: %d\n", len(articles))
	}

	var sum seed.Summary
	err = postgres.NewTxRunner(pool).Run(ctx, func(ctx context.Context, r repository.Repos) error {
		var err error
		sum, err = seed.Demo(ctx, r, time.Now())
		return err
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Datos de demostración: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Palets: %v\nTraslados: %v\nDeltas: %d\nConteos: %d\n", sum.Pallets, sum.Transfers, sum.Deltas, sum.Counts)
}
