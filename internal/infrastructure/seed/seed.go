// Package seed carga datos de demostración y el maestro de artículos exportado del ERP.
package seed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/jhoicas/stock-consolidator/internal/domain/entity"
	"github.com/jhoicas/stock-consolidator/internal/domain/repository"
)

// ArticleWriter destino del maestro de artículos.
type ArticleWriter interface {
	Upsert(ctx context.Context, companyCode, articleCode, description string) error
}

// Article fila del maestro.
type Article struct {
	CompanyCode string
	Code        string
	Description string
}

// ReadArticles lee "empresa;artículo;descripción". El ERP exporta en ISO-8859-1; latin1=false para UTF-8.
func ReadArticles(r io.Reader, latin1 bool) ([]Article, error) {
	if latin1 {
		r = transform.NewReader(r, charmap.ISO8859_1.NewDecoder())
	}
	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var out []Article
	line := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("línea %d: %w", line, err)
		}
		if len(rec) < 3 || strings.HasPrefix(strings.TrimSpace(rec[0]), "#") {
			continue
		}
		a := Article{
			CompanyCode: strings.TrimSpace(rec[0]),
			Code:        strings.TrimSpace(rec[1]),
			Description: strings.TrimSpace(rec[2]),
		}
		if a.CompanyCode == "" || a.Code == "" {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// LoadArticles vuelca los artículos en el maestro.
func LoadArticles(ctx context.Context, w ArticleWriter, articles []Article) error {
	for _, a := range articles {
		if err := w.Upsert(ctx, a.CompanyCode, a.Code, a.Description); err != nil {
			return fmt.Errorf("artículo %s/%s: %w", a.CompanyCode, a.Code, err)
		}
	}
	return nil
}

// Summary qué se creó en la demo.
type Summary struct {
	Pallets   []int64
	Transfers []int64
	Deltas    int
	Counts    int
}

// Demo crea un escenario pequeño que ejercita consolidación, vaciado, notificaciones y ajustes.
// Debe ejecutarse dentro de una transacción.
func Demo(ctx context.Context, r repository.Repos, now time.Time) (Summary, error) {
	var sum Summary
	const company = "EMP1"

	pallets := make([]*entity.Pallet, 3)
	for i := range pallets {
		pallets[i] = &entity.Pallet{State: entity.PalletStateOpen}
		if err := r.Pallets.Create(ctx, pallets[i]); err != nil {
			return sum, fmt.Errorf("crear palet: %w", err)
		}
		sum.Pallets = append(sum.Pallets, pallets[i].ID)
	}

	completed := now.Add(-time.Minute)
	inbound := &entity.Transfer{
		Type: entity.TransferTypeArticle, State: entity.TransferStateCompleted,
		DestinationWarehouse: "A1", DestinationLocation: "U01",
		ArticleCode: "TORN-6", Quantity: decimal.NewFromInt(10), UserID: 7, CompletedAt: &completed,
	}
	outbound := &entity.Transfer{
		Type: entity.TransferTypeArticle, State: entity.TransferStatePendingERP,
		OriginWarehouse: "A1", OriginLocation: "U02",
		ArticleCode: "ARAN-8", Quantity: decimal.NewFromInt(5), UserID: 8,
	}
	pending := &entity.Transfer{
		Type: entity.TransferTypePallet, State: entity.TransferStatePending,
		OriginWarehouse: "A1", OriginLocation: "U03", DestinationWarehouse: "B2", DestinationLocation: "R01",
		PalletID: pallets[2].ID, UserID: 9,
	}
	for _, t := range []*entity.Transfer{inbound, outbound, pending} {
		if err := r.Transfers.Create(ctx, t); err != nil {
			return sum, fmt.Errorf("crear traslado: %w", err)
		}
		sum.Transfers = append(sum.Transfers, t.ID)
	}

	if err := r.Lines.Create(ctx, &entity.StockLine{
		PalletID: pallets[1].ID, CompanyCode: company, ArticleCode: "ARAN-8", Description: "Arandela 8 mm",
		Quantity: decimal.NewFromInt(5), Unit: "UD", WarehouseCode: "A1", LocationCode: "U02",
		UserID: 8, AddedAt: now.Add(-24 * time.Hour),
	}); err != nil {
		return sum, fmt.Errorf("crear línea: %w", err)
	}
	if err := r.Lines.Create(ctx, &entity.StockLine{
		PalletID: pallets[2].ID, CompanyCode: company, ArticleCode: "TUER-6", Description: "Tuerca M6",
		Quantity: decimal.NewFromInt(40), Unit: "UD", WarehouseCode: "A1", LocationCode: "U03",
		UserID: 9, AddedAt: now.Add(-24 * time.Hour), TransferID: pending.ID,
	}); err != nil {
		return sum, fmt.Errorf("crear línea: %w", err)
	}

	deltas := []*entity.Delta{
		{
			PalletID: pallets[0].ID, CompanyCode: company, ArticleCode: "TORN-6", Quantity: decimal.NewFromInt(10),
			Unit: "UD", Lot: "L2026-01", TransferID: inbound.ID, UserID: 7, CreatedAt: now.Add(-50 * time.Second),
		},
		{
			PalletID: pallets[1].ID, CompanyCode: company, ArticleCode: "ARAN-8", Quantity: decimal.NewFromInt(-5),
			Unit: "UD", WarehouseCode: "A1", LocationCode: "U02", TransferID: outbound.ID, UserID: 8,
			CreatedAt: now.Add(-40 * time.Second),
		},
	}
	for _, d := range deltas {
		if err := r.Deltas.Create(ctx, d); err != nil {
			return sum, fmt.Errorf("crear delta: %w", err)
		}
		sum.Deltas++
	}

	if err := r.Counts.Create(ctx, &entity.CycleCount{
		PalletID: pallets[2].ID, CompanyCode: company, State: entity.CycleCountStateCompleted,
		UserID: 9, CompletedAt: &now,
		Lines: []entity.CycleCountLine{{
			ArticleCode: "TUER-6", Description: "Tuerca M6", Unit: "UD",
			WarehouseCode: "A1", LocationCode: "U03", CountedQty: decimal.NewFromInt(38),
		}},
	}); err != nil {
		return sum, fmt.Errorf("crear conteo: %w", err)
	}
	sum.Counts++
	return sum, nil
}
