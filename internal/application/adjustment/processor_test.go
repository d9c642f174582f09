package adjustment_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-consolidator/internal/application/adjustment"
	"github.com/jhoicas/stock-consolidator/internal/application/consolidation"
	"github.com/jhoicas/stock-consolidator/internal/domain/entity"
	"github.com/jhoicas/stock-consolidator/internal/infrastructure/memory"
)

var baseTime = time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)

func clock() time.Time { return baseTime }

func seedPallet(t *testing.T, store *memory.Store, qty string) {
	t.Helper()
	ctx := context.Background()
	repos := store.Repos()
	require.NoError(t, repos.Pallets.Create(ctx, &entity.Pallet{ID: 1, State: entity.PalletStateOpen}))
	require.NoError(t, repos.Lines.Create(ctx, &entity.StockLine{
		PalletID: 1, CompanyCode: "EMP1", ArticleCode: "X1", Description: "Tornillo",
		Quantity: decimal.RequireFromString(qty), Lot: "L1", WarehouseCode: "A1", LocationCode: "U01",
	}))
}

func completedCount(lines ...entity.CycleCountLine) *entity.CycleCount {
	return &entity.CycleCount{
		ID: 50, PalletID: 1, CompanyCode: "EMP1", State: entity.CycleCountStateCompleted,
		UserID: 9, Lines: lines,
	}
}

func countLine(article, lot, qty string) entity.CycleCountLine {
	return entity.CycleCountLine{
		ArticleCode: article, Lot: lot, WarehouseCode: "A1", LocationCode: "U01",
		CountedQty: decimal.RequireFromString(qty),
	}
}

func TestProcessCompleted_DiferenciasSeConviertenEnDeltas(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedPallet(t, store, "10")
	require.NoError(t, store.Repos().Counts.Create(ctx, completedCount(
		countLine("X1", "L1", "7"),
		countLine("Y2", "", "5"),
	)))

	p := adjustment.NewProcessor(store, store.Repos().Counts, zerolog.Nop(), adjustment.WithClock(clock))
	n, err := p.ProcessCompleted(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	deltas, err := store.Repos().Deltas.ListUnprocessedByPallet(ctx, 1)
	require.NoError(t, err)
	require.Len(t, deltas, 2)
	assert.True(t, deltas[0].Quantity.Equal(decimal.NewFromInt(-3)))
	assert.True(t, deltas[1].Quantity.Equal(decimal.NewFromInt(5)))

	tr, err := store.Repos().Transfers.GetByID(ctx, deltas[0].TransferID)
	require.NoError(t, err)
	require.NotNil(t, tr)
	assert.Equal(t, entity.TransferStateCompleted, tr.State)
	assert.Equal(t, int64(9), tr.UserID)

	logs, err := store.Repos().Logs.ListByPallet(ctx, 1)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, entity.LogActionCountAdjusted, logs[0].Action)

	// el motor aplica los ajustes por el camino normal
	engine := consolidation.NewEngine(store, store.Repos().Deltas, store, zerolog.Nop(), consolidation.WithClock(clock))
	res, err := engine.ConsolidatePallet(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Applied)

	lines, err := store.Repos().Lines.ListByPallet(ctx, 1)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Quantity)
	}
	assert.True(t, total.Equal(decimal.NewFromInt(12)), "7 de X1 + 5 de Y2")
}

func TestProcessCompleted_SinDiferenciasSoloMarca(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedPallet(t, store, "10")
	require.NoError(t, store.Repos().Counts.Create(ctx, completedCount(countLine("X1", "L1", "10"))))

	p := adjustment.NewProcessor(store, store.Repos().Counts, zerolog.Nop())
	n, err := p.ProcessCompleted(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	count, err := store.Repos().Deltas.CountUnprocessed(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, count)

	n, err = p.ProcessCompleted(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "un conteo procesado no se repite")
}

func TestProcessCompleted_ConteoAbiertoSeIgnora(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedPallet(t, store, "10")
	c := completedCount(countLine("X1", "L1", "1"))
	c.State = entity.CycleCountStateOpen
	require.NoError(t, store.Repos().Counts.Create(ctx, c))

	n, err := adjustment.NewProcessor(store, store.Repos().Counts, zerolog.Nop()).ProcessCompleted(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestProcessCompleted_FalloRevierteTodo(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedPallet(t, store, "10")
	require.NoError(t, store.Repos().Counts.Create(ctx, completedCount(countLine("X1", "L1", "4"))))

	store.FailWhen(func(op string, _ int64) error {
		if op == "counts.mark_processed" {
			return errors.New("bloqueo")
		}
		return nil
	})
	p := adjustment.NewProcessor(store, store.Repos().Counts, zerolog.Nop())
	n, err := p.ProcessCompleted(ctx)
	require.NoError(t, err, "el fallo de un conteo no se propaga")
	assert.Zero(t, n)

	count, err := store.Repos().Deltas.CountUnprocessed(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, count, "los deltas se revierten con la transacción")

	store.FailWhen(nil)
	n, err = p.ProcessCompleted(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	count, err = store.Repos().Deltas.CountUnprocessed(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestProcessCompleted_DosConteosDelMismoPaletNoDuplicanAjuste(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedPallet(t, store, "10")
	first := completedCount(countLine("X1", "L1", "15"))
	second := completedCount(countLine("X1", "L1", "15"))
	second.ID = 51
	require.NoError(t, store.Repos().Counts.Create(ctx, first))
	require.NoError(t, store.Repos().Counts.Create(ctx, second))

	p := adjustment.NewProcessor(store, store.Repos().Counts, zerolog.Nop(), adjustment.WithClock(clock))
	engine := consolidation.NewEngine(store, store.Repos().Deltas, store, zerolog.Nop(), consolidation.WithClock(clock))

	n, err := p.ProcessCompleted(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "el segundo conteo espera a que se consolide el primero")
	engine.Sweep(ctx)

	n, err = p.ProcessCompleted(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	engine.Sweep(ctx)

	pending, err := store.Repos().Counts.ListCompletedUnprocessed(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	lines, err := store.Repos().Lines.ListByPallet(ctx, 1)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.True(t, lines[0].Quantity.Equal(decimal.NewFromInt(15)), "stock final %s", lines[0].Quantity)
}

func TestProcessCompleted_EsperaDeltasPendientesDelPalet(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedPallet(t, store, "10")
	repos := store.Repos()
	require.NoError(t, repos.Transfers.Create(ctx, &entity.Transfer{ID: 3, Type: entity.TransferTypeArticle,
		State: entity.TransferStateCompleted, UserID: 9}))
	require.NoError(t, repos.Deltas.Create(ctx, &entity.Delta{
		PalletID: 1, CompanyCode: "EMP1", ArticleCode: "X1", Lot: "L1", WarehouseCode: "A1", LocationCode: "U01",
		Quantity: decimal.NewFromInt(2), UserID: 9, TransferID: 3, CreatedAt: baseTime,
	}))
	require.NoError(t, repos.Counts.Create(ctx, completedCount(countLine("X1", "L1", "12"))))

	p := adjustment.NewProcessor(store, repos.Counts, zerolog.Nop(), adjustment.WithClock(clock))
	n, err := p.ProcessCompleted(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	engine := consolidation.NewEngine(store, repos.Deltas, store, zerolog.Nop(), consolidation.WithClock(clock))
	engine.Sweep(ctx)

	n, err = p.ProcessCompleted(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	count, err := repos.Deltas.CountUnprocessed(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, count, "12 contados frente a 12 consolidados: sin ajuste")
}
