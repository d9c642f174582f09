package consolidation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-consolidator/internal/application/consolidation"
	"github.com/jhoicas/stock-consolidator/internal/domain/entity"
	"github.com/jhoicas/stock-consolidator/internal/infrastructure/memory"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

var baseTime = time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)

type fixture struct {
	t      *testing.T
	ctx    context.Context
	store  *memory.Store
	engine *consolidation.Engine
	seq    int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	engine := consolidation.NewEngine(store, store.Repos().Deltas, store, zerolog.Nop(),
		consolidation.WithClock(func() time.Time { return baseTime }))
	return &fixture{t: t, ctx: context.Background(), store: store, engine: engine}
}

func (f *fixture) pallet(id int64) {
	f.t.Helper()
	require.NoError(f.t, f.store.Repos().Pallets.Create(f.ctx, &entity.Pallet{ID: id, State: entity.PalletStateOpen}))
}

func (f *fixture) transfer(id int64, state string) *entity.Transfer {
	f.t.Helper()
	t := &entity.Transfer{ID: id, Type: entity.TransferTypeArticle, State: state, UserID: 7}
	require.NoError(f.t, f.store.Repos().Transfers.Create(f.ctx, t))
	return t
}

// delta crea un delta con creación creciente; mod permite ajustar campos.
func (f *fixture) delta(palletID, transferID int64, qty string, mod ...func(*entity.Delta)) *entity.Delta {
	f.t.Helper()
	f.seq++
	d := &entity.Delta{
		PalletID:      palletID,
		CompanyCode:   "EMP1",
		ArticleCode:   "X1",
		Description:   "Artículo X1",
		Quantity:      decimal.RequireFromString(qty),
		Unit:          "UD",
		WarehouseCode: "A1",
		LocationCode:  "U01",
		UserID:        7,
		CreatedAt:     baseTime.Add(time.Duration(f.seq) * time.Second),
		TransferID:    transferID,
	}
	for _, m := range mod {
		m(d)
	}
	require.NoError(f.t, f.store.Repos().Deltas.Create(f.ctx, d))
	return d
}

func (f *fixture) lines(palletID int64) []*entity.StockLine {
	f.t.Helper()
	lines, err := f.store.Repos().Lines.ListByPallet(f.ctx, palletID)
	require.NoError(f.t, err)
	return lines
}

func (f *fixture) unprocessed(palletID int64) int {
	f.t.Helper()
	n, err := f.store.Repos().Deltas.CountUnprocessed(f.ctx, palletID)
	require.NoError(f.t, err)
	return n
}

func (f *fixture) logs(palletID int64, action string) int {
	f.t.Helper()
	entries, err := f.store.Repos().Logs.ListByPallet(f.ctx, palletID)
	require.NoError(f.t, err)
	n := 0
	for _, e := range entries {
		if e.Action == action {
			n++
		}
	}
	return n
}

func assertQty(t *testing.T, expected string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(expected).Equal(got), "cantidad esperada %s, obtenida %s", expected, got)
}

// ──────────────────────────────────────────────────────────────────────────────
// Escenarios
// ──────────────────────────────────────────────────────────────────────────────

func TestConsolidatePallet_DeltaPositivoCreaLinea(t *testing.T) {
	f := newFixture(t)
	f.pallet(1)
	f.transfer(1, entity.TransferStateCompleted)
	f.delta(1, 1, "10", func(d *entity.Delta) { d.WarehouseCode, d.LocationCode = " a1", "u01 " })

	res, err := f.engine.ConsolidatePallet(f.ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, 1, res.Created)

	lines := f.lines(1)
	require.Len(t, lines, 1)
	assert.Equal(t, "X1", lines[0].ArticleCode)
	assert.Equal(t, "A1", lines[0].WarehouseCode)
	assert.Equal(t, "U01", lines[0].LocationCode)
	assertQty(t, "10", lines[0].Quantity)
	assert.Equal(t, 0, f.unprocessed(1), "el delta debe quedar procesado")
}

func TestConsolidatePallet_RestaTotalBorraLineaYVaciaPalet(t *testing.T) {
	f := newFixture(t)
	f.pallet(1)
	f.transfer(1, entity.TransferStateCompleted)
	f.transfer(2, entity.TransferStateCompleted)
	f.delta(1, 1, "10")
	_, err := f.engine.ConsolidatePallet(f.ctx, 1)
	require.NoError(t, err)
	require.Len(t, f.lines(1), 1)

	f.delta(1, 2, "-10", func(d *entity.Delta) { d.UserID = 42 })
	res, err := f.engine.ConsolidatePallet(f.ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deleted)
	assert.True(t, res.Emptied)
	assert.Empty(t, f.lines(1), "una línea en cero no se persiste")

	p, err := f.store.Repos().Pallets.GetByID(f.ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, entity.PalletStateEmptied, p.State)
	assert.Equal(t, int64(42), p.EmptiedBy, "el vaciado se sella con el usuario del último delta negativo")
	require.NotNil(t, p.ClosedAt, "el cierre se sella si faltaba")
	assert.Equal(t, 1, f.logs(1, entity.LogActionLineDeleted))
	assert.Equal(t, 1, f.logs(1, entity.LogActionPalletEmptied))
}

func TestConsolidatePallet_VaciadoEsMonotono(t *testing.T) {
	f := newFixture(t)
	f.pallet(1)
	f.transfer(1, entity.TransferStateCompleted)
	f.delta(1, 1, "5")
	f.delta(1, 1, "-5")

	res, err := f.engine.ConsolidatePallet(f.ctx, 1)
	require.NoError(t, err)
	require.True(t, res.Emptied)

	// Un delta heredado posterior no reabre ni vuelve a registrar el vaciado.
	f.delta(1, 1, "3", func(d *entity.Delta) { d.Inherited = true })
	res, err = f.engine.ConsolidatePallet(f.ctx, 1)
	require.NoError(t, err)
	assert.False(t, res.Emptied)

	p, err := f.store.Repos().Pallets.GetByID(f.ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, entity.PalletStateEmptied, p.State)
	assert.Equal(t, 1, f.logs(1, entity.LogActionPalletEmptied), "sin registro duplicado del vaciado")
}

func TestConsolidatePallet_NegativoSinLineaSeDescarta(t *testing.T) {
	f := newFixture(t)
	f.pallet(1)
	f.transfer(1, entity.TransferStateCompleted)
	f.delta(1, 1, "-5")

	res, err := f.engine.ConsolidatePallet(f.ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Discarded)
	assert.Empty(t, f.lines(1), "no se crea ninguna línea")
	assert.Equal(t, 0, f.unprocessed(1))
}

func TestSweep_FalloDeUnPaletNoAfectaAOtro(t *testing.T) {
	f := newFixture(t)
	f.pallet(1)
	f.pallet(2)
	f.transfer(1, entity.TransferStateCompleted)
	f.delta(1, 1, "10")
	f.delta(2, 1, "4")
	f.delta(2, 1, "6", func(d *entity.Delta) { d.ArticleCode = "X2" })

	boom := errors.New("fila corrupta")
	f.store.FailWhen(func(op string, palletID int64) error {
		if palletID == 2 && op == "lines.create" {
			return boom
		}
		return nil
	})

	report := f.engine.Sweep(f.ctx)
	assert.Equal(t, 2, report.Pallets)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Created)

	assert.Len(t, f.lines(1), 1, "P1 confirma sus cambios")
	assert.Empty(t, f.lines(2), "P2 revierte todo su lote")
	assert.Equal(t, 2, f.unprocessed(2), "los deltas de P2 siguen pendientes")

	f.store.FailWhen(nil)
	report = f.engine.Sweep(f.ctx)
	assert.Equal(t, 0, report.Failed)
	assert.Len(t, f.lines(2), 2, "el siguiente barrido recupera P2")
}

func TestConsolidatePallet_SoloTrasladosAsentados(t *testing.T) {
	f := newFixture(t)
	f.pallet(1)
	f.transfer(1, entity.TransferStatePending)
	f.delta(1, 1, "10")
	f.delta(1, 99, "3") // traslado inexistente

	res, err := f.engine.ConsolidatePallet(f.ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Waiting)
	assert.Equal(t, 1, res.Discarded, "el huérfano se da por conciliado")
	assert.Empty(t, f.lines(1))
	assert.Equal(t, 1, f.unprocessed(1))

	require.NoError(t, f.store.Repos().Transfers.UpdateState(f.ctx, 1, entity.TransferStatePendingERP))
	res, err = f.engine.ConsolidatePallet(f.ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied, "PENDING_ERP ya es consolidable")
	assert.Equal(t, 0, f.unprocessed(1))

	p, err := f.store.Repos().Pallets.GetByID(f.ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, entity.PalletStateOpen, p.State)
}

func TestConsolidatePallet_AlmacenVacio(t *testing.T) {
	f := newFixture(t)
	f.pallet(1)
	f.transfer(1, entity.TransferStateCompleted)
	dest := &entity.Transfer{ID: 2, Type: entity.TransferTypeArticle, State: entity.TransferStateCompleted,
		DestinationWarehouse: "b2", DestinationLocation: "r05", UserID: 7}
	require.NoError(t, f.store.Repos().Transfers.Create(f.ctx, dest))

	f.delta(1, 1, "10", func(d *entity.Delta) { d.WarehouseCode, d.LocationCode = "", "" })
	f.delta(1, 2, "4", func(d *entity.Delta) { d.WarehouseCode, d.LocationCode = "", "" })

	res, err := f.engine.ConsolidatePallet(f.ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Waiting, "sin almacén ni destino queda pendiente")
	assert.Equal(t, 1, res.Created)

	lines := f.lines(1)
	require.Len(t, lines, 1)
	assert.Equal(t, "B2", lines[0].WarehouseCode, "se usa el destino del traslado")
	assert.Equal(t, "R05", lines[0].LocationCode)
}

func TestConsolidatePallet_OrdenFIFOPorCreacion(t *testing.T) {
	f := newFixture(t)
	f.pallet(1)
	f.transfer(1, entity.TransferStateCompleted)
	// Se inserta primero la salida pero con creación posterior a la entrada.
	f.delta(1, 1, "-4", func(d *entity.Delta) { d.CreatedAt = baseTime.Add(time.Hour) })
	f.delta(1, 1, "10")

	_, err := f.engine.ConsolidatePallet(f.ctx, 1)
	require.NoError(t, err)
	lines := f.lines(1)
	require.Len(t, lines, 1)
	assertQty(t, "6", lines[0].Quantity)
}

func TestConsolidatePallet_HeredadoNoSumaCantidad(t *testing.T) {
	f := newFixture(t)
	f.pallet(1)
	f.transfer(1, entity.TransferStateCompleted)
	f.transfer(2, entity.TransferStateCompleted)
	f.delta(1, 1, "10")
	f.delta(1, 2, "10", func(d *entity.Delta) { d.Inherited = true; d.Observations = "arrastre" })

	_, err := f.engine.ConsolidatePallet(f.ctx, 1)
	require.NoError(t, err)
	lines := f.lines(1)
	require.Len(t, lines, 1)
	assertQty(t, "10", lines[0].Quantity)
	assert.Equal(t, int64(2), lines[0].TransferID, "los metadatos sí se refrescan")
	assert.Equal(t, "arrastre", lines[0].Observations)
}

func TestConsolidatePallet_CompletaDescripcion(t *testing.T) {
	f := newFixture(t)
	f.pallet(1)
	f.transfer(1, entity.TransferStateCompleted)
	f.store.AddArticle("EMP1", "X9", "Tuerca M8")

	noDesc := func(article string) func(*entity.Delta) {
		return func(d *entity.Delta) { d.ArticleCode = article; d.Description = "" }
	}
	// X9 se resuelve con el maestro, X2 con otro delta pendiente y X3 no tiene fuente.
	f.delta(1, 1, "1", noDesc("X9"))
	f.delta(1, 1, "1", noDesc("X2"))
	f.delta(1, 1, "1", func(d *entity.Delta) { d.ArticleCode = "X2"; d.Description = "Arandela" })
	f.delta(1, 1, "1", noDesc("X3"))

	_, err := f.engine.ConsolidatePallet(f.ctx, 1)
	require.NoError(t, err)

	byArticle := map[string]string{}
	for _, l := range f.lines(1) {
		byArticle[l.ArticleCode] = l.Description
	}
	assert.Equal(t, "Tuerca M8", byArticle["X9"])
	assert.Equal(t, "Arandela", byArticle["X2"])
	assert.Equal(t, "", byArticle["X3"], "no resolverla no es fatal")
}

func TestConsolidatePallet_ReubicaPorTrasladoDePalet(t *testing.T) {
	f := newFixture(t)
	f.pallet(1)
	f.transfer(1, entity.TransferStateCompleted)
	f.delta(1, 1, "5", func(d *entity.Delta) { d.WarehouseCode, d.LocationCode = "B2", "R05" })
	_, err := f.engine.ConsolidatePallet(f.ctx, 1)
	require.NoError(t, err)

	done := baseTime.Add(time.Minute)
	move := &entity.Transfer{ID: 2, Type: entity.TransferTypePallet, State: entity.TransferStateCompleted,
		PalletID: 1, DestinationWarehouse: "B2", DestinationLocation: "R05", UserID: 7, CompletedAt: &done}
	require.NoError(t, f.store.Repos().Transfers.Create(f.ctx, move))
	f.delta(1, 2, "3") // escrito por el traslado en A1/U01

	res, err := f.engine.ConsolidatePallet(f.ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Relocated)

	lines := f.lines(1)
	require.Len(t, lines, 1, "la línea reubicada se fusiona con la del destino")
	assert.Equal(t, "B2", lines[0].WarehouseCode)
	assert.Equal(t, "R05", lines[0].LocationCode)
	assertQty(t, "8", lines[0].Quantity)
	assert.Equal(t, 1, f.logs(1, entity.LogActionRelocated))
}

// ──────────────────────────────────────────────────────────────────────────────
// Propiedades
// ──────────────────────────────────────────────────────────────────────────────

func TestSweep_IdempotenteYConservaCantidad(t *testing.T) {
	f := newFixture(t)
	f.pallet(1)
	f.transfer(1, entity.TransferStateCompleted)
	quantities := []string{"10", "2.5", "-3.25", "7", "-1", "0"}
	for _, q := range quantities {
		f.delta(1, 1, q)
	}
	f.delta(1, 1, "100", func(d *entity.Delta) { d.Inherited = true })

	first := f.engine.Sweep(f.ctx)
	assert.Equal(t, 7, first.Applied)

	second := f.engine.Sweep(f.ctx)
	assert.Equal(t, 0, second.Pallets, "no quedan palets pendientes")

	expected := decimal.Zero
	for _, q := range quantities {
		expected = expected.Add(decimal.RequireFromString(q))
	}
	total := decimal.Zero
	for _, l := range f.lines(1) {
		total = total.Add(l.Quantity)
		assert.True(t, l.Quantity.GreaterThan(decimal.New(1, -4)), "ninguna línea persiste en o bajo épsilon")
	}
	assertQty(t, expected.String(), total)

	res, err := f.engine.ConsolidatePallet(f.ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Applied, "los deltas procesados nunca se reaplican")
	assertQty(t, expected.String(), f.lines(1)[0].Quantity)
}

func TestConsolidatePallet_HuerfanoNoImpideVaciado(t *testing.T) {
	f := newFixture(t)
	f.pallet(1)
	f.transfer(1, entity.TransferStateCompleted)
	f.delta(1, 1, "5")
	f.delta(1, 1, "-5")
	f.delta(1, 42, "3") // traslado inexistente

	res, err := f.engine.ConsolidatePallet(f.ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Applied)
	assert.True(t, res.Emptied, "el huérfano no retiene el palet")
	assert.Equal(t, 0, f.unprocessed(1))
	assert.Empty(t, f.lines(1))

	ids, err := f.store.Repos().Deltas.ListPendingPalletIDs(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, ids, "el palet no vuelve a barrerse")
}

func TestConsolidatePallet_PaletNoRegistrado(t *testing.T) {
	f := newFixture(t)
	f.transfer(1, entity.TransferStateCompleted)
	f.delta(8, 1, "3")
	f.delta(8, 1, "-3")

	res, err := f.engine.ConsolidatePallet(f.ctx, 8)
	require.NoError(t, err, "los deltas de un palet sin registro se consolidan igual")
	assert.Equal(t, 2, res.Applied)
	assert.False(t, res.Emptied, "sin registro no hay estado que vaciar")
	assert.Equal(t, 0, f.unprocessed(8))
}
