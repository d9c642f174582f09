package repository

// Repos agrupa los repositorios atados a una misma transacción.
type Repos struct {
	Deltas    DeltaRepository
	Lines     StockLineRepository
	Pallets   PalletRepository
	Transfers TransferRepository
	Logs      LogRepository
	Counts    CycleCountRepository
}
