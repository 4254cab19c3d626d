package repository

// TxRepos agrupa los repositorios atados a una misma transacción.
type TxRepos struct {
	Products   ProductRepository
	Movements  MovementRepository
	Sales      SaleRepository
	Receptions ReceptionRepository
}
