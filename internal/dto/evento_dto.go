package dto

// Realtime message types sent to register terminals.
const (
	EventoInitialSales = "initial-sales"
	EventoNewSale      = "new-sale"
	EventoSaleUpdated  = "sale-updated"
	EventoSaleDeferred = "sale-deferred"
	EventoSaleRemoved  = "sale-removed"
)

// Evento is the wire envelope of every realtime message.
type Evento struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// VentaEliminada is the data of a sale-removed event.
type VentaEliminada struct {
	ID string `json:"id"`
}
