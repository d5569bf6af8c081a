package domain

// Exchange-side order states as reported by the gateway.
const (
	ExchangeStatusNew             = "NEW"
	ExchangeStatusPartiallyFilled = "PARTIALLY_FILLED"
	ExchangeStatusFilled          = "FILLED"
	ExchangeStatusCanceled        = "CANCELED"
	ExchangeStatusRejected        = "REJECTED"
	ExchangeStatusExpired         = "EXPIRED"
)

// SubmittedOrder is the gateway response after placing a limit order.
type SubmittedOrder struct {
	ExchangeOrderID string
	Status          string
}

// OrderStatusReport is the authoritative state of an order at the exchange.
type OrderStatusReport struct {
	Status       string
	AvgPrice     float64
	FilledAmount float64
	Fee          float64
	FeeCurrency  string
}

// IsFilled reports whether the exchange considers the order fully executed.
func (r OrderStatusReport) IsFilled() bool {
	return r.Status == ExchangeStatusFilled
}
