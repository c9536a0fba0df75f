package enums

import "fmt"

// StockTransactionReason maps to the stock_transaction_reason enum in Postgres.
type StockTransactionReason string

const (
	StockTransactionReasonSale             StockTransactionReason = "sale"
	StockTransactionReasonRestock          StockTransactionReason = "restock"
	StockTransactionReasonPaymentFailed    StockTransactionReason = "payment_failed"
	StockTransactionReasonRefund           StockTransactionReason = "refund"
	StockTransactionReasonOrderCancelled   StockTransactionReason = "order_cancelled"
	StockTransactionReasonManualAdjustment StockTransactionReason = "manual_adjustment"
)

var validStockTransactionReasons = []StockTransactionReason{
	StockTransactionReasonSale,
	StockTransactionReasonRestock,
	StockTransactionReasonPaymentFailed,
	StockTransactionReasonRefund,
	StockTransactionReasonOrderCancelled,
	StockTransactionReasonManualAdjustment,
}

// String implements fmt.Stringer.
func (r StockTransactionReason) String() string {
	return string(r)
}

// IsValid reports whether the value is a known StockTransactionReason.
func (r StockTransactionReason) IsValid() bool {
	for _, candidate := range validStockTransactionReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseStockTransactionReason converts raw input into a StockTransactionReason.
func ParseStockTransactionReason(value string) (StockTransactionReason, error) {
	for _, candidate := range validStockTransactionReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock transaction reason %q", value)
}
