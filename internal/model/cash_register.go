package model

// CashRegister is a physical till. Reference data, never mutated here.
type CashRegister struct {
	ID            string `json:"id"`
	Code          string `json:"code"`
	Name          string `json:"name"`
	PointOfSaleID string `json:"point_of_sale_id"`
	Active        bool   `json:"active"`
}
