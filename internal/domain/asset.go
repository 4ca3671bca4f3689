package domain

type AssetStatus string

const (
	AssetAvailable AssetStatus = "available"
	AssetAssigned  AssetStatus = "assigned"
	AssetRetired   AssetStatus = "retired"
)

type Asset struct {
	ID           string      `json:"id,omitempty"`
	Name         string      `json:"name"`
	Category     string      `json:"category"`
	SerialNumber string      `json:"serial_number,omitempty"`
	AssignedTo   string      `json:"assigned_to,omitempty"`
	Status       AssetStatus `json:"status"`
	PurchaseDate string      `json:"purchase_date,omitempty"`
	Value        Cents       `json:"value"`
}
