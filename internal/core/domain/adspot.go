package domain

import "github.com/shopspring/decimal"

// AdSpot is a publisher's priced display slot. Price is held in the
// smallest currency unit and never changes after creation.
type AdSpot struct {
	ID            int64           `json:"id"`
	Owner         string          `json:"owner"`
	Price         decimal.Decimal `json:"price"`
	Name          string          `json:"name"`
	PublisherEarn *int64          `json:"publisher_earn,omitempty"`
	ShowKind      *string         `json:"show_kind,omitempty"`
}

// NewAdSpot validates the input and scales price from whole currency units
// into the smallest unit using unitScale.
func NewAdSpot(policy IDPolicy, id int64, price decimal.Decimal, unitScale decimal.Decimal, name string, publisherEarn *int64, showKind *string, owner string) (AdSpot, error) {
	if err := policy.CheckID("ad spot id", id); err != nil {
		return AdSpot{}, err
	}
	if !price.IsPositive() {
		return AdSpot{}, invalid("price must be positive")
	}
	if err := checkName(name); err != nil {
		return AdSpot{}, err
	}
	scaled, err := ScalePrice(price, unitScale)
	if err != nil {
		return AdSpot{}, err
	}
	return AdSpot{
		ID:            id,
		Owner:         owner,
		Price:         scaled,
		Name:          name,
		PublisherEarn: cloneInt64(publisherEarn),
		ShowKind:      cloneString(showKind),
	}, nil
}
