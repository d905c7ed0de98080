package domain

import (
	"fmt"

	"github.com/shopspring/decimal"

	"meta-ads/internal/pkg/errs"
)

// AgreementStatus is the lifecycle tag of an agreement.
type AgreementStatus string

const (
	StatusSigned  AgreementStatus = "signed"
	StatusSuccess AgreementStatus = "success"
)

func (s AgreementStatus) String() string {
	return string(s)
}

// Booking is a proposed agreement before the referenced records have been
// resolved. Times are unix seconds.
type Booking struct {
	ID         int64 `json:"id"`
	SpotID     int64 `json:"spot_id"`
	CreativeID int64 `json:"creative_id"`
	StartTime  int64 `json:"start_time"`
	EndTime    int64 `json:"end_time"`
}

// Validate checks the ids and the display window against now.
func (b Booking) Validate(policy IDPolicy, now int64) error {
	if err := policy.CheckID("agreement id", b.ID); err != nil {
		return err
	}
	if err := checkPositive("spot id", b.SpotID); err != nil {
		return err
	}
	if err := checkPositive("creative id", b.CreativeID); err != nil {
		return err
	}
	if b.StartTime < now {
		return invalid("start time is less than current time")
	}
	if b.EndTime <= now {
		return invalid("end time is less than current time")
	}
	if b.EndTime <= b.StartTime {
		return invalid("start time must be less than end time")
	}
	return nil
}

// Agreement is the escrow record binding one creative, one ad spot, a
// deposit and a display window. The spot fields are a copy taken when the
// agreement was formed.
type Agreement struct {
	ID             int64           `json:"id"`
	SpotID         int64           `json:"spot_id"`
	CreativeID     int64           `json:"creative_id"`
	AdvertiserCost decimal.Decimal `json:"advertiser_cost"`
	StartTime      int64           `json:"start_time"`
	EndTime        int64           `json:"end_time"`
	Settled        bool            `json:"settled"`
	Advertiser     string          `json:"advertiser"`
	Publisher      string          `json:"publisher"`
	SpotName       string          `json:"spot_name"`
	PublisherEarn  *int64          `json:"publisher_earn,omitempty"`
	ShowKind       *string         `json:"show_kind,omitempty"`
	Platform       string          `json:"platform"`
	PlatformFee    decimal.Decimal `json:"platform_fee"`
	Status         AgreementStatus `json:"status"`
}

// NewAgreement checks the deposit against the spot price and the caller
// against the creative owner, then builds the signed agreement.
func NewAgreement(b Booking, creative Creative, spot AdSpot, deposit decimal.Decimal, caller Caller) (Agreement, error) {
	if deposit.GreaterThan(MaxAmount) {
		return Agreement{}, invalid("deposit %s exceeds the maximum amount", deposit)
	}
	if deposit.LessThan(spot.Price) {
		return Agreement{}, &InsufficientDepositError{Attached: deposit, Required: spot.Price}
	}
	if caller.Principal != creative.Owner {
		return Agreement{}, ErrUnauthorizedCreativeUse
	}
	return Agreement{
		ID:             b.ID,
		SpotID:         spot.ID,
		CreativeID:     creative.ID,
		AdvertiserCost: deposit,
		StartTime:      b.StartTime,
		EndTime:        b.EndTime,
		Settled:        false,
		Advertiser:     caller.Principal,
		Publisher:      spot.Owner,
		SpotName:       spot.Name,
		PublisherEarn:  cloneInt64(spot.PublisherEarn),
		ShowKind:       cloneString(spot.ShowKind),
		Platform:       caller.Contract,
		PlatformFee:    PlatformFee(deposit),
		Status:         StatusSigned,
	}, nil
}

// PublisherPayout is the part of the deposit released to the publisher.
func (a Agreement) PublisherPayout() decimal.Decimal {
	return a.AdvertiserCost.Sub(a.PlatformFee)
}

// Settle returns the settled copy of a together with the transfer that pays
// the publisher. a itself is left untouched.
func (a Agreement) Settle(now int64) (Agreement, Transfer, error) {
	if a.Settled {
		return Agreement{}, Transfer{}, errs.Wrapf(ErrAlreadySettled, "agreement %d", a.ID)
	}
	if now < a.EndTime {
		return Agreement{}, Transfer{}, errs.Wrapf(ErrWindowNotElapsed, "agreement %d ends at %d", a.ID, a.EndTime)
	}
	settled := a
	settled.Settled = true
	settled.Status = StatusSuccess
	t := Transfer{
		Key:         TransferKey(a.ID),
		AgreementID: a.ID,
		Recipient:   a.Publisher,
		Amount:      a.PublisherPayout(),
		Status:      TransferPending,
		CreatedAt:   now,
	}
	return settled, t, nil
}

// TransferKey is the idempotency key of the single payout of an agreement.
func TransferKey(agreementID int64) string {
	return fmt.Sprintf("agreement-%d", agreementID)
}
