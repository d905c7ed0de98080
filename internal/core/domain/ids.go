package domain

import "strings"

// Kind names one of the record namespaces held by the record store.
type Kind string

const (
	KindCreative  Kind = "creative"
	KindAdSpot    Kind = "adspot"
	KindAgreement Kind = "agreement"
)

// IDPolicy decides who assigns record ids.
type IDPolicy string

const (
	// IDPolicyCaller requires callers to supply a positive id.
	IDPolicyCaller IDPolicy = "caller"
	// IDPolicyAuto lets the record store assign the next id from a
	// per-kind counter. Callers pass zero.
	IDPolicyAuto IDPolicy = "auto"
)

// ParseIDPolicy normalises s. An empty string means IDPolicyCaller; any
// other unknown value is rejected.
func ParseIDPolicy(s string) (IDPolicy, error) {
	switch p := IDPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "", IDPolicyCaller:
		return IDPolicyCaller, nil
	case IDPolicyAuto:
		return IDPolicyAuto, nil
	default:
		return "", invalid("unknown id policy %q", s)
	}
}

// CheckID validates a record id supplied by a caller under the policy.
func (p IDPolicy) CheckID(field string, id int64) error {
	if p == IDPolicyAuto {
		if id != 0 {
			return invalid("%s is assigned by the store and must be omitted", field)
		}
		return nil
	}
	return checkPositive(field, id)
}

func checkPositive(field string, id int64) error {
	if id <= 0 {
		return invalid("%s must be positive", field)
	}
	return nil
}
