package domain

// Caller is the identity collaborator's view of one invocation: who is
// calling and which contract (platform account) is being called.
type Caller struct {
	Principal string
	Contract  string
	// Trusted marks an authorized settlement trigger other than the
	// contract account itself, e.g. an operator token.
	Trusted bool
}

// Anonymous reports whether no principal was supplied.
func (c Caller) Anonymous() bool {
	return c.Principal == ""
}

// MaySettle reports whether the caller may release escrowed funds.
func (c Caller) MaySettle() bool {
	if c.Anonymous() {
		return false
	}
	return c.Trusted || c.Principal == c.Contract
}
