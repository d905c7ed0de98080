package domain

// ContractState is the one-time deployment record of the escrow contract.
type ContractState struct {
	Platform      string `json:"platform"`
	InitializedAt int64  `json:"initialized_at"`
}
