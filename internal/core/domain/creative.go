package domain

import "unicode/utf8"

// MaxNameLength bounds creative and ad spot names, in characters.
const MaxNameLength = 100

// Creative is an advertiser's reusable ad asset. It is immutable once
// stored.
type Creative struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Content      string  `json:"content"`
	NFTReference *string `json:"nft_reference,omitempty"`
	Owner        string  `json:"owner"`
}

// NewCreative validates the input and returns the record owned by owner.
// Checks run in order: id, name, content.
func NewCreative(policy IDPolicy, id int64, name, content string, nftRef *string, owner string) (Creative, error) {
	if err := policy.CheckID("creative id", id); err != nil {
		return Creative{}, err
	}
	if err := checkName(name); err != nil {
		return Creative{}, err
	}
	if content == "" {
		return Creative{}, invalid("content is empty")
	}
	return Creative{
		ID:           id,
		Name:         name,
		Content:      content,
		NFTReference: cloneString(nftRef),
		Owner:        owner,
	}, nil
}

func checkName(name string) error {
	if name == "" {
		return invalid("name is empty")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return invalid("name is longer than %d characters", MaxNameLength)
	}
	return nil
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneInt64(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
