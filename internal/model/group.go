package model

import "time"

// Group is a shared list addressed by a six-digit join code.
//
// Name is empty for groups created before names were mandatory; display code
// falls back to the join code in that case. The creator has no special rights
// once the group exists.
type Group struct {
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// DisplayName is Name, or the code when the group has no name.
func (g Group) DisplayName() string {
	if g.Name == "" {
		return g.Code
	}
	return g.Name
}

// Membership is one (user, group) link as seen from the user.
type Membership struct {
	Code     string    `json:"code"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joinedAt"`
}

// DisplayName is Name, or the code when the group has no name.
func (m Membership) DisplayName() string {
	if m.Name == "" {
		return m.Code
	}
	return m.Name
}
