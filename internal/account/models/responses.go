package models

import "time"

// AccountResponse is the public view of an account. Login code fields are
// never serialized.
type AccountResponse struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	EAddress        string    `json:"eAddress"`
	Role            string    `json:"role"`
	HasVoted        bool      `json:"hasVoted"`
	ElectionOngoing bool      `json:"electionOngoing"`
	CreatedAt       time.Time `json:"createdAt"`
}

func ToResponse(a *Account) AccountResponse {
	return AccountResponse{
		ID:              a.ID.String(),
		Name:            a.Name,
		Email:           a.Email,
		EAddress:        a.WalletAddress.String(),
		Role:            a.Role.String(),
		HasVoted:        a.HasVoted,
		ElectionOngoing: a.ElectionOngoing,
		CreatedAt:       a.CreatedAt,
	}
}

func ToResponses(accounts []*Account) []AccountResponse {
	out := make([]AccountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, ToResponse(a))
	}
	return out
}

type AccountEnvelope struct {
	Success bool            `json:"success"`
	User    AccountResponse `json:"user"`
}

type AccountListEnvelope struct {
	Success bool              `json:"success"`
	Users   []AccountResponse `json:"users"`
}

type MessageEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
