package models

import (
	accountModels "electa/internal/account/models"
)

// ReconciledAccount is an account with its live election view. ElectionOpen
// is derived per read and never written back to the account.
type ReconciledAccount struct {
	Account      *accountModels.Account
	Reference    Reference
	State        State
	ElectionOpen bool
	// Degraded is set when the ledger could not be read and the view fell
	// back to closed.
	Degraded bool
}

// ElectionResponse is the public view of the reference.
type ElectionResponse struct {
	Address    string `json:"address"`
	Started    bool   `json:"started"`
	Ended      bool   `json:"ended"`
	Transition string `json:"transition,omitempty"`
}

func ToElectionResponse(r Reference) ElectionResponse {
	return ElectionResponse{
		Address:    r.Address.String(),
		Started:    r.Started,
		Ended:      r.Ended,
		Transition: string(r.Transition),
	}
}

type ElectionEnvelope struct {
	Success  bool             `json:"success"`
	Election ElectionResponse `json:"election"`
}

type StatusEnvelope struct {
	Success       bool                          `json:"success"`
	User          accountModels.AccountResponse `json:"user"`
	ElectionOpen  bool                          `json:"electionOpen"`
	ElectionState State                         `json:"electionState"`
	Election      ElectionResponse              `json:"election"`
}

type FailureResponse struct {
	AccountID string `json:"id"`
	Email     string `json:"email"`
	Error     string `json:"error"`
}

// FanOutEnvelope reports a lifecycle command's per-account outcome.
type FanOutEnvelope struct {
	Success   bool              `json:"success"`
	Message   string            `json:"message,omitempty"`
	Total     int               `json:"total"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Errors    []FailureResponse `json:"errors,omitempty"`
}

func ToFanOutEnvelope(r FanOutResult, message string) FanOutEnvelope {
	env := FanOutEnvelope{
		Success:   len(r.Failures) == 0,
		Total:     r.Total,
		Succeeded: r.Succeeded,
		Failed:    len(r.Failures),
	}
	if env.Success {
		env.Message = message
	}
	for _, f := range r.Failures {
		env.Errors = append(env.Errors, FailureResponse{
			AccountID: f.AccountID.String(),
			Email:     f.Email,
			Error:     f.Err.Error(),
		})
	}
	return env
}
