package models

import (
	"strings"

	dErrors "electa/pkg/domain-errors"
)

// AddressRequest is the body for PUT /endElection and PUT /election.
type AddressRequest struct {
	Address string `json:"address"`
}

func (r *AddressRequest) Validate() error {
	r.Address = strings.TrimSpace(r.Address)
	if r.Address == "" {
		return dErrors.New(dErrors.CodeInvalidArgument, "Election address is required")
	}
	return nil
}
