package models

import (
	"fmt"

	id "electa/pkg/domain"
	dErrors "electa/pkg/domain-errors"
)

// AccountFailure is one account a fan-out could not fully process.
type AccountFailure struct {
	AccountID id.AccountID
	Email     string
	Err       error
}

// FanOutResult aggregates a lifecycle fan-out. Successful units stay
// applied regardless of failures elsewhere.
type FanOutResult struct {
	Total     int
	Succeeded int
	Failures  []AccountFailure
}

// Err is nil when every account succeeded and a partial_failure domain error
// wrapping *PartialFailureError otherwise.
func (r FanOutResult) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	pf := &PartialFailureError{Total: r.Total, Succeeded: r.Succeeded, Failures: r.Failures}
	return dErrors.Wrap(pf, dErrors.CodePartialFailure,
		fmt.Sprintf("%d of %d accounts failed", len(r.Failures), r.Total))
}

// PartialFailureError carries every per-account failure of a fan-out.
type PartialFailureError struct {
	Total     int
	Succeeded int
	Failures  []AccountFailure
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("fan-out partially failed: %d succeeded, %d failed", e.Succeeded, len(e.Failures))
}
