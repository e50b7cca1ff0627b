package validator

// Result is the outcome of a validation check: success, or failure with a
// reason
type Result struct {
	failed bool
	reason string
}

// Success returns a successful result
func Success() Result {
	return Result{}
}

// Failure returns a failed result carrying reason
func Failure(reason string) Result {
	return Result{failed: true, reason: reason}
}

// IsSuccess reports whether the result is a success
func (r Result) IsSuccess() bool {
	return !r.failed
}

// IsFailure reports whether the result is a failure
func (r Result) IsFailure() bool {
	return r.failed
}

// Reason returns the failure reason, empty on success
func (r Result) Reason() string {
	return r.reason
}

func (r Result) String() string {
	if r.failed {
		return "Failure(" + r.reason + ")"
	}
	return "Success"
}

// Check is a single validation step. A non-nil error aborts validation
// altogether and is not a validation failure.
type Check func() (Result, error)

// Then runs next only when r is a success
func (r Result) Then(next Check) (Result, error) {
	if r.failed {
		return r, nil
	}
	return next()
}

// Sequence runs checks in order. The first failure or error stops the chain
// and is returned; later checks do not run.
func Sequence(checks ...Check) (Result, error) {
	result := Success()
	for _, check := range checks {
		var err error
		result, err = result.Then(check)
		if err != nil {
			return Result{}, err
		}
		if result.IsFailure() {
			return result, nil
		}
	}
	return result, nil
}
