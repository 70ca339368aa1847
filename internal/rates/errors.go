package rates

// UpstreamError reports a failed or unusable answer from the rates API.
type UpstreamError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *UpstreamError) Unwrap() error { return e.Err }
