package models

// HorizonRequest is the body of the ARIMA, GARCH and VAR predict endpoints.
// Steps is decoded loosely so a non-integer horizon reaches the orchestrator
// as an invalid parameter; it stays nil when omitted.
type HorizonRequest struct {
	Steps any `json:"steps"`
}

// LSTMRequest is the body of the LSTM predict endpoint. Input accepts any JSON
// value and is coerced to numbers by the orchestrator.
type LSTMRequest struct {
	Input any `json:"input"`
	// Raw marks Input as prices that still need scaling.
	Raw bool `json:"raw"`
}
