package response

// ResendOTPResponse is the result of the resend-otp callable.
type ResendOTPResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// CallableResult wraps a callable function result as {"result": ...}.
type CallableResult struct {
	Result any `json:"result"`
}

// CallableError is the {"error": {...}} body of a failed callable.
type CallableError struct {
	Error CallableErrorBody `json:"error"`
}

type CallableErrorBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
