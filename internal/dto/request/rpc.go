package request

// CallableRequest is the {"data": {...}} body of a callable function.
type CallableRequest[T any] struct {
	Data T `json:"data"`
}

type TransactionRef struct {
	TransactionID string `json:"transactionId"`
}
