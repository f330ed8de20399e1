package api

// API response types for REST endpoints and WebSocket messages

// WhitelistInfo is one approved secondary symbol.
type WhitelistInfo struct {
	Symbol    string `json:"symbol"`
	Precision uint8  `json:"precision"`
	Issuer    string `json:"issuer"`
}

// OrderInfo is one resting order.
type OrderInfo struct {
	ID        uint64 `json:"id"`
	Side      string `json:"side"`
	Owner     string `json:"owner"`
	Bid       string `json:"bid"`       // remaining offered value, e.g. "10.0000 TNG"
	Ask       string `json:"ask"`       // remaining requested value
	UnitPrice string `json:"unitPrice"` // decimal, native per whole secondary unit
	CreatedAt int64  `json:"createdAt"` // unix milliseconds
}

// BookSnapshot is both sides of one pair in matching priority order.
type BookSnapshot struct {
	Symbol    string      `json:"symbol"`
	Buys      []OrderInfo `json:"buys"`  // best bid first
	Sells     []OrderInfo `json:"sells"` // best ask first
	Timestamp int64       `json:"timestamp"`
}

// BalanceInfo is one account's holding of one symbol on one token contract.
type BalanceInfo struct {
	Token   string `json:"token"`
	Symbol  string `json:"symbol"`
	Balance string `json:"balance"`
}

// ErrorResponse is returned for all errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// WSSubscribeRequest is sent by a client to subscribe to channels.
type WSSubscribeRequest struct {
	Op       string   `json:"op"`       // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"` // e.g., ["receipts", "receipts:ABC"]
}
