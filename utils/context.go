package utils

// Context keys for request-scoped values set by the HTTP layer
const (
	RequestIDKey  = "request_id"
	UserAgentKey  = "user_agent"
	IPAddressKey  = "ip_address"
	EndpointKey   = "endpoint"
	TimeoutKey    = "timeout"
	CancelFuncKey = "cancel_func"
)
