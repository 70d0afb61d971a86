package consts

const (
	// RequestId 请求链路透传的唯一ID
	RequestId = "request_id"
)
