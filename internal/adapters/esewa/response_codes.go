package esewa

// Response codes reported back to the frontend after a verification
const (
	ResponseCodeSuccess = "000"
	ResponseCodeFailed  = "101"
	ResponseCodeTimeout = "102"
	ResponseCodeError   = "103"
)

// ResponseCodeInfo contains detailed information about a response code
type ResponseCodeInfo struct {
	Code        string
	Display     string
	Description string
	IsApproved  bool
	IsRetriable bool
	UserMessage string
}

var responseCodes = map[string]ResponseCodeInfo{
	ResponseCodeSuccess: {
		Code:        ResponseCodeSuccess,
		Display:     "SUCCESS",
		Description: "Payment verified by the gateway",
		IsApproved:  true,
		UserMessage: "Payment successful",
	},
	ResponseCodeFailed: {
		Code:        ResponseCodeFailed,
		Display:     "FAILED",
		Description: "Gateway reported the payment as not completed",
		UserMessage: "Payment failed. Please try again.",
	},
	ResponseCodeTimeout: {
		Code:        ResponseCodeTimeout,
		Display:     "TIMEOUT",
		Description: "Verification timed out or the gateway was unreachable",
		IsRetriable: true,
		UserMessage: "We could not confirm your payment yet. Please check again in a few minutes.",
	},
	ResponseCodeError: {
		Code:        ResponseCodeError,
		Display:     "ERROR",
		Description: "Unexpected verification error",
		IsRetriable: true,
		UserMessage: "Something went wrong while confirming your payment. Please contact support if you were charged.",
	},
}

// GetResponseCode returns information about a response code.
// Unknown codes map to the generic error entry.
func GetResponseCode(code string) ResponseCodeInfo {
	if info, ok := responseCodes[code]; ok {
		return info
	}
	return responseCodes[ResponseCodeError]
}
