package api

const APIVersion = "1.0"

// Google JSON API style response envelope
type APIResponse struct {
	APIVersion string        `json:"apiVersion"`
	Data       any           `json:"data,omitempty"`
	Error      *APIErrorInfo `json:"error,omitempty"`
}

type APIErrorInfo struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func NewDataResponse(data any) APIResponse {
	return APIResponse{APIVersion: APIVersion, Data: data}
}

func NewErrorResponse(code int, message string) APIResponse {
	return APIResponse{APIVersion: APIVersion, Error: &APIErrorInfo{Code: code, Message: message}}
}

type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema any    `json:"inputSchema"`
}

type RevokeMembershipRequest struct {
	UserID         uint `json:"user_id"`
	OrganizationID uint `json:"organization_id"`
}

type RevokeMembershipResponse struct {
	Revoked int `json:"revoked"`
}
