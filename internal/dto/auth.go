package dto

// ConnectPrompt is what the UI shows the user while the device flow waits
// for authorization on another device.
type ConnectPrompt struct {
	UserCode        string `json:"userCode"`
	VerificationURI string `json:"verificationUri"`
	ExpiresAt       string `json:"expiresAt"`
}

// ConnectResult reports a completed authentication.
type ConnectResult struct {
	Account   string `json:"account"`
	UserName  string `json:"userName,omitempty"`
	UserEmail string `json:"userEmail,omitempty"`
}
