package models

// Operator is the authenticated caller of the management and tool APIs
type Operator struct {
	Subject      string `json:"subject"`
	AuthProvider string `json:"auth_provider"`
}
