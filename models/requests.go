package models

// InitializePaymentRequest is the body of POST /payments/initialize.
type InitializePaymentRequest struct {
	Email    string               `json:"email" binding:"required,email"`
	Amount   int64                `json:"amount" binding:"required,min=1"` // kobo
	Phone    string               `json:"phone" binding:"omitempty,ng_phone"`
	Password string               `json:"password"`
	Metadata RegistrationMetadata `json:"metadata"`
}

// RegistrationMetadata carries the candidate intake captured before payment.
type RegistrationMetadata struct {
	Name     string `json:"name"`
	StateID  int    `json:"state_id"`
	LGAID    int    `json:"lga_id"`
	SchoolID int    `json:"school_id"`
}

type InitializePaymentResponse struct {
	AuthorizationURL string `json:"authorizationUrl"`
	Reference        string `json:"reference"`
}

type VerifyPaymentRequest struct {
	Reference string `json:"reference" binding:"required"`
}
