package checkoutapi

// CheckoutRequest is the body of POST /api/checkout
type CheckoutRequest struct {
	CheckoutUID  string       `json:"checkoutUid"`
	FormData     CheckoutForm `json:"formData"`
	Items        []LineItem   `json:"items"`
	IsDigital    bool         `json:"isDigital"`
	TotalInCents int64        `json:"total"`
}

type LineItem struct {
	ProductUID   string `json:"id"`
	Title        string `json:"title"`
	PriceInCents int64  `json:"price"`
	Quantity     int    `json:"quantity"`
	Type         string `json:"type"`
}

// CheckoutResponse carries the payment-provider client secret on success
type CheckoutResponse struct {
	ClientSecret string `json:"clientSecret,omitempty"`
	Error        string `json:"error,omitempty"`
}
