package events

type OrderLine struct {
	ProductID   string `json:"product_id"`
	VariationID string `json:"variation_id,omitempty"`
	Qty         int    `json:"qty"`
	UnitPrice   int64  `json:"unit_price"`
}

type OrderCreatedPayload struct {
	OrderID string      `json:"order_id"`
	Number  string      `json:"number"`
	UserID  string      `json:"user_id"`
	Items   []OrderLine `json:"items"`
	Total   int64       `json:"total"`
}

type OrderStatusChangedPayload struct {
	OrderID string `json:"order_id"`
	Number  string `json:"number"`
	UserID  string `json:"user_id"`
	From    string `json:"from"`
	To      string `json:"to"`
	ActorID string `json:"actor_id,omitempty"`
}

type RefundPayload struct {
	OrderID  string `json:"order_id"`
	Number   string `json:"number"`
	UserID   string `json:"user_id"`
	ItemID   string `json:"item_id"`
	Qty      int    `json:"qty"`
	State    string `json:"state"`
	Amount   int64  `json:"amount,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Approved bool   `json:"approved,omitempty"`
}

type PaymentLinkedPayload struct {
	OrderID  string `json:"order_id"`
	Number   string `json:"number"`
	UserID   string `json:"user_id"`
	Provider string `json:"provider"`
	Ref      string `json:"ref"`
	Amount   int64  `json:"amount"`
}

type AssignmentPayload struct {
	AssignmentID string `json:"assignment_id"`
	OrderID      string `json:"order_id"`
	RiderID      string `json:"rider_id"`
	RiderUserID  string `json:"rider_user_id"`
	RiderName    string `json:"rider_name"`
	Status       string `json:"status"`
	Note         string `json:"note,omitempty"`
}
