package orders

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:    {StatusProcessing: true, StatusCancelled: true},
	StatusProcessing: {StatusShipped: true, StatusCancelled: true},
	StatusShipped:    {StatusDelivered: true},
	StatusDelivered:  {StatusRefunded: true},
	StatusCancelled:  {StatusRefunded: true},
	StatusRefunded:   {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// RefundState is tracked per order item.
type RefundState string

const (
	RefundNone      RefundState = "none"
	RefundRequested RefundState = "requested"
	RefundApproved  RefundState = "approved"
	RefundRejected  RefundState = "rejected"
	RefundCompleted RefundState = "refunded"
)

var refundNext = map[RefundState]map[RefundState]bool{
	RefundNone:      {RefundRequested: true},
	RefundRequested: {RefundApproved: true, RefundRejected: true},
	RefundApproved:  {RefundCompleted: true},
	RefundRejected:  {RefundRequested: true},
	RefundCompleted: {RefundRequested: true},
}

// CanRefundTransition checks the per-item state table. A completed item
// may be requested again only while it still has refundable units.
func CanRefundTransition(it Item, to RefundState) bool {
	if it.RefundState == RefundCompleted && it.Refundable() <= 0 {
		return false
	}
	return refundNext[it.RefundState][to]
}

// Order-level refund summary.
const (
	RefundSummaryNone    = "none"
	RefundSummaryPending = "pending"
	RefundSummaryPartial = "partial"
	RefundSummaryFull    = "refunded"
)

// SummarizeRefunds derives the order-level refund status from its items.
// Pending wins over partial so open requests stay visible.
func SummarizeRefunds(items []Item) string {
	if len(items) == 0 {
		return RefundSummaryNone
	}
	pending, refunded, full := false, false, true
	for _, it := range items {
		switch it.RefundState {
		case RefundRequested, RefundApproved:
			pending = true
		}
		if it.RefundQty > 0 {
			refunded = true
		}
		if it.Refundable() > 0 {
			full = false
		}
	}
	switch {
	case full:
		return RefundSummaryFull
	case pending:
		return RefundSummaryPending
	case refunded:
		return RefundSummaryPartial
	default:
		return RefundSummaryNone
	}
}
