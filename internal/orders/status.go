package orders

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusPaid       Status = "PAID"
	StatusProcessing Status = "PROCESSING"
	StatusShipped    Status = "SHIPPED"
	StatusDelivered  Status = "DELIVERED"
	StatusCancelled  Status = "CANCELLED"
	StatusRefunded   Status = "REFUNDED"
)

// Admin-reachable edges. PENDING -> PAID is intentionally absent: only the
// payment reconciliation handler may mark an order paid.
var validNext = map[Status]map[Status]bool{
	StatusPending:    {StatusCancelled: true},
	StatusPaid:       {StatusProcessing: true, StatusCancelled: true, StatusRefunded: true},
	StatusProcessing: {StatusShipped: true, StatusCancelled: true, StatusRefunded: true},
	StatusShipped:    {StatusDelivered: true, StatusRefunded: true},
	StatusDelivered:  {StatusRefunded: true},
	StatusCancelled:  {},
	StatusRefunded:   {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// IsTerminal reports whether a status has no outgoing edges.
func IsTerminal(s Status) bool {
	return s == StatusCancelled || s == StatusRefunded
}

// Valid reports whether s is one of the known statuses.
func Valid(s Status) bool {
	_, ok := validNext[s]
	return ok
}

// ReleasesStock reports whether the from->to edge must restore reserved
// stock; every edge from a stock-holding state into a terminal one does.
func ReleasesStock(from, to Status) bool {
	return !IsTerminal(from) && IsTerminal(to)
}
