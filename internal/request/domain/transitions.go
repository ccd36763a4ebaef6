package domain

// The lifecycle is data, not control flow: adding a kind is an edit to
// these tables.

var initialStatus = map[Kind]Status{
	KindPayment:         StatusPending,
	KindFexiload:        StatusPending,
	KindMobileRecharge:  StatusPending,
	KindTrxRecharge:     StatusPending,
	KindLocationTracker: StatusPending,
	KindMerchantIssue:   StatusReportPending,
	KindPenaltyReport:   StatusReportPending,
}

var transitions = map[Kind]map[Status][]Status{
	KindPayment:        fulfillmentEdges(),
	KindFexiload:       fulfillmentEdges(),
	KindMobileRecharge: fulfillmentEdges(),
	KindTrxRecharge:    fulfillmentEdges(),
	KindLocationTracker: {
		StatusPending:  {StatusApproved, StatusRejected},
		StatusApproved: {StatusCompleted},
	},
	KindMerchantIssue: {
		StatusReportPending: {StatusInProgress, StatusResolved, StatusReportRejected},
		StatusInProgress:    {StatusResolved, StatusReportRejected},
	},
	KindPenaltyReport: {
		StatusReportPending: {StatusProcessed, StatusReportRejected},
	},
}

// voucherStates are the terminal resolution states that earn the
// reporter a compensation voucher.
var voucherStates = map[Kind]Status{
	KindMerchantIssue: StatusResolved,
	KindPenaltyReport: StatusProcessed,
}

func fulfillmentEdges() map[Status][]Status {
	return map[Status][]Status{
		StatusPending: {StatusCompleted, StatusFailed},
	}
}

// InitialStatus returns the state a freshly created request starts in.
func InitialStatus(kind Kind) (Status, error) {
	status, ok := initialStatus[kind]
	if !ok {
		return "", ErrInvalidKind
	}
	return status, nil
}

// ValidStatus reports whether a status belongs to the kind's vocabulary.
func ValidStatus(kind Kind, status Status) bool {
	edges, ok := transitions[kind]
	if !ok {
		return false
	}
	if _, ok := edges[status]; ok {
		return true
	}
	for _, targets := range edges {
		for _, target := range targets {
			if target == status {
				return true
			}
		}
	}
	return false
}

// IsTerminal reports whether no edge leaves the given status.
func IsTerminal(kind Kind, status Status) bool {
	edges, ok := transitions[kind]
	if !ok {
		return false
	}
	return len(edges[status]) == 0
}

// ValidateTransition checks whether a request may move from current to
// requested. Requesting the current status again is an idempotent no-op
// and is allowed, so retried updates stay harmless.
func ValidateTransition(kind Kind, current, requested Status) error {
	edges, ok := transitions[kind]
	if !ok {
		return ErrInvalidKind
	}
	if current == requested {
		return nil
	}
	for _, target := range edges[current] {
		if target == requested {
			return nil
		}
	}
	return ErrInvalidTransition
}

// VoucherEligible reports whether landing in status entitles the owner
// of a kind request to a compensation voucher.
func VoucherEligible(kind Kind, status Status) bool {
	return voucherStates[kind] == status
}
