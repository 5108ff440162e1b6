package enums

import "fmt"

// AdjustmentType describes how a stock adjustment changes current stock.
type AdjustmentType string

const (
	AdjustmentTypeIncrease AdjustmentType = "INCREASE"
	AdjustmentTypeDecrease AdjustmentType = "DECREASE"
	AdjustmentTypeSet      AdjustmentType = "SET"
)

var validAdjustmentTypes = []AdjustmentType{
	AdjustmentTypeIncrease,
	AdjustmentTypeDecrease,
	AdjustmentTypeSet,
}

// String implements fmt.Stringer.
func (t AdjustmentType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known AdjustmentType.
func (t AdjustmentType) IsValid() bool {
	for _, candidate := range validAdjustmentTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// Preview computes the stock that results from applying the adjustment to previous.
func (t AdjustmentType) Preview(previous, quantity int) int {
	switch t {
	case AdjustmentTypeIncrease:
		return previous + quantity
	case AdjustmentTypeDecrease:
		return previous - quantity
	case AdjustmentTypeSet:
		return quantity
	default:
		return previous
	}
}

// ParseAdjustmentType converts raw input into an AdjustmentType.
func ParseAdjustmentType(value string) (AdjustmentType, error) {
	for _, candidate := range validAdjustmentTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid adjustment type %q", value)
}

// AdjustmentStatus tracks the approval state of a stock adjustment.
type AdjustmentStatus string

const (
	AdjustmentStatusPending  AdjustmentStatus = "PENDING"
	AdjustmentStatusApproved AdjustmentStatus = "APPROVED"
	AdjustmentStatusRejected AdjustmentStatus = "REJECTED"
)

var validAdjustmentStatuses = []AdjustmentStatus{
	AdjustmentStatusPending,
	AdjustmentStatusApproved,
	AdjustmentStatusRejected,
}

// String implements fmt.Stringer.
func (s AdjustmentStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known AdjustmentStatus.
func (s AdjustmentStatus) IsValid() bool {
	for _, candidate := range validAdjustmentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (s AdjustmentStatus) IsTerminal() bool {
	return s == AdjustmentStatusApproved || s == AdjustmentStatusRejected
}

// CanTransitionTo reports whether an adjustment may move from s to next.
func (s AdjustmentStatus) CanTransitionTo(next AdjustmentStatus) bool {
	return s == AdjustmentStatusPending && next.IsTerminal()
}

// ParseAdjustmentStatus converts raw input into an AdjustmentStatus.
func ParseAdjustmentStatus(value string) (AdjustmentStatus, error) {
	for _, candidate := range validAdjustmentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid adjustment status %q", value)
}

// ReviewDecision is the reviewer's verdict on a pending adjustment.
type ReviewDecision string

const (
	ReviewDecisionApprove ReviewDecision = "approve"
	ReviewDecisionReject  ReviewDecision = "reject"
)

// IsValid reports whether the value is a known ReviewDecision.
func (d ReviewDecision) IsValid() bool {
	return d == ReviewDecisionApprove || d == ReviewDecisionReject
}

// TargetStatus returns the adjustment status the decision produces.
func (d ReviewDecision) TargetStatus() AdjustmentStatus {
	if d == ReviewDecisionApprove {
		return AdjustmentStatusApproved
	}
	return AdjustmentStatusRejected
}

// ParseReviewDecision converts raw input into a ReviewDecision.
func ParseReviewDecision(value string) (ReviewDecision, error) {
	d := ReviewDecision(value)
	if !d.IsValid() {
		return "", fmt.Errorf("invalid review decision %q", value)
	}
	return d, nil
}
