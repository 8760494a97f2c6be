package booking

import (
	"convoydesk/internal/domain"
	"convoydesk/internal/domain/conflict"
)

const (
	ReasonBookingOverlap = "Booking overlap"
	ReasonReviewMode     = "Review mode enabled"
	ReasonNoConflicts    = "No conflicts"
)

type Decision struct {
	Status domain.BookingStatus
	Reason string
	Source domain.ReasonSource
}

// DecideInitialStatus maps a conflict result to the status a new booking starts in.
// Closures always decline; review mode only softens booking overlaps.
func DecideInitialStatus(res conflict.Result, reviewMode bool) Decision {
	switch res.Kind {
	case conflict.KindClosure:
		reason := res.Reason
		if reason == "" {
			reason = conflict.FallbackClosureReason
		}
		return Decision{Status: domain.StatusDeclined, Reason: reason, Source: domain.ReasonClosure}
	case conflict.KindBooking:
		if reviewMode {
			return Decision{Status: domain.StatusReview, Reason: ReasonBookingOverlap, Source: domain.ReasonSystem}
		}
		return Decision{Status: domain.StatusDeclined, Reason: ReasonBookingOverlap, Source: domain.ReasonSystem}
	}

	if reviewMode {
		return Decision{Status: domain.StatusReview, Reason: ReasonReviewMode, Source: domain.ReasonSystem}
	}
	return Decision{Status: domain.StatusRequested, Reason: ReasonNoConflicts, Source: domain.ReasonSystem}
}
