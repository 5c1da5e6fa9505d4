package model

import "fmt"

type ApplicationStatus string

const (
	ApplicationStatusApplied  ApplicationStatus = "APPLIED"
	ApplicationStatusApproved ApplicationStatus = "APPROVED"
	ApplicationStatusOffered  ApplicationStatus = "OFFERED"
	ApplicationStatusRejected ApplicationStatus = "REJECTED"
)

// Application is a member's application to a project posting. Contracts are offered from it.
type Application struct {
	ID             int64
	ProjectID      int64
	ProjectOwnerID int64
	ApplicantID    int64
	Status         ApplicationStatus
}

func (a *Application) MarkOffered() error {
	if a.Status != ApplicationStatusApproved {
		return fmt.Errorf("%w: application %d is %s", ErrInvalidStateTransition, a.ID, a.Status)
	}
	a.Status = ApplicationStatusOffered
	return nil
}

// RevertOffer puts an offered application back to APPROVED so the owner can reject or re-offer it.
func (a *Application) RevertOffer() {
	if a.Status == ApplicationStatusOffered {
		a.Status = ApplicationStatusApproved
	}
}
