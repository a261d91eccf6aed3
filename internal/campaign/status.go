package campaign

import (
	"fmt"

	"github.com/foxzi/campaigner/internal/models"
)

// transitions lists the allowed status changes; sending->sending resumes an
// interrupted run
var transitions = map[models.CampaignStatus][]models.CampaignStatus{
	models.CampaignReady: {models.CampaignSending},
	models.CampaignSending: {
		models.CampaignSending,
		models.CampaignCompleted,
		models.CampaignCompletedWithErrors,
	},
}

// CanTransition reports whether a campaign may move from one status to another
func CanTransition(from, to models.CampaignStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition returns ErrInvalidTransition for a disallowed change
func Transition(from, to models.CampaignStatus) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// FinalStatus is the terminal status of a run with the given failure count
func FinalStatus(failed int) models.CampaignStatus {
	if failed == 0 {
		return models.CampaignCompleted
	}
	return models.CampaignCompletedWithErrors
}

// Dispatchable reports whether a campaign in status may be sent
func Dispatchable(status models.CampaignStatus) bool {
	return status == models.CampaignReady || status == models.CampaignSending
}
