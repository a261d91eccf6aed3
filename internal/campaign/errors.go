package campaign

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for campaign assembly and dispatch
var (
	ErrCampaignExists    = errors.New("campaign_already_exists")
	ErrCampaignNotFound  = errors.New("campaign_not_found")
	ErrInvalidStatus     = errors.New("invalid_campaign_status")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidName       = errors.New("invalid campaign name")
)

// ValidateName rejects blank campaign names
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidName)
	}
	return nil
}
