package appErrors

import (
	"fmt"
	"testing"
)

func TestCampaignNotFoundSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("load campaign: %w", NewCampaignNotFound("42"))

	if !IsCampaignNotFound(err) {
		t.Fatalf("expected wrapped not-found error to be detected, got %v", err)
	}
	if IsValidation(err) {
		t.Fatalf("not-found error must not look like a validation error")
	}
	if got := err.Error(); got != "load campaign: campaign with ID 42 not found" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestValidationMessage(t *testing.T) {
	if got := NewValidation("subscribers", "array required").Error(); got != "subscribers: array required" {
		t.Errorf("unexpected message %q", got)
	}
	if got := NewValidation("", "body required").Error(); got != "body required" {
		t.Errorf("unexpected message %q", got)
	}
}
