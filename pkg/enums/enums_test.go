package enums

import "testing"

func TestParseFulfillmentStatus(t *testing.T) {
	got, err := ParseFulfillmentStatus("shipped")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != FulfillmentStatusShipped {
		t.Fatalf("expected shipped, got %s", got)
	}
	if _, err := ParseFulfillmentStatus("lost"); err == nil {
		t.Fatal("expected unknown status to be rejected")
	}
}

func TestDisbursementStatusClaimable(t *testing.T) {
	cases := map[DisbursementStatus]bool{
		DisbursementStatusNone:       true,
		DisbursementStatusPending:    true,
		DisbursementStatusFailed:     true,
		"":                           true,
		DisbursementStatusProcessing: false,
		DisbursementStatusCompleted:  false,
	}
	for status, want := range cases {
		if got := status.Claimable(); got != want {
			t.Fatalf("Claimable(%q) = %v, want %v", status, got, want)
		}
	}
}

func TestPayoutStatusRetryable(t *testing.T) {
	if !PayoutStatusTimeout.Retryable() || !PayoutStatusFailed.Retryable() {
		t.Fatal("failed and timeout payouts must be retryable")
	}
	if PayoutStatusInitiated.Retryable() || PayoutStatusCompleted.Retryable() {
		t.Fatal("initiated and completed payouts must not be retryable")
	}
	if PayoutStatusInitiated.IsTerminal() {
		t.Fatal("initiated is not terminal")
	}
}

func TestCollectionStatusTerminal(t *testing.T) {
	if CollectionStatusProcessing.IsTerminal() || CollectionStatusPending.IsTerminal() {
		t.Fatal("pending and processing are not terminal")
	}
	if !CollectionStatusCancelled.IsTerminal() {
		t.Fatal("cancelled is terminal")
	}
}

func TestUserRoleIsValid(t *testing.T) {
	if !UserRoleAdmin.IsValid() {
		t.Fatal("admin should be valid")
	}
	if UserRole("owner").IsValid() {
		t.Fatal("owner should be invalid")
	}
}

func TestNotificationTypeTitles(t *testing.T) {
	if NotificationTypePayoutFailed.DefaultTitle() != "Payout failed" {
		t.Fatalf("unexpected title %q", NotificationTypePayoutFailed.DefaultTitle())
	}
	if _, err := ParseNotificationType("order_paid"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ParseNotificationType("newsletter"); err == nil {
		t.Fatal("expected unknown type to be rejected")
	}
	if NotificationType("newsletter").DefaultTitle() != "" {
		t.Fatal("unknown type has no title")
	}
}
