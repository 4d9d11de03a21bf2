package enums

import "fmt"

// NotificationType classifies the in-app and email notices sent to buyers and sellers.
type NotificationType string

const (
	NotificationTypeOrderPlaced       NotificationType = "order_placed"
	NotificationTypeOrderPaid         NotificationType = "order_paid"
	NotificationTypePaymentFailed     NotificationType = "payment_failed"
	NotificationTypeItemShipped       NotificationType = "item_shipped"
	NotificationTypeItemDelivered     NotificationType = "item_delivered"
	NotificationTypeItemCancelled     NotificationType = "item_cancelled"
	NotificationTypeDeliveryConfirmed NotificationType = "delivery_confirmed"
	NotificationTypePayoutSent        NotificationType = "payout_sent"
	NotificationTypePayoutFailed      NotificationType = "payout_failed"
)

// notificationTitles doubles as the set of known types.
var notificationTitles = map[NotificationType]string{
	NotificationTypeOrderPlaced:       "Order placed",
	NotificationTypeOrderPaid:         "Payment received",
	NotificationTypePaymentFailed:     "Payment failed",
	NotificationTypeItemShipped:       "Item shipped",
	NotificationTypeItemDelivered:     "Item delivered",
	NotificationTypeItemCancelled:     "Item cancelled",
	NotificationTypeDeliveryConfirmed: "Delivery confirmed",
	NotificationTypePayoutSent:        "Payout sent",
	NotificationTypePayoutFailed:      "Payout failed",
}

func (n NotificationType) String() string {
	return string(n)
}

func (n NotificationType) IsValid() bool {
	_, ok := notificationTitles[n]
	return ok
}

// DefaultTitle is the subject used when a notice is sent without one.
func (n NotificationType) DefaultTitle() string {
	return notificationTitles[n]
}

func ParseNotificationType(value string) (NotificationType, error) {
	if t := NotificationType(value); t.IsValid() {
		return t, nil
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
