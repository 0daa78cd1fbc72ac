// Package notify turns subscription transition events into outbound notifications
// and delivers them to the mail collaborator through a message broker.
package notify

import (
	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain"
	"github.com/prajwal851851/QRCODE-PROJECT/pkg/timeutil"
)

// Template names understood by the mail collaborator
const (
	TemplateTrialStarted      = "billing.trial_started"
	TemplatePaymentRequested  = "billing.payment_requested"
	TemplateActivated         = "billing.subscription_activated"
	TemplateExtended          = "billing.subscription_extended"
	TemplatePaymentFailed     = "billing.payment_failed"
	TemplatePaymentDue        = "billing.payment_due"
	TemplateExpired           = "billing.subscription_expired"
	TemplateCancelled         = "billing.subscription_cancelled"
	TemplateSuspended         = "billing.subscription_suspended"
	TemplateTrialEndingSoon   = "billing.trial_ending_soon"
	TemplateRenewalReminder   = "billing.renewal_reminder"
	TemplateCredentialOTP     = "credentials.verification_code"
	TemplateOpsActivated      = "ops.subscription_activated"
	TemplateOpsPaymentPending = "ops.subscription_pending_payment"
)

var eventTemplates = map[domain.EventType]string{
	domain.EventTrialStarted:     TemplateTrialStarted,
	domain.EventPaymentRequested: TemplatePaymentRequested,
	domain.EventActivated:        TemplateActivated,
	domain.EventExtended:         TemplateExtended,
	domain.EventPaymentFailed:    TemplatePaymentFailed,
	domain.EventPaymentDue:       TemplatePaymentDue,
	domain.EventExpired:          TemplateExpired,
	domain.EventCancelled:        TemplateCancelled,
	domain.EventSuspended:        TemplateSuspended,
	domain.EventTrialEndingSoon:  TemplateTrialEndingSoon,
	domain.EventRenewalReminder:  TemplateRenewalReminder,
}

var opsTemplates = map[domain.EventType]string{
	domain.EventActivated:  TemplateOpsActivated,
	domain.EventPaymentDue: TemplateOpsPaymentPending,
}

// Render builds the notifications for one event. The admin is always the first
// recipient; opsRecipient, when set, receives copies of activations and payment-due notices.
func Render(e domain.TransitionEvent, opsRecipient string) []domain.Notification {
	template, ok := eventTemplates[e.Type]
	if !ok || e.AdminEmail == "" {
		return nil
	}
	data := eventData(e)
	out := []domain.Notification{{Recipient: e.AdminEmail, Template: template, Data: data}}
	if ops, ok := opsTemplates[e.Type]; ok && opsRecipient != "" {
		out = append(out, domain.Notification{Recipient: opsRecipient, Template: ops, Data: data})
	}
	return out
}

func eventData(e domain.TransitionEvent) map[string]interface{} {
	data := map[string]interface{}{
		"subscription_id": e.SubscriptionID.String(),
		"admin_id":        e.AdminID,
		"admin_email":     e.AdminEmail,
		"status":          string(e.To),
		"previous_status": string(e.From),
		"amount":          e.Amount.String(),
		"currency":        e.Currency,
		"occurred_at":     e.OccurredAt,
	}
	if e.TransactionRef != "" {
		data["transaction_id"] = e.TransactionRef
	}
	if e.PeriodEnd != nil {
		data["period_end"] = timeutil.DateKey(*e.PeriodEnd)
	}
	return data
}
