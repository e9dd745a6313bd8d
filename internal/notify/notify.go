// Package notify delivers user-facing notifications for deposit references and
// review decisions. Delivery is asynchronous and best-effort: a failed send is logged
// and dropped, it never undoes the state change that produced it.
package notify

import (
	"context"
	"time"
)

type Kind string

const (
	KindDepositReference Kind = "deposit_reference"
	KindKYCDecision      Kind = "kyc_decision"
	KindLoanDecision     Kind = "loan_decision"
)

type Recipient struct {
	UserID   string `json:"userId"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	FullName string `json:"fullName"`
}

type Notification struct {
	Kind      Kind              `json:"kind"`
	Recipient Recipient         `json:"recipient"`
	Data      map[string]string `json:"data"`
	CreatedAt time.Time         `json:"createdAt"`
}

// Sender delivers a single notification to an external channel.
type Sender interface {
	Send(ctx context.Context, n Notification) error
	Close() error
}

// Notifier accepts notifications without blocking the caller.
type Notifier interface {
	Notify(n Notification)
}

func newNotification(kind Kind, to Recipient, data map[string]string) Notification {
	return Notification{
		Kind:      kind,
		Recipient: to,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}
}

// DepositReference carries the token the client quotes on the bank transfer.
func DepositReference(to Recipient, reference, amount, currency string) Notification {
	return newNotification(KindDepositReference, to, map[string]string{
		"reference": reference,
		"amount":    amount,
		"currency":  currency,
	})
}

func KYCDecision(to Recipient, status, reason string) Notification {
	data := map[string]string{"status": status}
	if reason != "" {
		data["reason"] = reason
	}

	return newNotification(KindKYCDecision, to, data)
}

func LoanDecision(to Recipient, loanID, status, amount, reason string) Notification {
	data := map[string]string{
		"loanId": loanID,
		"status": status,
		"amount": amount,
	}
	if reason != "" {
		data["reason"] = reason
	}

	return newNotification(KindLoanDecision, to, data)
}
