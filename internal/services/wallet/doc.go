/*
Package wallet owns the client point balance.

Every balance change runs as one store transaction: the wallet row is read,
the new balance is written with a version check, and the ledger row is
appended. A version conflict retries the whole unit. Because the wallet write
and the ledger append commit together, the stored balance always equals

	Σ completed charge + Σ refund - Σ use - Σ expired

for the client, which Reconcile verifies.

Usage:

	svc := wallet.NewService(repo, cache, gateway, publisher, wallet.WalletConfig{}, logger)

	// Instant card charge with the default 365 day expiry
	days := 0
	res, err := svc.Charge(ctx, wallet.ChargeRequest{
	    ClientID:        clientID,
	    Amount:          5000,
	    Method:          models.ChargeMethodCredit,
	    PaymentMethodID: "pm_card_visa",
	    ExpirationDays:  &days,
	})

	// Spend points for a booking
	res, err = svc.Use(ctx, clientID, 3000, "booking X")

Bank transfer charges only create a pending row; the approval package credits
them once an admin confirms the transfer.

Errors are DomainErrors from internal/errors:
  - ErrInvalidAmount, ErrInvalidMethod, ErrInvalidClient: rejected input
  - ErrInsufficientBalance: a debit larger than the balance
  - ErrPaymentDeclined: the card gateway refused the charge
  - ErrConcurrentModification: retries were exhausted
  - ErrStoreFailure: anything the ledger store reported
*/
package wallet
