package tracker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/filagate03/FIT-AAAAAI/internal/model"
	"github.com/filagate03/FIT-AAAAAI/internal/payments"
	"github.com/filagate03/FIT-AAAAAI/internal/subs"
)

// StartSubscriptionPayment creates a provider session for the requested plan
// and records it as the single pending payment. While a payment awaits
// confirmation no new one can be started; refresh or let it settle first.
func (t *Tracker) StartSubscriptionPayment(ctx context.Context, tier model.Tier, period model.SubscriptionPeriod) (payments.Session, error) {
	if !tier.Paid() {
		return payments.Session{}, fmt.Errorf("tracker: tier %q is not purchasable", tier)
	}
	if t.store.Get().Billing.PendingPaymentID != "" {
		return payments.Session{}, ErrPaymentPending
	}

	user := t.User()
	session, err := t.gateway.Create(ctx, tier, period, t.returnURL, payments.Metadata{
		Tier:       tier,
		TelegramID: user.ID,
		UserID:     strconv.FormatInt(user.ID, 10),
	})
	if err != nil {
		t.log.Error("failed to create payment", zap.String("tier", string(tier)), zap.Error(err))
		return payments.Session{}, err
	}

	t.store.Update(func(s model.AppState) model.AppState {
		s.Billing.PendingPaymentID = session.PaymentID
		s.Billing.PendingTier = tier
		s.Billing.PendingPeriod = period
		return s
	})
	return session, nil
}

// RefreshPaymentStatus polls the provider for the pending payment and
// reconciles the outcome into state. Concurrent calls collapse into one
// in-flight poll; late callers observe a no-op.
func (t *Tracker) RefreshPaymentStatus(ctx context.Context) (model.PaymentStatus, error) {
	t.mu.Lock()
	if t.refreshing {
		t.mu.Unlock()
		return "", nil
	}
	t.refreshing = true
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		t.refreshing = false
		t.mu.Unlock()
	}()

	snapshot := t.store.Get()
	paymentID := snapshot.Billing.PendingPaymentID
	if paymentID == "" {
		return "", ErrNoPendingPayment
	}

	status, err := t.gateway.Status(ctx, paymentID)
	if err != nil {
		t.log.Error("failed to poll payment status", zap.String("payment_id", paymentID), zap.Error(err))
		return "", err
	}

	switch status {
	case model.PaymentSucceeded, model.PaymentWaitingForCapture:
		t.finalizePayment(ctx, snapshot.Billing, status)
	case model.PaymentCanceled:
		t.store.Update(func(s model.AppState) model.AppState {
			s.Billing = clearPending(s.Billing, paymentID, status, t.now())
			return s
		})
		t.events.Toast("Платёж не прошёл. Попробуйте ещё раз.")
	}
	// pending, failed and unknown statuses leave state untouched so the
	// next poll can pick up the final outcome
	return status, nil
}

// finalizePayment activates the purchased plan. waiting_for_capture counts
// as success: the hold is already placed and capture is the provider's job.
func (t *Tracker) finalizePayment(ctx context.Context, billing model.BillingState, status model.PaymentStatus) {
	now := t.now()
	next := nextCharge(now, billing.PendingPeriod)
	tier := billing.PendingTier

	t.store.Update(func(s model.AppState) model.AppState {
		s.Subscription.Tier = tier
		s.Subscription.Status = model.SubscriptionActive
		s.Subscription.NextChargeAt = &next
		s.Billing = clearPending(s.Billing, billing.PendingPaymentID, status, now)
		return s
	})
	t.events.Toast("Подписка активирована!")

	user := t.User()
	t.syncSubscriptionRecord(ctx)
	if t.bot != nil && user.ID != 0 {
		notifyCtx := context.WithoutCancel(ctx)
		go func() {
			if err := t.bot.NotifyPaymentSuccess(notifyCtx, user.ID, tier, user.DisplayName()); err != nil {
				t.log.Warn("failed to notify about payment", zap.Error(err))
			}
		}()
	}
}

func clearPending(b model.BillingState, paymentID string, status model.PaymentStatus, now time.Time) model.BillingState {
	b.PendingPaymentID = ""
	b.PendingTier = ""
	b.PendingPeriod = ""
	b.LastPaymentID = paymentID
	b.LastPaymentStatus = status
	b.LastPaymentDate = now
	return b
}

func nextCharge(now time.Time, period model.SubscriptionPeriod) time.Time {
	if period == model.PeriodYear {
		return now.AddDate(1, 0, 0)
	}
	return now.AddDate(0, 1, 0)
}

// CancelCurrentSubscription stops renewals at the provider and marks the
// subscription cancelled. The tier stays active until the paid period ends.
func (t *Tracker) CancelCurrentSubscription(ctx context.Context) error {
	if !t.cancelling.CompareAndSwap(false, true) {
		return nil
	}
	defer t.cancelling.Store(false)

	snapshot := t.store.Get()
	if !snapshot.Subscription.Tier.Paid() || snapshot.Billing.LastPaymentID == "" {
		return ErrNoSubscription
	}

	if err := t.gateway.CancelSubscription(ctx, snapshot.Billing.LastPaymentID); err != nil {
		t.log.Error("failed to cancel subscription", zap.Error(err))
		return err
	}

	t.store.Update(func(s model.AppState) model.AppState {
		s.Subscription.Status = model.SubscriptionCancelled
		s.Subscription.NextChargeAt = nil
		return s
	})
	t.events.Toast("Подписка отменена. Доступ сохранится до конца оплаченного периода.")
	t.syncSubscriptionRecord(ctx)
	return nil
}

// syncSubscriptionRecord mirrors the local subscription into the server-side
// store, fire and forget. Absent store or anonymous user is a no-op.
func (t *Tracker) syncSubscriptionRecord(ctx context.Context) {
	user := t.User()
	if t.subs == nil || user.ID == 0 {
		return
	}
	snapshot := t.store.Get()
	rec := subs.Record{
		Key:              "tg-" + strconv.FormatInt(user.ID, 10),
		TelegramID:       user.ID,
		Tier:             snapshot.Subscription.Tier,
		Status:           string(snapshot.Subscription.Status),
		PendingPaymentID: snapshot.Billing.PendingPaymentID,
		NextChargeAt:     snapshot.Subscription.NextChargeAt,
	}
	syncCtx := context.WithoutCancel(ctx)
	go func() {
		if err := t.subs.Upsert(syncCtx, rec); err != nil {
			t.log.Warn("failed to sync subscription record", zap.Error(err))
		}
	}()
}
