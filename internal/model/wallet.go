package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Wallet struct {
	ParticipantID         int64
	CashBalance           decimal.Decimal
	RestrictedBalance     decimal.Decimal
	DailyEntitlements     int
	EntitlementsResetAt   time.Time
	TotalRestrictedProfit decimal.Decimal
}

// RenewEntitlements Обновляет дневной лимит, если дата сброса осталась в прошлом дне
func (w *Wallet) RenewEntitlements(now time.Time, quota int) bool {
	today := truncateDay(now)
	if !truncateDay(w.EntitlementsResetAt).Before(today) {
		return false
	}
	w.DailyEntitlements = quota
	w.EntitlementsResetAt = today
	return true
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
