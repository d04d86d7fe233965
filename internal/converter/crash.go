package converter

import (
	dto "crash_backend/internal/api/dto/crash"
	"crash_backend/internal/model"
	statsModel "crash_backend/internal/repository/stats_repo/model"
	"time"
)

const (
	EventStakeAccepted   = "stake_accepted"
	EventStakeRejected   = "stake_rejected"
	EventCashedOut       = "cashed_out"
	EventCashOutRejected = "cashout_rejected"
	EventError           = "error"
)

// ToEventMessage Событие раунда в формат websocket
func ToEventMessage(e model.Event) dto.OutMessage {
	var data any
	switch e.Type {
	case model.EventRoundStarted:
		data = dto.RoundStarted{RoundID: e.RoundID.String()}
	case model.EventRoundFlying:
		data = dto.RoundFlying{RoundID: e.RoundID.String()}
	case model.EventMultiplierTick:
		data = dto.MultiplierTick{RoundID: e.RoundID.String(), Multiplier: e.Multiplier}
	case model.EventRoundCrashed:
		data = dto.RoundCrashed{RoundID: e.RoundID.String(), CrashPoint: e.CrashPoint}
	case model.EventWalletUpdated:
		data = ToWalletUpdated(e.Wallet)
	}
	return dto.OutMessage{Event: string(e.Type), Data: data}
}

func ToWalletUpdated(w *model.Wallet) dto.WalletUpdated {
	if w == nil {
		return dto.WalletUpdated{}
	}
	return dto.WalletUpdated{
		CashBalance:       w.CashBalance.StringFixed(2),
		RestrictedBalance: w.RestrictedBalance.StringFixed(2),
		DailyEntitlements: w.DailyEntitlements,
	}
}

func ToStakeAccepted(a *model.StakeAccepted) dto.OutMessage {
	return dto.OutMessage{Event: EventStakeAccepted, Data: dto.StakeAccepted{
		StakeID: a.StakeID.String(),
		Amount:  a.Amount.StringFixed(2),
	}}
}

func ToCashedOut(res *model.CashOutResult) dto.OutMessage {
	return dto.OutMessage{Event: EventCashedOut, Data: dto.CashedOut{
		StakeID:    res.StakeID.String(),
		Payout:     res.Payout.StringFixed(2),
		Multiplier: res.Multiplier,
	}}
}

func ToRejected(event string, err error) dto.OutMessage {
	return dto.OutMessage{Event: event, Data: dto.Rejected{Error: model.ErrorKind(err)}}
}

func ToWalletResponse(w *model.Wallet) dto.WalletResponse {
	return dto.WalletResponse{
		ParticipantID:         w.ParticipantID,
		CashBalance:           w.CashBalance.StringFixed(2),
		RestrictedBalance:     w.RestrictedBalance.StringFixed(2),
		DailyEntitlements:     w.DailyEntitlements,
		TotalRestrictedProfit: w.TotalRestrictedProfit.StringFixed(2),
	}
}

func ToLedgerResponse(r *model.LedgerReport) dto.LedgerResponse {
	entries := make([]dto.LedgerEntry, len(r.Entries))
	for i, e := range r.Entries {
		entries[i] = dto.LedgerEntry{
			EntryID:       e.ID.String(),
			StakeID:       e.StakeID.String(),
			RoundID:       e.RoundID.String(),
			Kind:          string(e.Kind),
			Amount:        e.Amount.StringFixed(2),
			Forfeited:     e.Forfeited.StringFixed(2),
			BalanceBefore: e.BalanceBefore.StringFixed(2),
			BalanceAfter:  e.BalanceAfter.StringFixed(2),
			CreatedAt:     e.CreatedAt.UTC().Format(time.RFC3339Nano),
		}
	}
	return dto.LedgerResponse{
		Wallet:     ToWalletResponse(r.Wallet),
		Entries:    entries,
		Consistent: r.Consistent,
		Problem:    r.Problem,
	}
}

func ToStatsResponse(st statsModel.HouseState, residents int) dto.StatsResponse {
	return dto.StatsResponse{
		TotalStakes: st.TotalStakes,
		TotalBet:    st.TotalBet,
		TotalPayout: st.TotalPayout,
		CurrentRTP:  st.CurrentRTP,
		WindowRTP:   st.WindowRTP,
		WindowSize:  len(st.Window),
		OpenStakes:  st.OpenStakes,
		OpenAmount:  st.OpenAmount,
		Residents:   residents,
	}
}

// ToBadRequest Ответ на сообщение, которое не удалось разобрать
func ToBadRequest(event string) dto.OutMessage {
	return dto.OutMessage{Event: event, Data: dto.Rejected{Error: "BadRequest"}}
}
