package model

import "errors"

// Ошибки валидации: возвращаются только инициатору и не меняют раунд
var (
	ErrNoActiveRound           = errors.New("no active round")
	ErrWrongPhase              = errors.New("wrong round phase")
	ErrDuplicateStake          = errors.New("round already has an open stake")
	ErrInsufficientFunds       = errors.New("insufficient funds")
	ErrNoEntitlementsAvailable = errors.New("no entitlements available")
	ErrInvalidComputedAmount   = errors.New("computed stake amount is not positive")
	ErrNoOpenStake             = errors.New("no open stake")
	ErrAlreadySettled          = errors.New("stake already settled")
	ErrInvalidAmount           = errors.New("stake amount must be positive")
	ErrInvalidKind             = errors.New("unknown stake kind")
	ErrWalletNotFound          = errors.New("wallet not found")
)

var errorKinds = []struct {
	err  error
	kind string
}{
	{ErrNoActiveRound, "NoActiveRound"},
	{ErrWrongPhase, "WrongPhase"},
	{ErrDuplicateStake, "DuplicateStake"},
	{ErrInsufficientFunds, "InsufficientFunds"},
	{ErrNoEntitlementsAvailable, "NoEntitlementsAvailable"},
	{ErrInvalidComputedAmount, "InvalidComputedAmount"},
	{ErrNoOpenStake, "NoOpenStake"},
	{ErrAlreadySettled, "AlreadySettled"},
	{ErrInvalidAmount, "InvalidAmount"},
	{ErrInvalidKind, "InvalidKind"},
	{ErrWalletNotFound, "WalletNotFound"},
}

// ErrorKind Имя ошибки для клиента. Неизвестные ошибки - Internal
func ErrorKind(err error) string {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "Internal"
}

// IsValidation Ошибка валидации (не требует повтора)
func IsValidation(err error) bool {
	return ErrorKind(err) != "Internal"
}
