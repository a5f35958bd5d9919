package reserve

import "errors"

var (
	// ErrInsufficientReserve indicates the reserve holding has fewer units than requested.
	ErrInsufficientReserve = errors.New("reserve: insufficient reserve")

	// ErrInsufficientPayment indicates the remitted currency is below the quoted cost.
	ErrInsufficientPayment = errors.New("reserve: insufficient payment")

	// ErrInsufficientBalance indicates the caller holds fewer units than it redeems.
	ErrInsufficientBalance = errors.New("reserve: insufficient balance")

	// ErrZeroAmount indicates a zero unit or currency amount.
	ErrZeroAmount = errors.New("reserve: zero amount")

	// ErrReserveCaller indicates the reserve holding itself as the caller.
	ErrReserveCaller = errors.New("reserve: reserve holding cannot hold or redeem")
)
