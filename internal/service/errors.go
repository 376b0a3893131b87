package service

import "errors"

// Account and session errors.
var (
	ErrDuplicateUsername = errors.New("username already taken")
	ErrDuplicateEmail    = errors.New("email already registered")
	ErrUserNotFound      = errors.New("user not found")
	ErrWrongPassword     = errors.New("wrong password")
	ErrNoSession         = errors.New("no active session")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidTheme      = errors.New("invalid theme")
)

// Task errors. ErrAlreadyClicked is a soft outcome: the click was a no-op.
var (
	ErrTaskNotFound   = errors.New("task not found")
	ErrTaskLocked     = errors.New("task is locked until its cooldown ends")
	ErrInvalidAdIndex = errors.New("invalid ad index")
	ErrAlreadyClicked = errors.New("ad already clicked")
)

// Wallet errors.
var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("invalid amount: must be positive")
)

// ErrStorePartialFailure marks a multi-key update that stopped half way.
var ErrStorePartialFailure = errors.New("store update partially applied")
