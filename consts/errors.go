package consts

import "errors"

var (
	ErrMailboxNotFound      = errors.New("mailbox not found")
	ErrMailboxAlreadyExists = errors.New("mailbox already exists")
	ErrMailboxInvalidName   = errors.New("invalid mailbox name")
	ErrMailboxHasChildren   = errors.New("mailbox has children")
	ErrAccountNotFound      = errors.New("account not found")
	ErrInternalError        = errors.New("internal error")

	ErrDBNotFound                = errors.New("not found")
	ErrDBUniqueViolation         = errors.New("unique violation")
	ErrDBBeginTransactionFailed  = errors.New("start transaction failed")
	ErrDBCommitTransactionFailed = errors.New("commit failed")
)
