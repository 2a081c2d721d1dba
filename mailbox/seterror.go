package mailbox

import "fmt"

// SetError is a per-item failure inside a setMailboxes response. Description
// strings are part of the observable contract and must not be reworded.
type SetError struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

const (
	ErrorTypeInvalidArguments = "invalidArguments"
	ErrorTypeNotFound         = "notFound"
	ErrorTypeMailboxHasChild  = "mailboxHasChild"
)

func invalidArguments(format string, args ...any) SetError {
	return SetError{Type: ErrorTypeInvalidArguments, Description: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...any) SetError {
	return SetError{Type: ErrorTypeNotFound, Description: fmt.Sprintf(format, args...)}
}

func errCycle() SetError {
	return invalidArguments("The created mailboxes introduce a cycle.")
}

func errIllegalCharacter(name string) SetError {
	return invalidArguments("The mailbox '%s' contains an illegal character: '.'", name)
}

func errNameTooLong() SetError {
	return invalidArguments("The mailbox name length is too long")
}

func errEmptyName() SetError {
	return invalidArguments("The mailbox name is empty")
}

// errAlreadyExists echoes the client's creation id, not the mailbox name.
func errAlreadyExists(creationID string) SetError {
	return invalidArguments("The mailbox '%s' already exists.", creationID)
}

func errAlreadyExistsAsInbox(name string) SetError {
	return invalidArguments("The mailbox '%s' already exists as 'INBOX'", name)
}

// The unknown-parent description is shared between create and update, but
// the error type differs: create reports invalidArguments, update notFound.
func errCreateParentNotFound(ref string) SetError {
	return invalidArguments("The parent mailbox '%s' was not found.", ref)
}

func errUpdateParentNotFound(ref string) SetError {
	return notFound("The parent mailbox '%s' was not found.", ref)
}

func errMailboxNotFound(id ID) SetError {
	return notFound("The mailbox '%s' was not found.", id)
}

func errUpdateSystemMailbox() SetError {
	return invalidArguments("Cannot update a system mailbox.")
}

func errUpdateParentMailbox() SetError {
	return invalidArguments("Cannot update a parent mailbox.")
}

func errRenameToExisting() SetError {
	return invalidArguments("Cannot rename a mailbox to an already existing mailbox.")
}

func errSystemMailbox(ref string) SetError {
	return invalidArguments("The mailbox '%s' is a system mailbox.", ref)
}

func errSharingForbidden(role Role) SetError {
	return invalidArguments("Sharing '%s' is forbidden", role.DisplayName())
}

func errRightNotSingleCharacter() SetError {
	return invalidArguments("Rights should be represented as single value characters")
}

func errNoMatchingRight(right string) SetError {
	return invalidArguments("No matching right for '%s'", right)
}

func errMailboxHasChild(id ID) SetError {
	return SetError{
		Type:        ErrorTypeMailboxHasChild,
		Description: fmt.Sprintf("The mailbox '%s' has a child.", id),
	}
}
