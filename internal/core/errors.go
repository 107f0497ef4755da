package core

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
)

var (
	// ErrConfiguration is returned when required settings are missing or invalid
	ErrConfiguration = errors.New("configuration error")
	// ErrConnectionLost is returned when the mailbox session can no longer be used
	ErrConnectionLost = errors.New("mailbox connection lost")
	// ErrOperationRejected is returned when the server refuses a single command
	ErrOperationRejected = errors.New("mailbox operation rejected")
	// ErrFolderMissing is returned when the server reports that a folder does not exist
	ErrFolderMissing = errors.New("mailbox folder does not exist")
	// ErrNoFolderSelected is returned for message operations before a folder is selected
	ErrNoFolderSelected = errors.New("no folder selected")
)

// IsConnectionFatal reports whether err requires discarding the session
func IsConnectionFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrOperationRejected) ||
		errors.Is(err, ErrFolderMissing) ||
		errors.Is(err, ErrNoFolderSelected) {
		return false
	}
	if errors.Is(err, ErrConnectionLost) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// IsOperationError reports whether err is a rejected command on a healthy session
func IsOperationError(err error) bool {
	return err != nil && !IsConnectionFatal(err)
}
