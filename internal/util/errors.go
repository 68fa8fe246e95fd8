package util

import (
	"errors"
	"fmt"
)

// ErrorKind 业务错误分类，controller 据此映射 HTTP 状态码
type ErrorKind int

const (
	KindFatal ErrorKind = iota
	KindNotFound
	KindInvalidState
	KindForbidden
)

type ServiceError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func NotFoundf(format string, args ...interface{}) error {
	return &ServiceError{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func InvalidStatef(format string, args ...interface{}) error {
	return &ServiceError{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

func Forbiddenf(format string, args ...interface{}) error {
	return &ServiceError{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &ServiceError{Kind: KindFatal, Message: err.Error(), Err: err}
}

// KindOf returns the classification of err; unrecognized errors are fatal.
func KindOf(err error) ErrorKind {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindFatal
}
