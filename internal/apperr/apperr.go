// Package apperr defines the domain error taxonomy shared by services and handlers.
// Services return these types; handlers translate them into HTTP status codes.
package apperr

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ValidationError reports malformed or missing input. Never retried.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// NotFoundError reports a referenced entity that does not exist.
type NotFoundError struct {
	Recurso string
	ID      string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s no encontrado", e.Recurso)
	}
	return fmt.Sprintf("%s %s no encontrado", e.Recurso, e.ID)
}

// OverpaymentError is returned when a payment would exceed the sale total.
// Excedente is the amount by which it does.
type OverpaymentError struct {
	Excedente decimal.Decimal
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("el monto excede el saldo pendiente en %s", e.Excedente.StringFixed(2))
}

// ConflictError signals a lost-update detected on a sale mutation.
// The caller should retry the whole operation.
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string { return e.Msg }

// InvalidStateError signals an operation not allowed in the entity's current state.
type InvalidStateError struct {
	Msg string
}

func (e *InvalidStateError) Error() string { return e.Msg }

// InfrastructureError wraps storage or transport failures.
type InfrastructureError struct {
	Op  string
	Err error
}

func (e *InfrastructureError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *InfrastructureError) Unwrap() error { return e.Err }

func Validation(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

func NotFound(recurso, id string) error { return &NotFoundError{Recurso: recurso, ID: id} }

func Overpayment(excedente decimal.Decimal) error { return &OverpaymentError{Excedente: excedente} }

func Conflict(format string, args ...any) error {
	return &ConflictError{Msg: fmt.Sprintf(format, args...)}
}

func InvalidState(format string, args ...any) error {
	return &InvalidStateError{Msg: fmt.Sprintf(format, args...)}
}

// Infra wraps err as an InfrastructureError. Returns nil when err is nil and
// passes through errors that already belong to the taxonomy.
func Infra(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsDomain(err) {
		return err
	}
	return &InfrastructureError{Op: op, Err: err}
}

func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

func IsOverpayment(err error) bool {
	var e *OverpaymentError
	return errors.As(err, &e)
}

func IsConflict(err error) bool {
	var e *ConflictError
	return errors.As(err, &e)
}

func IsInvalidState(err error) bool {
	var e *InvalidStateError
	return errors.As(err, &e)
}

func IsInfrastructure(err error) bool {
	var e *InfrastructureError
	return errors.As(err, &e)
}

// IsDomain reports whether err is one of the taxonomy types.
func IsDomain(err error) bool {
	return IsValidation(err) || IsNotFound(err) || IsOverpayment(err) ||
		IsConflict(err) || IsInvalidState(err) || IsInfrastructure(err)
}
