package domain

import (
	"errors"
	"fmt"
)

// ErrorKind — закрытый набор типизированных исходов.
type ErrorKind string

const (
	KindActionBlocked            ErrorKind = "action_blocked"
	KindEthicalViolation         ErrorKind = "ethical_violation"
	KindTransactionLimitExceeded ErrorKind = "transaction_limit_exceeded"
	KindHumanApprovalRequired    ErrorKind = "human_approval_required"
	KindSystemError              ErrorKind = "system_error"
)

var kindPrefix = map[ErrorKind]string{
	KindActionBlocked:            "ai action blocked",
	KindEthicalViolation:         "ethical violation detected",
	KindTransactionLimitExceeded: "transaction limit exceeded",
	KindHumanApprovalRequired:    "human approval required",
	KindSystemError:              "system error",
}

// GuardianError — ошибка с видом. errors.Is сравнивает только вид.
type GuardianError struct {
	Kind ErrorKind
	Msg  string
}

func (e *GuardianError) Error() string {
	prefix, ok := kindPrefix[e.Kind]
	if !ok {
		prefix = string(e.Kind)
	}
	if e.Msg == "" {
		return prefix
	}
	return prefix + ": " + e.Msg
}

func (e *GuardianError) Is(target error) bool {
	var t *GuardianError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Сентинелы для errors.Is(err, domain.ErrHumanApprovalRequired).
var (
	ErrActionBlocked            = &GuardianError{Kind: KindActionBlocked}
	ErrEthicalViolation         = &GuardianError{Kind: KindEthicalViolation}
	ErrTransactionLimitExceeded = &GuardianError{Kind: KindTransactionLimitExceeded}
	ErrHumanApprovalRequired    = &GuardianError{Kind: KindHumanApprovalRequired}
	ErrSystemError              = &GuardianError{Kind: KindSystemError}
)

// ErrDecisionNotFound — human override для решения, которого нет в истории.
var ErrDecisionNotFound = errors.New("decision not found")

func NewError(kind ErrorKind, format string, args ...interface{}) *GuardianError {
	return &GuardianError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// KindOf возвращает вид ошибки или "" для нетипизированных.
func KindOf(err error) ErrorKind {
	var ge *GuardianError
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return ""
}
