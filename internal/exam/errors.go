package exam

import (
	"errors"
	"fmt"
)

// Kind classifies an Error for transport mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthorization
	KindNotFound
	KindPolicy
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindPolicy:
		return "policy"
	case KindUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// Message IDs. Each one has a translation in the i18n locale files.
const (
	MsgExamNotFound        = "ExamNotFound"
	MsgStudentNotFound     = "StudentNotFound"
	MsgTeacherNotFound     = "TeacherNotFound"
	MsgQuestionNotFound    = "QuestionNotFound"
	MsgSubmissionNotFound  = "SubmissionNotFound"
	MsgNotExamOwner        = "NotExamOwner"
	MsgMissingExamFields   = "MissingExamFields"
	MsgInvalidExamDate     = "InvalidExamDate"
	MsgInvalidQuestion     = "InvalidQuestion"
	MsgInvalidAnswers      = "InvalidAnswers"
	MsgInvalidRequest      = "InvalidRequest"
	MsgMaxAttemptsReached  = "MaxAttemptsReached"
	MsgExamNotActive       = "ExamNotActive"
	MsgNotAssigned         = "NotAssigned"
	MsgTimeExpired         = "TimeExpired"
	MsgNotSubmitted        = "NotSubmitted"
	MsgResultsNotPublished = "ResultsNotPublished"
	MsgScoreOutOfRange     = "ScoreOutOfRange"
	MsgDrafterUnavailable  = "DrafterUnavailable"
	MsgDraftFailed         = "DraftFailed"
	MsgInternalError       = "InternalError"
	MsgUnauthorized        = "Unauthorized"
	MsgForbidden           = "Forbidden"
	MsgRouteNotFound       = "RouteNotFound"
)

// Error is a lifecycle error carrying its kind and a localizable message ID.
type Error struct {
	Kind   Kind
	MsgID  string
	Detail string // extra, untranslated context such as a validator message
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.String() + ": " + e.MsgID
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of err, or KindInternal if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MsgIDOf returns the message ID of err, or MsgInternalError.
func MsgIDOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.MsgID != "" {
		return e.MsgID
	}
	return MsgInternalError
}

func validationErr(msgID, detail string) error {
	return &Error{Kind: KindValidation, MsgID: msgID, Detail: detail}
}

func notFoundErr(msgID string) error {
	return &Error{Kind: KindNotFound, MsgID: msgID}
}

func policyErr(msgID string) error {
	return &Error{Kind: KindPolicy, MsgID: msgID}
}

func internalErr(op string, err error) error {
	return &Error{Kind: KindInternal, MsgID: MsgInternalError, Err: fmt.Errorf("%s: %w", op, err)}
}

var errNotOwner = &Error{Kind: KindAuthorization, MsgID: MsgNotExamOwner}
