package survey

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an import failure. Every kind is fatal for the sheet being
// imported.
type Kind string

const (
	KindMalformedSheet             Kind = "malformed_sheet"
	KindMissingAnswer              Kind = "missing_answer"
	KindInvalidBoolean             Kind = "invalid_boolean"
	KindUnknownCharacteristic      Kind = "unknown_characteristic"
	KindRoomCharacteristicConflict Kind = "room_characteristic_conflict"
	KindBedRoomMismatch            Kind = "bed_room_mismatch"
	KindDuplicateBedName           Kind = "duplicate_bed_name"
	KindReferenceDataNotFound      Kind = "reference_data_not_found"
)

// Error is a data or configuration failure raised while importing a survey.
// Sheet, Question, Column and Codes carry enough context for an operator to
// find and fix the offending cell.
type Error struct {
	Kind     Kind
	Sheet    string
	Question string
	Column   int // 0 when not column specific
	Value    string
	Codes    []string
	Detail   string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Question != "" {
		fmt.Fprintf(&b, " (question %q)", e.Question)
	}
	if e.Value != "" {
		fmt.Fprintf(&b, " (value %q)", e.Value)
	}
	if len(e.Codes) > 0 {
		fmt.Fprintf(&b, " (codes %s)", strings.Join(e.Codes, ", "))
	}
	if e.Sheet != "" {
		fmt.Fprintf(&b, " in sheet %q", e.Sheet)
	}
	if e.Column > 0 {
		fmt.Fprintf(&b, " column %d", e.Column)
	}
	return b.String()
}

// IsKind reports whether err, or anything it wraps, is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind == k
	}
	return false
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// MalformedSheet reports a structural problem with a sheet.
func MalformedSheet(sheet, format string, args ...any) *Error {
	return &Error{Kind: KindMalformedSheet, Sheet: sheet, Detail: fmt.Sprintf(format, args...)}
}

// MissingAnswer reports a blank answer to a required question.
func MissingAnswer(sheet, question string, column int) *Error {
	return &Error{Kind: KindMissingAnswer, Sheet: sheet, Question: question, Column: column, Detail: "answer is blank"}
}

// InvalidBoolean reports an answer that is not one of the accepted yes/no values.
func InvalidBoolean(sheet, question string, column int, value string) *Error {
	return &Error{Kind: KindInvalidBoolean, Sheet: sheet, Question: question, Column: column, Value: value, Detail: "expected yes or no"}
}

// UnknownCharacteristic reports a taxonomy entry with no persisted characteristic.
func UnknownCharacteristic(propertyName, service, model string) *Error {
	return &Error{
		Kind:   KindUnknownCharacteristic,
		Value:  propertyName,
		Detail: fmt.Sprintf("no characteristic for service %q and model %q", service, model),
	}
}

// RoomCharacteristicConflict reports beds of one room that disagree on characteristics.
func RoomCharacteristicConflict(sheet, roomCode string, bedCodes ...string) *Error {
	return &Error{
		Kind:   KindRoomCharacteristicConflict,
		Sheet:  sheet,
		Codes:  append([]string{roomCode}, bedCodes...),
		Detail: fmt.Sprintf("beds in room %s have different characteristics", roomCode),
	}
}

// BedRoomMismatch reports an existing bed that the survey attaches to a different room.
func BedRoomMismatch(sheet string, column int, bedCode, currentRoom, targetRoom string) *Error {
	return &Error{
		Kind:   KindBedRoomMismatch,
		Sheet:  sheet,
		Column: column,
		Codes:  []string{bedCode, currentRoom, targetRoom},
		Detail: fmt.Sprintf("bed %s belongs to room %s, not %s", bedCode, currentRoom, targetRoom),
	}
}

// DuplicateBedName reports two beds deriving the same name in one import.
func DuplicateBedName(sheet, name string, bedCodes ...string) *Error {
	return &Error{
		Kind:   KindDuplicateBedName,
		Sheet:  sheet,
		Value:  name,
		Codes:  bedCodes,
		Detail: "bed name is not unique",
	}
}

// ReferenceDataNotFound reports a region, area, postcode or premises that does not exist.
func ReferenceDataNotFound(entity, name string) *Error {
	return &Error{
		Kind:   KindReferenceDataNotFound,
		Value:  name,
		Detail: fmt.Sprintf("%s not found", entity),
	}
}
