package domain

import (
	"errors"
	"fmt"
)

// ReturnCode is the result of every public SPI operation as seen across the
// plugin ABI. 0 is illegal, 1 is success, [10;100) are failures after which
// the caller may continue, [100;...) mean normal operation is no longer possible.
type ReturnCode int16

const (
	Undefined             ReturnCode = 0
	Success               ReturnCode = 1
	FailureGeneric        ReturnCode = 10
	FailureDuplicacy      ReturnCode = 11
	FailureHooking        ReturnCode = 12
	FailureInvalidParam   ReturnCode = 13
	FailureUnsupportedYet ReturnCode = 14
	FailureDeprecated     ReturnCode = 15
	FailurePatternInvalid ReturnCode = 16
	FailurePatternTooLong ReturnCode = 17
	FailureSharedMemory   ReturnCode = 18
	FailureBadMagic       ReturnCode = 19
	FailureBadVersion     ReturnCode = 20
	FailureLowVersion     ReturnCode = 21
	FailureBadSize        ReturnCode = 22
	FailureNullPointer    ReturnCode = 23
	ErrorFatal            ReturnCode = 100
	ErrorWinAPI           ReturnCode = 115
)

var returnCodeText = map[ReturnCode]string{
	Undefined:             "Undefined - illegal return code",
	Success:               "Success",
	FailureGeneric:        "FailureGeneric - unspecified error",
	FailureDuplicacy:      "FailureDuplicacy - something unique was not unique, or something that should have existed didn't",
	FailureHooking:        "FailureHooking - injection code returned an error",
	FailureInvalidParam:   "FailureInvalidParam - illegal parameter passed to an SPI method",
	FailureUnsupportedYet: "FailureUnsupportedYet - feature is defined in SPI but not yet provided",
	FailureDeprecated:     "FailureDeprecated - feature is defined in SPI but must not be used",
	FailurePatternInvalid: "FailurePatternInvalid - provided pattern was ill-formed",
	FailurePatternTooLong: "FailurePatternTooLong - provided pattern is too long",
	FailureSharedMemory:   "FailureSharedMemory - shared memory record could not be opened",
	FailureBadMagic:       "FailureBadMagic - shared memory record is not an SPI record",
	FailureBadVersion:     "FailureBadVersion - SPI version is outside of the accepted range",
	FailureLowVersion:     "FailureLowVersion - host SPI version is lower than required",
	FailureBadSize:        "FailureBadSize - shared memory record size is outside of the accepted range",
	FailureNullPointer:    "FailureNullPointer - shared memory record holds no service",
	ErrorFatal:            "ErrorFatal - unspecified error after which execution cannot continue",
	ErrorWinAPI:           "ErrorWinAPI - a call to an OS function failed",
}

// String returns the description of the code
func (c ReturnCode) String() string {
	if text, ok := returnCodeText[c]; ok {
		return text
	}
	return fmt.Sprintf("unrecognized return code %d", int16(c))
}

// OK reports whether the code means success
func (c ReturnCode) OK() bool {
	return c == Success
}

// Fatal reports whether normal operation can no longer continue
func (c ReturnCode) Fatal() bool {
	return c >= ErrorFatal
}

// Rejections. Each maps onto exactly one ReturnCode through CodeOf.
var (
	ErrUnsupportedExecutable = errors.New("unsupported executable")

	ErrPatternInvalid = errors.New("pattern is ill-formed")
	ErrPatternTooLong = errors.New("pattern is too long")
	ErrPatternMissing = errors.New("pattern not found")
	ErrModuleRange    = errors.New("module range unavailable")

	ErrDuplicateHook = errors.New("hook already exists")
	ErrHookNotFound  = errors.New("hook does not exist")
	ErrHooking       = errors.New("hooking primitive failed")
	ErrInvalidParam  = errors.New("invalid parameter")
	ErrInvalidCaller = fmt.Errorf("%w: caller identification", ErrInvalidParam)

	ErrSharedMemory = errors.New("shared memory unavailable")
	ErrBadMagic     = errors.New("bad record magic")
	ErrBadVersion   = errors.New("record version outside of accepted range")
	ErrLowVersion   = errors.New("record version lower than required")
	ErrBadSize      = errors.New("record size outside of accepted range")
	ErrNullPointer  = errors.New("record holds a null service pointer")

	ErrUnsupported = errors.New("not supported on this platform")
)

var codeOfError = []struct {
	err  error
	code ReturnCode
}{
	{ErrPatternInvalid, FailurePatternInvalid},
	{ErrPatternTooLong, FailurePatternTooLong},
	{ErrPatternMissing, FailureGeneric},
	{ErrModuleRange, FailureGeneric},
	{ErrDuplicateHook, FailureDuplicacy},
	{ErrHookNotFound, FailureDuplicacy},
	{ErrHooking, FailureHooking},
	{ErrInvalidParam, FailureInvalidParam},
	{ErrSharedMemory, FailureSharedMemory},
	{ErrBadMagic, FailureBadMagic},
	{ErrBadVersion, FailureBadVersion},
	{ErrLowVersion, FailureLowVersion},
	{ErrBadSize, FailureBadSize},
	{ErrNullPointer, FailureNullPointer},
	{ErrUnsupported, FailureUnsupportedYet},
	{ErrUnsupportedExecutable, ErrorFatal},
}

// CodeOf maps an error returned by any core component to its ABI code.
// A nil error is Success; unknown errors are FailureGeneric.
func CodeOf(err error) ReturnCode {
	if err == nil {
		return Success
	}
	for _, entry := range codeOfError {
		if errors.Is(err, entry.err) {
			return entry.code
		}
	}
	return FailureGeneric
}
