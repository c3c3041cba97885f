package tlcache

import (
	"errors"
	"testing"
)

func TestCodecError(t *testing.T) {
	cause := errors.New("bad crc")
	err := &CodecError{Message: "decode", Cause: cause}

	if err.Error() != "codec error: decode: bad crc" {
		t.Errorf("Unexpected error message: %s", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("Expected error to unwrap to cause")
	}

	bare := &CodecError{Message: "short blob"}
	if bare.Error() != "codec error: short blob" {
		t.Errorf("Unexpected error message: %s", bare.Error())
	}
}

func TestBackendErrors(t *testing.T) {
	cause := errors.New("connection reset")
	transient := &TransientBackendError{Op: "query", Cause: cause}
	permanent := &PermanentBackendError{Op: "execute", Cause: cause}

	if transient.Error() != "transient backend error (query): connection reset" {
		t.Errorf("Unexpected error message: %s", transient.Error())
	}
	if permanent.Error() != "backend error (execute): connection reset" {
		t.Errorf("Unexpected error message: %s", permanent.Error())
	}
	if !errors.Is(transient, cause) || !errors.Is(permanent, cause) {
		t.Error("Expected backend errors to unwrap to cause")
	}
	if !IsTransient(transient) || IsTransient(permanent) || IsTransient(nil) {
		t.Error("IsTransient classified incorrectly")
	}
}

func TestExternalTranslateError(t *testing.T) {
	err := &ExternalTranslateError{Message: "no records returned", Cause: ErrEmptyResponse}

	if err.Error() != "provider error: no records returned: empty response from translation provider" {
		t.Errorf("Unexpected error message: %s", err.Error())
	}
	if !errors.Is(err, ErrEmptyResponse) {
		t.Error("Expected error to unwrap to ErrEmptyResponse")
	}

	bare := &ExternalTranslateError{Message: "circuit open"}
	if bare.Error() != "provider error: circuit open" {
		t.Errorf("Unexpected error message: %s", bare.Error())
	}
}

func TestValidationError(t *testing.T) {
	err := &ValidationError{Index: 2, Lang: "ja", Reason: "missing translation"}
	if err.Error() != "validation failed for item 2 (ja): missing translation" {
		t.Errorf("Unexpected error message: %s", err.Error())
	}

	noLang := &ValidationError{Index: 0, Reason: "markup"}
	if noLang.Error() != "validation failed for item 0: markup" {
		t.Errorf("Unexpected error message: %s", noLang.Error())
	}
}
