package protocol

import "testing"

func TestIsKnownCode(t *testing.T) {
	cases := []string{
		"",
		ErrProtoBadRequest,
		ErrProtoVersion,
		ErrProtoType,
		ErrBadRequest,
		ErrBlocked,
		ErrInternal,
	}
	for _, c := range cases {
		if !IsKnownCode(c) {
			t.Fatalf("expected known code: %q", c)
		}
	}
	if IsKnownCode("E_NOT_DEFINED") {
		t.Fatalf("expected unknown code rejected")
	}
}

func TestCompatible(t *testing.T) {
	for _, v := range []string{Version, "1.0", "1.7", "1.12"} {
		if !Compatible(v) {
			t.Fatalf("expected %q compatible", v)
		}
	}
	for _, v := range []string{"", "1", "1.", "0.9", "2.0", "10.0"} {
		if Compatible(v) {
			t.Fatalf("expected %q rejected", v)
		}
	}
}

func TestNewError_UnknownCodeBecomesInternal(t *testing.T) {
	m := NewError("E_NOT_DEFINED", "boom")
	if m.Code != ErrInternal || m.Type != TypeError || m.Message != "boom" {
		t.Fatalf("unexpected error message: %+v", m)
	}
	if got := NewError(ErrBlocked, "").Code; got != ErrBlocked {
		t.Fatalf("code: got %q want %q", got, ErrBlocked)
	}
}
