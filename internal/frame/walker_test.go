package frame

import (
	"errors"
	"testing"
)

func TestWalkerSequentialExtraction(t *testing.T) {
	f := NewArray(Bulk([]byte("SET")), Bulk([]byte("key")), Integer(7))
	w, err := NewWalker(f)
	if err != nil {
		t.Fatalf("NewWalker: %v", err)
	}

	name, err := w.NextString()
	if err != nil || name != "SET" {
		t.Fatalf("NextString = %q, %v", name, err)
	}
	key, err := w.NextBytes()
	if err != nil || string(key) != "key" {
		t.Fatalf("NextBytes = %q, %v", key, err)
	}
	n, err := w.NextInt()
	if err != nil || n != 7 {
		t.Fatalf("NextInt = %d, %v", n, err)
	}
	if err := w.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
}

func TestWalkerEndOfStream(t *testing.T) {
	w, err := NewWalker(NewArray(Bulk([]byte("PING"))))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.NextString(); err != nil {
		t.Fatal(err)
	}
	if _, err := w.NextString(); !errors.Is(err, ErrEndOfStream) {
		t.Fatalf("expected ErrEndOfStream, got %v", err)
	}
}

func TestWalkerFinishRejectsTrailingArgs(t *testing.T) {
	w, err := NewWalker(NewArray(Bulk([]byte("PING")), Bulk([]byte("extra"))))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.NextString(); err != nil {
		t.Fatal(err)
	}
	if err := w.Finish(); err == nil {
		t.Fatal("expected error for unconsumed trailing element")
	}
}

func TestNewWalkerRequiresArray(t *testing.T) {
	if _, err := NewWalker(Simple("OK")); err == nil {
		t.Fatal("expected type mismatch error for non-Array frame")
	}
}

func TestNextStringRejectsInvalidUTF8Bulk(t *testing.T) {
	w, err := NewWalker(NewArray(Bulk([]byte{0xff, 0xfe, 0xfd})))
	if err != nil {
		t.Fatal(err)
	}
	_, err = w.NextString()
	if err == nil {
		t.Fatal("expected error for non-UTF-8 bulk string")
	}
	var pe *ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("expected a ProtocolError, got %v", err)
	}
}
