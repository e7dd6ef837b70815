package transfer

import (
	"bytes"
	"strings"
	"testing"
)

func TestBufferPool_DefaultSize(t *testing.T) {
	bp := NewBufferPool(0)

	buf := bp.Get()
	if buf == nil {
		t.Fatalf("expected a valid buffer pointer, got nil")
	}

	if len(*buf) != DefaultBufferSize {
		t.Errorf("expected buffer size %d, got %d", DefaultBufferSize, len(*buf))
	}

	bp.Put(buf)
}

func TestBufferPool_CustomSize(t *testing.T) {
	customSize := 8192
	bp := NewBufferPool(customSize)

	buf1 := bp.Get()
	if len(*buf1) != customSize {
		t.Errorf("expected buffer size %d, got %d", customSize, len(*buf1))
	}

	(*buf1)[0] = 42

	bp.Put(buf1)
	buf2 := bp.Get()

	if len(*buf2) != customSize {
		t.Errorf("expected reused buffer size %d, got %d", customSize, len(*buf2))
	}

	bp.Put(buf2)
}

func TestChecksumReader(t *testing.T) {
	payload := strings.Repeat("staging data ", 100)

	cr1 := NewChecksumReader(strings.NewReader(payload))
	var sink bytes.Buffer
	if _, err := sink.ReadFrom(cr1); err != nil {
		t.Fatalf("read failed: %v", err)
	}

	if cr1.BytesRead() != int64(len(payload)) {
		t.Errorf("expected %d bytes read, got %d", len(payload), cr1.BytesRead())
	}
	if sink.String() != payload {
		t.Error("payload altered by checksum reader")
	}

	// Same bytes, same checksum; different bytes, different checksum.
	cr2 := NewChecksumReader(strings.NewReader(payload))
	if _, err := bytes.NewBuffer(nil).ReadFrom(cr2); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if cr1.Checksum() != cr2.Checksum() {
		t.Error("identical payloads must produce identical checksums")
	}

	cr3 := NewChecksumReader(strings.NewReader(payload + "x"))
	if _, err := bytes.NewBuffer(nil).ReadFrom(cr3); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if cr1.Checksum() == cr3.Checksum() {
		t.Error("different payloads should produce different checksums")
	}
}
