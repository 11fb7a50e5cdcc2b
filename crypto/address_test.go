package crypto

import "testing"

func TestAddressRoundTrip(t *testing.T) {
	addr := DeriveAddress([]byte("lender"))
	decoded, err := DecodeAddress(addr.String())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded != addr {
		t.Fatalf("round trip mismatch: %s != %s", decoded, addr)
	}
}

func TestDeriveAddressDeterministic(t *testing.T) {
	a := DeriveAddress([]byte("escrow"), []byte{0x01})
	b := DeriveAddress([]byte("escrow"), []byte{0x01})
	c := DeriveAddress([]byte("escrow"), []byte{0x02})
	if a != b {
		t.Fatalf("expected identical derivation")
	}
	if a == c {
		t.Fatalf("expected distinct derivation for different inputs")
	}
	if a.IsZero() {
		t.Fatalf("derived address must not be zero")
	}
}

func TestDecodeRejectsForeignPrefix(t *testing.T) {
	if _, err := DecodeAddress("bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq"); err == nil {
		t.Fatalf("expected prefix rejection")
	}
}

func TestZeroAddressRendersEmpty(t *testing.T) {
	var zero Address
	if zero.String() != "" {
		t.Fatalf("expected empty string, got %q", zero.String())
	}
	var restored Address
	if err := restored.UnmarshalText(nil); err != nil || !restored.IsZero() {
		t.Fatalf("expected zero restore, got %v %v", restored, err)
	}
}
