package camera

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestDataURIRoundTrip(t *testing.T) {
	data := []byte{0xff, 0xd8, 0xff, 0xe0, 0x00}
	uri := EncodeDataURI("image/jpeg", data)
	if !strings.HasPrefix(uri, "data:image/jpeg;base64,") {
		t.Fatalf("uri = %q", uri)
	}
	if strings.ContainsRune(uri, '}') {
		t.Fatalf("data URI must not contain '}': %q", uri)
	}

	mime, got, err := DecodeDataURI(uri)
	if err != nil {
		t.Fatalf("DecodeDataURI: %v", err)
	}
	if mime != "image/jpeg" || !bytes.Equal(got, data) {
		t.Fatalf("decoded %q %v", mime, got)
	}
}

func TestDecodeDataURIRejects(t *testing.T) {
	for _, in := range []string{
		"",
		"image/jpeg;base64,AAAA",
		"data:image/jpeg,AAAA",
		"data:image/jpeg;base64",
		"data:image/jpeg;base64,!!!",
	} {
		if _, _, err := DecodeDataURI(in); !errors.Is(err, ErrNotDataURI) {
			t.Errorf("DecodeDataURI(%q) err = %v", in, err)
		}
	}
}
