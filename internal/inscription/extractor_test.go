package inscription

import (
	"encoding/hex"
	"strings"
	"testing"
)

func hexToken(s string) string { return hex.EncodeToString([]byte(s)) }

func TestExtractSimpleTextInscription(t *testing.T) {
	contentType := hexToken("text/plain")
	payload := hexToken(`{"p":"zrc-20","op":"mint","tick":"zord","amt":"100"}`)
	sig := "30" + strings.Repeat("ab", 70) // 71-byte DER-shaped signature
	asm := contentType + " " + payload + " 30 " + sig

	vouts := []VoutAddresses{{Addresses: []string{"t1Sender"}}}
	res, ok := Extract(asm, "abcd1234", vouts)
	if !ok {
		t.Fatalf("expected extraction to succeed")
	}
	if res.ID != "abcd1234i0" {
		t.Errorf("id = %q", res.ID)
	}
	if res.ContentType != "text/plain" {
		t.Errorf("content type = %q", res.ContentType)
	}
	if res.Content != `{"p":"zrc-20","op":"mint","tick":"zord","amt":"100"}` {
		t.Errorf("content = %q", res.Content)
	}
	if res.Sender != "t1Sender" || res.Receiver != "t1Sender" {
		t.Errorf("sender/receiver = %q/%q", res.Sender, res.Receiver)
	}
}

func TestExtractRejectsShortMIMEToken(t *testing.T) {
	// "ab" decodes to 2 ASCII bytes, with no '/' — not a MIME candidate.
	asm := hexToken("ab") + " " + hexToken("payload-data-here")
	_, ok := Extract(asm, "tx1", nil)
	if ok {
		t.Errorf("expected no extraction for non-MIME leading token")
	}
}

func TestExtractRejectsNonUTF8Token(t *testing.T) {
	asm := "ff fe" + " " + hexToken("payload")
	_, ok := Extract(asm, "tx1", nil)
	if ok {
		t.Errorf("expected no extraction for invalid UTF-8 candidate token")
	}
}

func TestExtractSkipsOpcodeTokens(t *testing.T) {
	contentType := hexToken("application/json")
	payloadA := hexToken(`{"p":"zrc-20",`)
	payloadB := hexToken(`"op":"deploy"}`)
	// "51" and "ae" are length-2 tokens that must be skipped as opcodes, not
	// decoded as (empty/short) payload chunks.
	asm := contentType + " 51 " + payloadA + " ae " + payloadB
	res, ok := Extract(asm, "tx2", nil)
	if !ok {
		t.Fatalf("expected extraction to succeed")
	}
	want := `{"p":"zrc-20","op":"deploy"}`
	if res.Content != want {
		t.Errorf("content = %q, want %q", res.Content, want)
	}
}

func TestExtractStopsOnDERSignatureNearEnd(t *testing.T) {
	contentType := hexToken("text/plain")
	payload := hexToken("hello world")
	der := strings.Repeat("30", 72)
	asm := contentType + " " + payload + " " + der
	res, ok := Extract(asm, "tx3", nil)
	if !ok {
		t.Fatalf("expected extraction to succeed")
	}
	if res.Content != "hello world" {
		t.Errorf("content = %q, signature bytes leaked into payload", res.Content)
	}
}

func TestExtractStopsOnCompressedPubkey(t *testing.T) {
	contentType := hexToken("text/plain")
	payload := hexToken("abc")
	pubkey := "02" + strings.Repeat("11", 32) // 33 bytes, 0x02 prefix
	asm := contentType + " " + payload + " " + pubkey
	res, ok := Extract(asm, "tx4", nil)
	if !ok {
		t.Fatalf("expected extraction to succeed")
	}
	if res.Content != "abc" {
		t.Errorf("content = %q, pubkey bytes leaked into payload", res.Content)
	}
}

func TestExtractStopsOnUncompressedPubkey(t *testing.T) {
	contentType := hexToken("text/plain")
	payload := hexToken("abc")
	pubkey := "04" + strings.Repeat("11", 64) // 65 bytes, 0x04 prefix
	asm := contentType + " " + payload + " " + pubkey
	res, ok := Extract(asm, "tx5", nil)
	if !ok {
		t.Fatalf("expected extraction to succeed")
	}
	if res.Content != "abc" {
		t.Errorf("content = %q", res.Content)
	}
}

func TestExtractStopsOnMarkedPubkeyPush(t *testing.T) {
	contentType := hexToken("text/plain")
	payload := hexToken("abc")
	pubkey := "21" + strings.Repeat("11", 33) // marker byte + >=33 bytes
	asm := contentType + " " + payload + " " + pubkey
	res, ok := Extract(asm, "tx6", nil)
	if !ok {
		t.Fatalf("expected extraction to succeed")
	}
	if res.Content != "abc" {
		t.Errorf("content = %q", res.Content)
	}
}

func TestExtractNoPayloadYieldsNoInscription(t *testing.T) {
	contentType := hexToken("text/plain")
	asm := contentType
	_, ok := Extract(asm, "tx7", nil)
	if ok {
		t.Errorf("expected no inscription when no payload follows the marker")
	}
}

func TestExtractUnknownSenderWhenNoAddresses(t *testing.T) {
	contentType := hexToken("text/plain")
	payload := hexToken("hi")
	asm := contentType + " " + payload
	res, ok := Extract(asm, "tx8", nil)
	if !ok {
		t.Fatalf("expected extraction to succeed")
	}
	if res.Sender != "unknown" {
		t.Errorf("sender = %q, want unknown", res.Sender)
	}
}

func TestExtractBinaryContentEncodedAsHex(t *testing.T) {
	contentType := hexToken("image/png")
	payload := "89504e470d0a1a0a" // PNG magic bytes, not valid UTF-8 text
	asm := contentType + " " + payload
	res, ok := Extract(asm, "tx9", nil)
	if !ok {
		t.Fatalf("expected extraction to succeed")
	}
	if res.Content != res.ContentHex {
		t.Errorf("expected non-text content to be hex-encoded in Content")
	}
	if res.ContentHex != payload {
		t.Errorf("content hex = %q, want %q", res.ContentHex, payload)
	}
}

func TestIsShielded(t *testing.T) {
	if !IsShielded("zs1abc") {
		t.Errorf("expected z-prefixed address to be shielded")
	}
	if IsShielded("t1abc") {
		t.Errorf("expected t-prefixed address to be transparent")
	}
}
