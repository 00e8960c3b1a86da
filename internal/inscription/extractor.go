// Package inscription extracts embedded payloads from transaction input
// scripts. Zord inscriptions ride in scriptSig as a whitespace-separated run
// of hex pushes: a MIME-type marker followed by the payload, terminated by
// whatever the signing stack itself pushed (a DER signature or a pubkey).
package inscription

import (
	"encoding/hex"
	"strings"
	"unicode/utf8"
)

// Result is one extracted inscription.
type Result struct {
	// ID is "{txid}i0" — zord assigns at most one inscription per
	// transaction, so the index is always 0.
	ID string

	Sender      string
	Receiver    string
	ContentType string
	Content     string // UTF-8 for text/json payloads, hex otherwise
	ContentHex  string
}

// VoutAddresses is the minimal shape the extractor needs from a
// transaction's outputs to classify the sender.
type VoutAddresses struct {
	Addresses []string
}

// Extract scans a single input's scriptSig ASM for an embedded inscription.
// asm is the whitespace-separated token stream (hex pushes and opcode
// mnemonics) as returned by the chain node's script disassembler. vouts are
// the containing transaction's outputs, used only to classify the sender.
// Extract reports at most one inscription; callers stop at the first input
// that yields one, per transaction.
func Extract(asm, txid string, vouts []VoutAddresses) (*Result, bool) {
	tokens := strings.Fields(asm)

	for i := 0; i < len(tokens); i++ {
		decoded, err := hex.DecodeString(tokens[i])
		if err != nil {
			continue
		}
		if !utf8.Valid(decoded) {
			continue
		}
		contentType := string(decoded)
		if !looksLikeMIMEType(contentType) {
			continue
		}

		chunks := collectPayload(tokens, i+1)
		if len(chunks) == 0 {
			continue
		}

		contentBytes := joinChunks(chunks)
		contentHex := hex.EncodeToString(contentBytes)

		var content string
		if strings.HasPrefix(contentType, "text/") || contentType == "application/json" {
			if utf8.Valid(contentBytes) {
				content = string(contentBytes)
			} else {
				content = contentHex
			}
		} else {
			content = contentHex
		}

		sender := classifySender(vouts)

		return &Result{
			ID:          txid + "i0",
			Sender:      sender,
			Receiver:    sender,
			ContentType: contentType,
			Content:     content,
			ContentHex:  contentHex,
		}, true
	}

	return nil, false
}

// looksLikeMIMEType applies the candidate test from step 2: a decoded UTF-8
// token containing '/' with length in [4, 99].
func looksLikeMIMEType(s string) bool {
	return strings.Contains(s, "/") && len(s) >= 4 && len(s) <= 99
}

// collectPayload implements steps 3-4: gather subsequent hex pushes as
// payload, skipping short opcode tokens, and stop once a signature- or
// pubkey-shaped push appears within the last three tokens of the script.
func collectPayload(tokens []string, start int) [][]byte {
	var chunks [][]byte

	for j := start; j < len(tokens); j++ {
		token := tokens[j]

		// Tiny tokens are opcodes (e.g. OP_0, small pushdata lengths), not data.
		if len(token) <= 2 {
			continue
		}

		data, err := hex.DecodeString(token)
		if err != nil {
			continue
		}

		nearEnd := j >= len(tokens)-3
		if nearEnd && (looksLikeDERSignature(data) || looksLikePubkey(data)) {
			break
		}

		if len(data) > 0 {
			chunks = append(chunks, data)
		}
	}

	return chunks
}

// looksLikeDERSignature matches the shape of a DER-encoded ECDSA signature:
// 70-74 bytes starting with the SEQUENCE tag 0x30.
func looksLikeDERSignature(data []byte) bool {
	return len(data) >= 70 && len(data) <= 74 && data[0] == 0x30
}

// looksLikePubkey matches compressed (33-byte, 0x02/0x03 prefix), uncompressed
// (65-byte, 0x04 prefix), or push-marked (0x21 length byte + >=33 bytes)
// public key encodings.
func looksLikePubkey(data []byte) bool {
	if len(data) == 33 && (data[0] == 0x02 || data[0] == 0x03) {
		return true
	}
	if len(data) == 65 && data[0] == 0x04 {
		return true
	}
	if len(data) >= 34 && data[0] == 0x21 {
		return true
	}
	return false
}

func joinChunks(chunks [][]byte) []byte {
	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	out := make([]byte, 0, total)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

// classifySender picks tx.vout[0]'s first address, or "unknown" if the
// first output carries none.
func classifySender(vouts []VoutAddresses) string {
	if len(vouts) == 0 || len(vouts[0].Addresses) == 0 {
		return "unknown"
	}
	return vouts[0].Addresses[0]
}

// IsShielded reports whether addr is a shielded (non-transparent) Zcash
// address, identified by the conventional 'z' prefix.
func IsShielded(addr string) bool {
	return strings.HasPrefix(addr, "z")
}
