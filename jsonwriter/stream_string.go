/**
 * Copyright (c) 2019, The Artemis Authors.
 *
 * Permission to use, copy, modify, and/or distribute this software for any
 * purpose with or without fee is hereby granted, provided that the above
 * copyright notice and this permission notice appear in all copies.
 *
 * THE SOFTWARE IS PROVIDED "AS IS" AND THE AUTHOR DISCLAIMS ALL WARRANTIES
 * WITH REGARD TO THIS SOFTWARE INCLUDING ALL IMPLIED WARRANTIES OF
 * MERCHANTABILITY AND FITNESS. IN NO EVENT SHALL THE AUTHOR BE LIABLE FOR
 * ANY SPECIAL, DIRECT, INDIRECT, OR CONSEQUENTIAL DAMAGES OR ANY DAMAGES
 * WHATSOEVER RESULTING FROM LOSS OF USE, DATA OR PROFITS, WHETHER IN AN
 * ACTION OF CONTRACT, NEGLIGENCE OR OTHER TORTIOUS ACTION, ARISING OUT OF
 * OR IN CONNECTION WITH THE USE OR PERFORMANCE OF THIS SOFTWARE.
 */

package jsonwriter

const hexDigits = "0123456789abcdef"

// noEscapeTable[b] is true if byte b can be written into a JSON string literal as-is: everything
// except '"', '\\', and the C0 control range that the JSON grammar requires escaped.
var noEscapeTable = func() [256]bool {
	var table [256]bool
	for b := 0x20; b <= 0xFF; b++ {
		table[b] = true
	}
	table['"'] = false
	table['\\'] = false
	return table
}()

// WriteString encodes s as a quoted JSON string, escaping control characters, quotes, and
// backslashes; any other byte (including multi-byte UTF-8 sequences) is copied through unescaped.
// Unlike encoding/json, it does not escape HTML characters or U+2028/U+2029, and it does not
// replace invalid UTF-8 with U+FFFD.
func (stream *Stream) WriteString(s string) {
	if stream.err != nil {
		return
	}
	stream.writeOneByte('"')

	start := 0
	for i := 0; i < len(s); i++ {
		b := s[i]
		if noEscapeTable[b] {
			continue
		}
		if start < i {
			stream.write([]byte(s[start:i]))
		}
		switch b {
		case '"':
			stream.writeTwoBytes('\\', '"')
		case '\\':
			stream.writeTwoBytes('\\', '\\')
		case '\n':
			stream.writeTwoBytes('\\', 'n')
		case '\r':
			stream.writeTwoBytes('\\', 'r')
		case '\t':
			stream.writeTwoBytes('\\', 't')
		default:
			stream.writeTwoBytes('\\', 'u')
			stream.writeTwoBytes('0', '0')
			stream.writeTwoBytes(hexDigits[b>>4], hexDigits[b&0xF])
		}
		start = i + 1
	}
	if start < len(s) {
		stream.write([]byte(s[start:]))
	}
	stream.writeOneByte('"')
}
