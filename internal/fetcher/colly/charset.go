package collyfetcher

import (
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/simplifiedchinese"
)

// normalizeUTF8 decodes the response body to UTF-8 using the declared or
// sniffed charset. The target site serves simplified-Chinese pages, so GBK is
// the fallback when detection is inconclusive and the body is not already
// valid UTF-8.
func normalizeUTF8(body []byte, contentType string) []byte {
	if len(body) == 0 {
		return body
	}

	enc, name, certain := charset.DetermineEncoding(body, contentType)
	if !certain && name == "windows-1252" {
		// DetermineEncoding falls back to windows-1252 when it has no real
		// signal; prefer the site's native encoding instead.
		if utf8.Valid(body) {
			return body
		}
		enc = simplifiedchinese.GBK
	}

	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return body
	}
	return decoded
}
