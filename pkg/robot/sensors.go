package robot

import "strings"

// NoColor is reported when the color sensor sees nothing it recognizes.
const NoColor = "NO COLOR"

// colorNames maps the color sensor's raw codes to names.
var colorNames = [...]string{
	0: NoColor,
	1: "BLACK",
	2: "BLUE",
	3: "GREEN",
	4: "YELLOW",
	5: "RED",
	6: "WHITE",
	7: "BROWN",
}

// ColorName translates a raw color code. Codes outside the table read as
// NoColor.
func ColorName(code int) string {
	if code < 0 || code >= len(colorNames) {
		return NoColor
	}
	return colorNames[code]
}

// DistanceScale converts the proximity sensor's raw 0..100 reading to
// centimetres.
const DistanceScale = 0.7

// DistanceCM converts a raw proximity reading.
func DistanceCM(raw int) int {
	if raw < 0 {
		return 0
	}
	return int(float64(raw) * DistanceScale)
}

// MaxSpeechLength is the number of characters spoken from a request.
const MaxSpeechLength = 200

// SanitizeSpeech keeps the first MaxSpeechLength characters of text and
// then drops everything that is not printable ASCII.
func SanitizeSpeech(text string) string {
	runes := []rune(text)
	if len(runes) > MaxSpeechLength {
		runes = runes[:MaxSpeechLength]
	}
	var b strings.Builder
	b.Grow(len(runes))
	for _, r := range runes {
		if r >= 0x20 && r <= 0x7e {
			b.WriteRune(r)
		}
	}
	return b.String()
}
