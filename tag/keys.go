package tag

import (
	"strings"
	"time"
	"unicode"
)

// DefaultGap is how long Keys waits for the next keystroke of an id.
const DefaultGap = 50 * time.Millisecond

// Keys splits one keystroke stream into tag ids and ordinary key presses,
// for readers that type into the same terminal the booth takes keys from.
// Such readers type a whole id in a quick burst ending with Enter; anything
// that isn't such a burst is handed back as keys.
type Keys struct {
	// Gap is the longest pause between two keystrokes of one id.
	Gap time.Duration

	buf  []rune
	last time.Time
}

func isIDRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == ':' || r == '-'
}

// Feed takes one keystroke typed at now. It returns the keystrokes that turned
// out to be ordinary keys, and the tag when r completed one.
func (k *Keys) Feed(r rune, now time.Time) (keys []rune, t Tag, ok bool) {
	keys = k.Expire(now)
	k.last = now

	switch {
	case r == '\r' || r == '\n':
		if len(k.buf) > 1 {
			line := strings.TrimSpace(string(k.buf))
			k.buf = nil
			return keys, Parse(line), true
		}
		return append(append(keys, k.Flush()...), r), Tag{}, false
	case isIDRune(r):
		k.buf = append(k.buf, r)
		return keys, Tag{}, false
	default:
		return append(append(keys, k.Flush()...), r), Tag{}, false
	}
}

// Pending reports whether keystrokes are held back waiting for the rest of
// an id.
func (k *Keys) Pending() bool { return len(k.buf) > 0 }

// Expire hands back the held keystrokes once the gap after the last one has
// passed.
func (k *Keys) Expire(now time.Time) []rune {
	if len(k.buf) == 0 || now.Sub(k.last) < k.gap() {
		return nil
	}
	return k.Flush()
}

// Flush hands back the held keystrokes as keys.
func (k *Keys) Flush() []rune {
	held := k.buf
	k.buf = nil
	return held
}

func (k *Keys) gap() time.Duration {
	if k.Gap <= 0 {
		return DefaultGap
	}
	return k.Gap
}
