package logger

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

// =================================================================================
// HTTP
// =================================================================================

func RequestID(v string) zap.Field {
	return zap.String("request_id", v)
}

func Method(v string) zap.Field {
	return zap.String("method", v)
}

func Path(v string) zap.Field {
	return zap.String("path", v)
}

func Status(v int) zap.Field {
	return zap.Int("status", v)
}

func Bytes(v int) zap.Field {
	return zap.Int("bytes", v)
}

func ClientIP(v string) zap.Field {
	return zap.String("client_ip", v)
}

// DurationMs records d in whole milliseconds.
func DurationMs(d time.Duration) zap.Field {
	return zap.Int64("duration_ms", d.Milliseconds())
}

// =================================================================================
// SYSTEM
// =================================================================================

// Layer is the architectural layer: controller, service, adapter, store.
func Layer(v string) zap.Field {
	return zap.String("layer", v)
}

func Component(v string) zap.Field {
	return zap.String("component", v)
}

func Op(v string) zap.Field {
	return zap.String("op", v)
}

func Err(err error) zap.Field {
	return zap.Error(err)
}

// =================================================================================
// SOCIAL LOGIN
// =================================================================================

// Provider identifies a registered provider. Unregistered names coming from the
// request are logged with String("provider_requested", ...) instead.
func Provider(v string) zap.Field {
	return zap.String("provider", v)
}

func UserID(v string) zap.Field {
	return zap.String("user_id", v)
}

func Outcome(v string) zap.Field {
	return zap.String("outcome", v)
}

// MaskedToken logs a token as a short prefix and its length.
func MaskedToken(v string) zap.Field {
	return zap.String("token_masked", MaskToken(v))
}

// MaskedEmail logs the first two characters of the local part and the domain.
func MaskedEmail(v string) zap.Field {
	return zap.String("email_masked", MaskEmail(v))
}

// =================================================================================
// GENERIC
// =================================================================================

func String(key, v string) zap.Field {
	return zap.String(key, v)
}

func Int(key string, v int) zap.Field {
	return zap.Int(key, v)
}

func Bool(key string, v bool) zap.Field {
	return zap.Bool(key, v)
}

func Any(key string, v any) zap.Field {
	return zap.Any(key, v)
}

// MaskToken never reveals more than four characters of v.
func MaskToken(v string) string {
	switch {
	case v == "":
		return ""
	case utf8.RuneCountInString(v) <= 8:
		return "***"
	default:
		return runePrefix(v, 4) + "***(" + strconv.Itoa(len(v)) + ")"
	}
}

// MaskEmail turns "winnie@100acre.net" into "wi***@100acre.net".
func MaskEmail(email string) string {
	if utf8.RuneCountInString(email) < 3 {
		return "***"
	}
	head := runePrefix(email, 2)
	at := strings.IndexByte(email, '@')
	if at < len(head) {
		return head + "***"
	}
	return head + "***" + email[at:]
}

// runePrefix returns the first n runes of s without splitting a UTF-8 sequence.
func runePrefix(s string, n int) string {
	i := 0
	for n > 0 && i < len(s) {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
		n--
	}
	return s[:i]
}
