package tgui

import (
	"strconv"
	"strings"
)

// Token formats inline callback data as "action" or "action:param".
// Telegram caps callback_data at 64 bytes; callers keep params numeric.
func Token(action string, param ...string) string {
	action = strings.TrimSpace(action)
	if len(param) == 0 || param[0] == "" {
		return action
	}
	return action + ":" + param[0]
}

// TokenID is Token with a numeric payload.
func TokenID(action string, id int64) string {
	return Token(action, strconv.FormatInt(id, 10))
}

// Split parses callback data produced by Token back into (action, param).
// Telegram clients may prefix callback data with "\f"; it is stripped here.
func Split(data string) (action, param string) {
	data = strings.TrimPrefix(strings.TrimSpace(data), "\f")
	if i := strings.IndexByte(data, ':'); i >= 0 {
		return data[:i], data[i+1:]
	}
	return data, ""
}

// SplitID parses callback data whose param is a numeric id.
// ok is false when the param is missing or not a number.
func SplitID(data string) (action string, id int64, ok bool) {
	action, param := Split(data)
	if param == "" {
		return action, 0, false
	}
	id, err := strconv.ParseInt(param, 10, 64)
	if err != nil {
		return action, 0, false
	}
	return action, id, true
}
