package ui

import (
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// callbackPrefix is the fixed lead token of every inline-button callback
// payload (§6 "Callback-data format").
const callbackPrefix = "v3"

// encodeCallback builds a "v3:<action>[:<arg>]" payload.
func encodeCallback(action string, arg string) string {
	if arg == "" {
		return callbackPrefix + ":" + action
	}
	return callbackPrefix + ":" + action + ":" + arg
}

// decodeCallback splits a callback payload into its action and optional
// argument, rejecting anything not carrying the expected prefix.
func decodeCallback(data string) (action, arg string, ok bool) {
	parts := strings.SplitN(data, ":", 3)
	if len(parts) < 2 || parts[0] != callbackPrefix {
		return "", "", false
	}
	action = parts[1]
	if len(parts) == 3 {
		arg = parts[2]
	}
	return action, arg, true
}

func btn(label, action, arg string) telego.InlineKeyboardButton {
	return tu.InlineKeyboardButton(label).WithCallbackData(encodeCallback(action, arg))
}

func row(buttons ...telego.InlineKeyboardButton) []telego.InlineKeyboardButton {
	return buttons
}

func keyboard(rows ...[]telego.InlineKeyboardButton) *telego.InlineKeyboardMarkup {
	return tu.InlineKeyboard(rows...)
}

func sessionsKeyboard(names []string) *telego.InlineKeyboardMarkup {
	var rows [][]telego.InlineKeyboardButton
	for i, name := range names {
		rows = append(rows, row(btn(name, "sess", strconv.Itoa(i))))
	}
	rows = append(rows, row(btn("+ New", "new", ""), btn("+ Auto", "new_auto", "")))
	rows = append(rows, row(btn("Paths", "paths", "")))
	return keyboard(rows...)
}

func sessionKeyboard(running bool) *telego.InlineKeyboardMarkup {
	if running {
		return keyboard(
			row(btn("Interrupt", "interrupt", "")),
			row(btn("Detach", "detach", "")),
			row(btn("Back", "back_sessions", "")),
		)
	}
	return keyboard(
		row(btn("Model", "model", ""), btn("Logs", "logs", "")),
		row(btn("Clear", "clear", ""), btn("Delete", "delete", "")),
		row(btn("Back", "back_sessions", "")),
	)
}

func confirmKeyboard(yesAction, noAction string) *telego.InlineKeyboardMarkup {
	return keyboard(row(btn("Yes", yesAction, ""), btn("No", noAction, "")))
}

// cancelKeyboard is a single "Cancel" button used by text-entry screens
// that have no yes/no decision of their own.
func cancelKeyboard(backAction string) *telego.InlineKeyboardMarkup {
	return keyboard(row(btn("Cancel", backAction, "")))
}

func pathsKeyboard(presets []string) *telego.InlineKeyboardMarkup {
	var rows [][]telego.InlineKeyboardButton
	for i, p := range presets {
		rows = append(rows, row(
			btn(p, "path_pick", strconv.Itoa(i)),
			btn("x", "path_del", strconv.Itoa(i)),
		))
	}
	rows = append(rows, row(btn("+ Add path", "paths_add", "")))
	rows = append(rows, row(btn("Back", "back_sessions", "")))
	return keyboard(rows...)
}

func modelKeyboard(presets []string) *telego.InlineKeyboardMarkup {
	var rows [][]telego.InlineKeyboardButton
	for i, m := range presets {
		rows = append(rows, row(btn(m, "model_pick", strconv.Itoa(i))))
	}
	rows = append(rows, row(btn("Custom…", "model_custom", "")))
	rows = append(rows,
		row(btn("low", "reasoning_pick", "low"), btn("medium", "reasoning_pick", "medium")),
		row(btn("high", "reasoning_pick", "high"), btn("xhigh", "reasoning_pick", "xhigh")),
	)
	rows = append(rows, row(btn("Back", "session_back", "")))
	return keyboard(rows...)
}

func logsKeyboard() *telego.InlineKeyboardMarkup {
	return keyboard(row(btn("Back", "session_back", "")))
}
