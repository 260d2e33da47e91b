package ui

// ANSI accessors for the active theme. They are evaluated on every call so a
// theme change takes effect immediately.

// ColorReset returns the escape sequence that clears formatting.
func ColorReset() string { return GetCurrentTheme().Reset }

// ColorBold returns the bold escape sequence.
func ColorBold() string { return GetCurrentTheme().Bold }

// ColorUnderline returns the underline escape sequence.
func ColorUnderline() string { return GetCurrentTheme().Underline }

// ColorCyan returns the primary accent color.
func ColorCyan() string { return GetCurrentTheme().Primary }

// ColorGreen returns the success color.
func ColorGreen() string { return GetCurrentTheme().Success }

// ColorYellow returns the warning color.
func ColorYellow() string { return GetCurrentTheme().Warning }

// ColorRed returns the error color.
func ColorRed() string { return GetCurrentTheme().Error }

// ColorBlue returns the info color.
func ColorBlue() string { return GetCurrentTheme().Info }

// ColorGrey returns the secondary color.
func ColorGrey() string { return GetCurrentTheme().Secondary }

// Colorize wraps s in color and a reset. With the no-color theme s is returned as is.
func Colorize(color, s string) string {
	if color == "" {
		return s
	}
	return color + s + ColorReset()
}

// StateColor returns the ANSI color used for a server state name.
//
// Parameters:
//   - state: A state name such as "RUNNING" or "CRASHED".
//
// Returns:
//   - string: The escape code from the active theme.
func StateColor(state string) string {
	t := GetCurrentTheme()
	switch state {
	case "RUNNING":
		return t.Success
	case "STARTING", "STOPPING":
		return t.Warning
	case "CRASHED":
		return t.Error
	default:
		return t.Secondary
	}
}
