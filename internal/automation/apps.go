package automation

// Per-OS application alias tables. Friendly names map to the executable or
// bundle the platform launcher understands; unresolved names are passed
// through as a best-effort process launch.
var appAliases = map[string]map[string]string{
	"windows": {
		"notepad":    "notepad.exe",
		"paint":      "mspaint.exe",
		"calculator": "calc.exe",
		"chrome":     "chrome.exe",
		"firefox":    "firefox.exe",
		"vs code":    "code.exe",
		"code":       "code.exe",
		"spotify":    "spotify.exe",
		"word":       "winword.exe",
		"excel":      "excel.exe",
	},
	"darwin": {
		"notepad":    "TextEdit",
		"paint":      "Preview",
		"calculator": "Calculator",
		"chrome":     "Google Chrome",
		"firefox":    "Firefox",
		"vs code":    "Visual Studio Code",
		"code":       "Visual Studio Code",
		"spotify":    "Spotify",
		"notes":      "Notes",
	},
	"linux": {
		"notepad":    "gedit",
		"paint":      "kolourpaint",
		"calculator": "gnome-calculator",
		"chrome":     "google-chrome",
		"firefox":    "firefox",
		"vs code":    "code",
		"code":       "code",
		"spotify":    "spotify",
	},
}

// resolveApp maps a friendly app name to its platform launch target.
func resolveApp(goos, name string) (string, bool) {
	table, ok := appAliases[goos]
	if !ok {
		return name, false
	}
	target, ok := table[name]
	if !ok {
		return name, false
	}
	return target, true
}
