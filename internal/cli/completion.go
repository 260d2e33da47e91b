package cli

import (
	"fmt"
	"io"
	"strings"
)

// FlagCompletion describes a command-line flag for shell completion.
type FlagCompletion struct {
	Long      string   // flag name without "--"
	Help      string   // description text
	Values    []string // suggested values (nil = none)
	ValueName string   // label for the value; empty for boolean flags
	IsFile    bool     // completes file names
	IsDir     bool     // completes directory names
}

// flagRegistry is the list every completion script is generated from.
var flagRegistry = []FlagCompletion{
	{Long: "help", Help: "Show help message"},
	{Long: "version", Help: "Show version information"},
	{Long: "tui", Help: "Start the terminal interface"},
	{Long: "servers-dir", Help: "Directory holding managed servers", ValueName: "dir", IsDir: true},
	{Long: "backups-dir", Help: "Directory receiving backups", ValueName: "dir", IsDir: true},
	{Long: "java", Help: "Java executable", ValueName: "file", IsFile: true},
	{Long: "stop-timeout", Help: "Grace period before killing a server", Values: []string{"10s", "30s", "1m", "2m"}, ValueName: "duration"},
	{Long: "http-timeout", Help: "Timeout of provider requests", Values: []string{"5s", "10s", "30s"}, ValueName: "duration"},
	{Long: "log-level", Help: "Log level", Values: []string{"debug", "info", "warn", "error"}, ValueName: "level"},
	{Long: "log-file", Help: "Log file used in TUI mode", ValueName: "file", IsFile: true},
	{Long: "metrics-addr", Help: "Prometheus listen address", Values: []string{":9225", "127.0.0.1:9225"}, ValueName: "addr"},
	{Long: "no-color", Help: "Disable colored output"},
	{Long: "theme", Help: "Color theme", Values: []string{"dark", "light"}, ValueName: "theme"},
	{Long: "config", Help: "TOML config file", ValueName: "file", IsFile: true},
	{Long: "completion", Help: "Generate a completion script", Values: []string{"bash", "zsh", "fish"}, ValueName: "shell"},
}

// GenerateCompletion writes a completion script for shell ("bash", "zsh" or "fish").
func GenerateCompletion(out io.Writer, program, shell string) error {
	var script string
	switch shell {
	case "bash":
		script = bashCompletion(program)
	case "zsh":
		script = zshCompletion(program)
	case "fish":
		script = fishCompletion(program)
	default:
		return fmt.Errorf("unsupported shell: %s (accepted values: bash, zsh, fish)", shell)
	}
	if _, err := io.WriteString(out, script); err != nil {
		return fmt.Errorf("completion %s generation failed: %w", shell, err)
	}
	return nil
}

func bashCompletion(program string) string {
	var opts []string
	var cases strings.Builder
	for _, f := range flagRegistry {
		opts = append(opts, "--"+f.Long)
		var body string
		switch {
		case f.IsDir:
			body = `COMPREPLY=( $(compgen -d -- "${cur}") )`
		case f.IsFile:
			body = `COMPREPLY=( $(compgen -f -- "${cur}") )`
		case len(f.Values) > 0:
			body = fmt.Sprintf(`COMPREPLY=( $(compgen -W "%s" -- "${cur}") )`, strings.Join(f.Values, " "))
		default:
			continue
		}
		fmt.Fprintf(&cases, "        --%s)\n            %s\n            return 0\n            ;;\n", f.Long, body)
	}
	fn := "_" + shellIdent(program) + "_completions"
	return fmt.Sprintf(`# Bash completion script for %[1]s
# Add this to your ~/.bashrc or ~/.bash_completion

%[2]s() {
    local cur prev opts
    COMPREPLY=()
    cur="${COMP_WORDS[COMP_CWORD]}"
    prev="${COMP_WORDS[COMP_CWORD-1]}"
    opts="%[3]s"

    case "${prev}" in
%[4]s    esac

    if [[ "${cur}" == -* ]]; then
        COMPREPLY=( $(compgen -W "${opts}" -- "${cur}") )
        return 0
    fi
}

complete -F %[2]s %[1]s
`, program, fn, strings.Join(opts, " "), cases.String())
}

func zshCompletion(program string) string {
	args := make([]string, 0, len(flagRegistry))
	for _, f := range flagRegistry {
		suffix := ""
		switch {
		case f.IsDir:
			suffix = fmt.Sprintf(":%s:_directories", f.ValueName)
		case f.IsFile:
			suffix = fmt.Sprintf(":%s:_files", f.ValueName)
		case len(f.Values) > 0:
			suffix = fmt.Sprintf(":%s:(%s)", f.ValueName, strings.Join(f.Values, " "))
		case f.ValueName != "":
			suffix = fmt.Sprintf(":%s:", f.ValueName)
		}
		args = append(args, fmt.Sprintf("        '--%s[%s]%s'", f.Long, f.Help, suffix))
	}
	fn := "_" + shellIdent(program)
	return fmt.Sprintf(`#compdef %[1]s

# Zsh completion script for %[1]s
# Place this file in your $fpath

%[2]s() {
    _arguments -s \
%[3]s
}

%[2]s "$@"
`, program, fn, strings.Join(args, " \\\n"))
}

func fishCompletion(program string) string {
	lines := []string{
		"# Fish completion script for " + program,
		fmt.Sprintf("# Add this to ~/.config/fish/completions/%s.fish", program),
		"",
		"complete -c " + program + " -f",
	}
	for _, f := range flagRegistry {
		parts := []string{"complete -c " + program, "-l " + f.Long, fmt.Sprintf("-d '%s'", f.Help)}
		switch {
		case f.IsDir:
			parts = append(parts, "-xa '(__fish_complete_directories)'")
		case f.IsFile:
			parts = append(parts, "-rF")
		case len(f.Values) > 0:
			parts = append(parts, fmt.Sprintf("-xa '%s'", strings.Join(f.Values, " ")))
		case f.ValueName != "":
			parts = append(parts, "-x")
		}
		lines = append(lines, strings.Join(parts, " "))
	}
	return strings.Join(lines, "\n") + "\n"
}

// shellIdent turns a program name into a shell function identifier.
func shellIdent(program string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' {
			return r
		}
		return '_'
	}, program)
}
