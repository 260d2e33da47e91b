package server

import (
	"regexp"
	"strings"
)

// Markers printed by vanilla and Paper once the world is loaded.
var readyMarkers = []string{
	"INFO]: Done (",
	"For help, type",
	"This server is running",
}

// Lower-cased substrings that usually precede a crash. They only raise a
// warning; the exit code decides whether the server crashed.
var crashHints = []string{
	"exception",
	"error",
	"fatal",
	"crash",
	"outofmemoryerror",
	"unsupported java detected",
}

// Player names are anchored right after the "]: " that ends the log prefix,
// so chat lines ("]: <name> ...") cannot spoof a join or a leave.
var (
	joinPattern  = regexp.MustCompile(`\]: ([A-Za-z0-9_]{1,16})\[[^\]]*\] logged in with entity id \d+`)
	leavePattern = regexp.MustCompile(`\]: ([A-Za-z0-9_]{1,16}) lost connection: `)
)

// LineInfo is what a single console line says about the server.
type LineInfo struct {
	Ready     bool
	CrashHint bool
	Joined    string
	Left      string
}

// ParseLine classifies a console line.
func ParseLine(line string) LineInfo {
	var info LineInfo
	for _, m := range readyMarkers {
		if strings.Contains(line, m) {
			info.Ready = true
			break
		}
	}
	lower := strings.ToLower(line)
	for _, h := range crashHints {
		if strings.Contains(lower, h) {
			info.CrashHint = true
			break
		}
	}
	if m := joinPattern.FindStringSubmatch(line); m != nil {
		info.Joined = m[1]
	} else if m := leavePattern.FindStringSubmatch(line); m != nil {
		info.Left = m[1]
	}
	return info
}
