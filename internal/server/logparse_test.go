package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLine(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		line string
		want LineInfo
	}{
		{
			name: "vanilla done",
			line: `[12:00:01] [Server thread/INFO]: Done (3.512s)! For help, type "help"`,
			want: LineInfo{Ready: true},
		},
		{
			name: "paper done",
			line: `[12:00:01 INFO]: Done (7.001s)! For help, type "help"`,
			want: LineInfo{Ready: true},
		},
		{
			name: "plain info",
			line: `[12:00:00] [Server thread/INFO]: Preparing level "world"`,
			want: LineInfo{},
		},
		{
			name: "vanilla join",
			line: `[12:01:00] [Server thread/INFO]: Steve_99[/127.0.0.1:51234] logged in with entity id 42 at (0.5, 64.0, 0.5)`,
			want: LineInfo{Joined: "Steve_99"},
		},
		{
			name: "paper join",
			line: `[12:01:00 INFO]: Wendy[/10.0.0.2:40000] logged in with entity id 7 at ([world]1.0, 70.0, 2.0)`,
			want: LineInfo{Joined: "Wendy"},
		},
		{
			name: "leave",
			line: `[12:05:00] [Server thread/INFO]: Steve_99 lost connection: Disconnected`,
			want: LineInfo{Left: "Steve_99"},
		},
		{
			name: "leave with other reason",
			line: `[12:05:00] [Server thread/INFO]: Alex lost connection: Timed out`,
			want: LineInfo{Left: "Alex"},
		},
		{
			name: "chat cannot spoof a join",
			line: `[12:06:00] [Server thread/INFO]: <Alex> Bob[/1.2.3.4:5] logged in with entity id 1`,
			want: LineInfo{},
		},
		{
			name: "chat cannot spoof a leave",
			line: `[12:06:00] [Server thread/INFO]: <Alex> Bob lost connection: Disconnected`,
			want: LineInfo{},
		},
		{
			name: "crash hint",
			line: `[12:07:00] [Server thread/ERROR]: Encountered an unexpected exception`,
			want: LineInfo{CrashHint: true},
		},
		{
			name: "java version hint",
			line: `Unsupported Java detected (52.0). Only up to Java 21 is supported.`,
			want: LineInfo{CrashHint: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ParseLine(tt.line))
		})
	}
}
