// Package metrics records server lifecycle metrics and exposes them to
// Prometheus.
package metrics

// Recorder receives lifecycle events from the manager.
type Recorder interface {
	// RecordState marks state as the current state of server.
	RecordState(server, state string)

	// RecordPlayers sets the number of players online on server.
	RecordPlayers(server string, online int)

	// RecordStart counts a start attempt that spawned a process.
	RecordStart(server string)

	// RecordCrash counts an unexpected process exit.
	RecordCrash(server string)

	// RecordDownload counts a jar download for software.
	RecordDownload(software string, success bool)

	// Forget drops every series of a deleted server.
	Forget(server string)
}

// NoopRecorder discards everything.
type NoopRecorder struct{}

var _ Recorder = NoopRecorder{}

func (NoopRecorder) RecordState(string, string) {}
func (NoopRecorder) RecordPlayers(string, int) {}
func (NoopRecorder) RecordStart(string) {}
func (NoopRecorder) RecordCrash(string) {}
func (NoopRecorder) RecordDownload(string, bool) {}
func (NoopRecorder) Forget(string) {}
