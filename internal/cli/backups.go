package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/milndr/lodestone-server-manager/internal/backup"
	"github.com/milndr/lodestone-server-manager/internal/format"
	"github.com/milndr/lodestone-server-manager/internal/rcon"
	"github.com/milndr/lodestone-server-manager/internal/ui"
)

func (r *REPL) cmdBackup(ctx context.Context, args []string) {
	srv, ok := r.server(args[0])
	if !ok {
		return
	}
	s := r.spinner(r.out)
	s.UpdateSuffix(" backing up " + srv.Name())
	s.Start()
	start := time.Now()
	archive, err := r.manager.Backup(ctx, srv.Name(), r.config.BackupsDir)
	s.Stop()
	if err != nil {
		r.errorf("Backup failed: %v", err)
		return
	}
	r.successf("Backup written to %s (%s in %s)", archive.Path, format.FormatBytes(archive.Size), format.FormatExecutionDuration(time.Since(start)))
}

func (r *REPL) cmdBackups(_ context.Context, args []string) {
	srv, ok := r.server(args[0])
	if !ok {
		return
	}
	archives, err := backup.List(r.config.BackupsDir, srv.Name())
	if err != nil {
		r.errorf("Error: %v", err)
		return
	}
	if len(archives) == 0 {
		fmt.Fprintf(r.out, "No backups of %s in %s.\n", srv.Name(), r.config.BackupsDir)
	} else {
		rows := make([][]cell, 0, len(archives))
		for _, a := range archives {
			rows = append(rows, []cell{
				{text: a.Created.Local().Format(time.DateTime)},
				{text: format.FormatBytes(a.Size), color: ui.ColorCyan()},
				{text: a.Path, color: ui.ColorGrey()},
			})
		}
		printTable(r.out, []string{"Created", "Size", "Path"}, rows)
	}
	if r.scheduler != nil {
		if next, ok := r.scheduler.Next(srv.Name()); ok {
			fmt.Fprintf(r.out, "Next scheduled backup: %s\n", next.Local().Format(time.DateTime))
		}
	}
}

// parseSchedule splits "<spec> [keep <n>]". keep is -1 when absent.
func parseSchedule(raw string) (spec string, keep int, err error) {
	keep = -1
	fields := strings.Fields(raw)
	if n := len(fields); n >= 2 && strings.EqualFold(fields[n-2], "keep") {
		keep, err = strconv.Atoi(fields[n-1])
		if err != nil || keep < 0 {
			return "", 0, errors.Newf("invalid keep count %q", fields[n-1])
		}
		fields = fields[:n-2]
	}
	spec = strings.Join(fields, " ")
	if strings.EqualFold(spec, "off") {
		spec = ""
	}
	return spec, keep, nil
}

func (r *REPL) cmdScheduleBackup(_ context.Context, args []string) {
	srv, ok := r.server(args[0])
	if !ok {
		return
	}
	spec, keep, err := parseSchedule(args[1])
	if err == nil && spec == "" && !strings.EqualFold(strings.Fields(args[1])[0], "off") {
		err = errors.New("missing schedule")
	}
	if err != nil {
		r.warnf("%v. Usage: schedule_backup <name> <cron|off> [keep <n>]", err)
		return
	}
	if err := r.manager.SetBackupSchedule(srv.Name(), spec, keep); err != nil {
		r.warnf("Cannot schedule backups: %v", err)
		return
	}
	if r.scheduler != nil {
		if err := r.scheduler.Set(srv.Name(), spec); err != nil {
			r.errorf("Error: %v", err)
			return
		}
	}
	if spec == "" {
		r.successf("Scheduled backups of %s disabled", srv.Name())
		return
	}
	mf, _ := r.manager.Manifest(srv.Name())
	r.successf("Backups of %s scheduled at %q (keep %s)", srv.Name(), spec, keepLabel(mf.BackupKeep))
}

func (r *REPL) cmdRCON(ctx context.Context, args []string) {
	srv, ok := r.server(args[0])
	if !ok {
		return
	}
	props, err := srv.Properties()
	if err != nil {
		r.errorf("Error: %v", err)
		return
	}
	client, err := rcon.FromProperties(props)
	if err != nil {
		r.warnf("Cannot use RCON: %v", err)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, rcon.DefaultDialTimeout*2)
	defer cancel()
	reply, err := rcon.Exec(ctx, client, args[1])
	if err != nil {
		r.errorf("RCON error: %v", err)
		return
	}
	if reply = strings.TrimSpace(reply); reply != "" {
		fmt.Fprintln(r.out, reply)
	}
}
