package cli

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/milndr/lodestone-server-manager/internal/server"
	"github.com/milndr/lodestone-server-manager/internal/ui"
)

func (r *REPL) cmdListProperties(_ context.Context, args []string) {
	srv, ok := r.server(args[0])
	if !ok {
		return
	}
	props, err := srv.Properties()
	if err != nil {
		r.errorf("Error: %v", err)
		return
	}
	if props.Len() == 0 {
		fmt.Fprintln(r.out, "server.properties is empty.")
		return
	}
	rows := make([][]cell, 0, props.Len())
	for _, key := range props.Keys() {
		rows = append(rows, []cell{{text: key, color: ui.ColorCyan()}, {text: props.Raw(key)}})
	}
	fmt.Fprintf(r.out, "%s%s properties%s\n", ui.ColorBold(), srv.Name(), ui.ColorReset())
	printTable(r.out, []string{"Property", "Value"}, rows)
}

func (r *REPL) cmdSetProperty(_ context.Context, args []string) {
	srv, ok := r.server(args[0])
	if !ok {
		return
	}
	key, value := args[1], args[2]
	switch err := srv.SetProperty(key, value); {
	case err == nil:
		r.successf("Property %s set to %s for server %s", key, value, srv.Name())
		if srv.State().Active() {
			fmt.Fprintln(r.out, "Restart the server to apply the change.")
		}
	case errors.Is(err, server.ErrUnknownProperty):
		r.warnf("Property not found: %s", key)
	case errors.Is(err, server.ErrInvalidValue):
		r.warnf("Invalid value: %v", err)
	default:
		r.errorf("Error setting property: %v", err)
	}
}
