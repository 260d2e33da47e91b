package tui

import (
	"slices"
	"testing"

	"github.com/charmbracelet/bubbles/key"
)

func TestDefaultKeyMap_AllBindingsDefined(t *testing.T) {
	km := DefaultKeyMap()

	bindings := []struct {
		name    string
		binding key.Binding
	}{
		{"Quit", km.Quit},
		{"ForceQuit", km.ForceQuit},
		{"Back", km.Back},
		{"Up", km.Up},
		{"Down", km.Down},
		{"Enter", km.Enter},
		{"NextTab", km.NextTab},
		{"PrevTab", km.PrevTab},
		{"New", km.New},
		{"Start", km.Start},
		{"Stop", km.Stop},
		{"Restart", km.Restart},
		{"Theme", km.Theme},
		{"Edit", km.Edit},
		{"Apply", km.Apply},
		{"Backup", km.Backup},
		{"EULA", km.EULA},
		{"Delete", km.Delete},
		{"MoreRAM", km.MoreRAM},
		{"LessRAM", km.LessRAM},
		{"Yes", km.Yes},
		{"No", km.No},
		{"PageUp", km.PageUp},
		{"PageDown", km.PageDown},
	}

	for _, b := range bindings {
		t.Run(b.name, func(t *testing.T) {
			if !b.binding.Enabled() {
				t.Errorf("expected %s binding to be enabled", b.name)
			}
			if len(b.binding.Keys()) == 0 {
				t.Errorf("expected %s binding to have at least one key", b.name)
			}
			if b.binding.Help().Desc == "" {
				t.Errorf("expected %s binding to have help text", b.name)
			}
		})
	}
}

func TestDefaultKeyMap_QuitKeys(t *testing.T) {
	km := DefaultKeyMap()

	if !slices.Contains(km.Quit.Keys(), "q") {
		t.Error("expected Quit binding to include 'q'")
	}
	if !slices.Contains(km.ForceQuit.Keys(), "ctrl+c") {
		t.Error("expected ForceQuit binding to include 'ctrl+c'")
	}
}

func TestDefaultKeyMap_LifecycleKeysDoNotType(t *testing.T) {
	km := DefaultKeyMap()

	// Lifecycle keys must not collide with printable keys typed in the console input.
	for _, b := range []key.Binding{km.Start, km.Stop, km.Restart} {
		for _, k := range b.Keys() {
			if len([]rune(k)) == 1 {
				t.Errorf("lifecycle key %q is a printable character", k)
			}
		}
	}
}
