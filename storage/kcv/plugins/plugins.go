// Package plugins lists every kcv store driver
package plugins

import (
	"github.com/jrife/kcvstore/storage/kcv"
	"github.com/jrife/kcvstore/storage/kcv/backends/bbolt"
	"github.com/jrife/kcvstore/storage/kcv/backends/memory"
	"github.com/jrife/kcvstore/storage/kcv/backends/ringstore"
)

var plugins []kcv.Plugin

func init() {
	plugins = append(plugins, memory.Plugins()...)
	plugins = append(plugins, bbolt.Plugins()...)
	plugins = append(plugins, ringstore.Plugins()...)
}

// Plugin returns the plugin whose name matches the given name.
// It returns nil if no such plugin is found.
func Plugin(name string) kcv.Plugin {
	for _, plugin := range plugins {
		if plugin.Name() == name {
			return plugin
		}
	}

	return nil
}

// Plugins lists all the plugins that are available
func Plugins() []kcv.Plugin {
	return plugins
}
