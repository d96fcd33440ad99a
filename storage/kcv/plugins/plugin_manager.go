package plugins

import (
	"fmt"

	"github.com/jrife/kcvstore/storage/kcv"
)

// NewManager opens a manager with the driver whose
// name matches driver
func NewManager(driver string, options kcv.PluginOptions) (kcv.Manager, error) {
	plugin := Plugin(driver)

	if plugin == nil {
		return nil, fmt.Errorf("no such driver %q: %w", driver, kcv.ErrUnsupported)
	}

	return plugin.NewManager(options)
}
