package kcv

import (
	"fmt"

	"go.uber.org/zap"
)

// String returns the string option with this name. If the
// option is missing it returns def, or an error if required
// is true.
func (options PluginOptions) String(name string, required bool, def string) (string, error) {
	raw, ok := options[name]

	if !ok {
		if required {
			return "", fmt.Errorf("%q is required", name)
		}

		return def, nil
	}

	value, ok := raw.(string)

	if !ok {
		return "", fmt.Errorf("%q must be a string", name)
	}

	return value, nil
}

// StringSliceMap returns an option holding a map of string
// lists, such as the tokens owned by each node of a ring
func (options PluginOptions) StringSliceMap(name string) (map[string][]string, error) {
	raw, ok := options[name]

	if !ok {
		return map[string][]string{}, nil
	}

	switch m := raw.(type) {
	case map[string][]string:
		return m, nil
	case map[string]interface{}:
		result := make(map[string][]string, len(m))

		for k, v := range m {
			list, ok := v.([]interface{})

			if !ok {
				if strs, ok := v.([]string); ok {
					result[k] = strs

					continue
				}

				return nil, fmt.Errorf("%q.%q must be a list of strings", name, k)
			}

			for _, item := range list {
				s, ok := item.(string)

				if !ok {
					return nil, fmt.Errorf("%q.%q must be a list of strings", name, k)
				}

				result[k] = append(result[k], s)
			}
		}

		return result, nil
	}

	return nil, fmt.Errorf("%q must be a map of string lists", name)
}

// Logger returns the *zap.Logger passed as the "logger"
// option or the global logger
func (options PluginOptions) Logger() (*zap.Logger, error) {
	raw, ok := options["logger"]

	if !ok || raw == nil {
		return zap.L(), nil
	}

	logger, ok := raw.(*zap.Logger)

	if !ok {
		return nil, fmt.Errorf("\"logger\" must be a *zap.Logger")
	}

	return logger, nil
}
