package doctor

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/hay-kot/criterio"
	"github.com/hay-kot/mentor/internal/core/config"
)

// ConfigCheck reports on the config file and the settings loaded from it.
type ConfigCheck struct {
	config     *config.Config
	configPath string
}

func NewConfigCheck(cfg *config.Config, configPath string) *ConfigCheck {
	return &ConfigCheck{
		config:     cfg,
		configPath: configPath,
	}
}

func (c *ConfigCheck) Name() string {
	return "Configuration"
}

func (c *ConfigCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	if c.config == nil {
		result.Items = append(result.Items, CheckItem{
			Label:  "Config loaded",
			Status: StatusFail,
			Detail: "configuration not loaded",
		})
		return result
	}

	if item, ok := c.fileItem(); ok {
		result.Items = append(result.Items, item)
	}

	failures := fieldItems(c.config.ValidateDeep(c.configPath))
	if len(failures) == 0 {
		result.Items = append(result.Items, CheckItem{
			Label:  "Settings valid",
			Status: StatusPass,
			Detail: fmt.Sprintf("user %s, provider %s, storage %s",
				c.config.UserID, c.config.Gateway.Provider, c.config.Storage.Backend),
		})
	}
	result.Items = append(result.Items, failures...)

	for _, w := range c.config.Warnings() {
		label := w.Item
		if label == "" {
			label = w.Category
		}
		result.Items = append(result.Items, CheckItem{
			Label:  label,
			Status: StatusWarn,
			Detail: w.Message,
		})
	}

	return result
}

// fileItem reports whether the config file exists. Access errors are left to
// ValidateDeep.
func (c *ConfigCheck) fileItem() (CheckItem, bool) {
	if c.configPath == "" {
		return CheckItem{}, false
	}

	_, err := os.Stat(c.configPath)
	switch {
	case err == nil:
		return CheckItem{Label: "Config file", Status: StatusPass, Detail: c.configPath}, true
	case errors.Is(err, os.ErrNotExist):
		return CheckItem{
			Label:  "Config file",
			Status: StatusWarn,
			Detail: "not found, using defaults (run 'mentor init')",
		}, true
	default:
		return CheckItem{}, false
	}
}

func fieldItems(err error) []CheckItem {
	if err == nil {
		return nil
	}

	var fieldErrs criterio.FieldErrors
	if !errors.As(err, &fieldErrs) {
		return []CheckItem{{Label: "validation", Status: StatusFail, Detail: err.Error()}}
	}

	items := make([]CheckItem, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		label := fe.Field
		if label == "" {
			label = "validation"
		}
		items = append(items, CheckItem{Label: label, Status: StatusFail, Detail: fe.Err.Error()})
	}
	return items
}
