package doctor

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/hay-kot/criterio"

	"github.com/hay-kot/dtfchat/internal/core/config"
)

// ConfigCheck validates the loaded configuration and reports its warnings.
type ConfigCheck struct {
	config     *config.Config
	configPath string
}

// NewConfigCheck creates a new configuration check.
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

	if c.configPath != "" {
		result.Items = append(result.Items, c.fileItem())
	}

	hint := "edit the config file, then run 'dtfchat config validate'"
	if c.configPath != "" {
		hint = "edit " + c.configPath + ", then run 'dtfchat config validate'"
	}

	err := c.config.ValidateDeep(c.configPath)
	warnings := c.config.Warnings()

	if err == nil && len(warnings) == 0 {
		result.Items = append(result.Items, CheckItem{
			Label:  "Config valid",
			Status: StatusPass,
		})
		return result
	}

	var fieldErrs criterio.FieldErrors
	switch {
	case errors.As(err, &fieldErrs):
		for _, fe := range fieldErrs {
			label := fe.Field
			if label == "" {
				label = "validation"
			}
			result.Items = append(result.Items, CheckItem{Label: label, Status: StatusFail, Detail: fe.Err.Error(), Hint: hint})
		}
	case err != nil:
		result.Items = append(result.Items, CheckItem{Label: "validation", Status: StatusFail, Detail: err.Error(), Hint: hint})
	}

	for _, w := range warnings {
		label := w.Category
		if w.Item != "" {
			label += " (" + w.Item + ")"
		}
		result.Items = append(result.Items, CheckItem{Label: label, Status: StatusWarn, Detail: w.Message})
	}

	return result
}

// fileItem reports which file the settings came from. A missing file is
// fine: defaults apply.
func (c *ConfigCheck) fileItem() CheckItem {
	_, err := os.Stat(c.configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return CheckItem{
			Label:  "Config file",
			Status: StatusPass,
			Detail: "not found, using defaults",
			Hint:   "'dtfchat config show --defaults' prints a starting point",
		}
	case err != nil:
		return CheckItem{Label: "Config file", Status: StatusFail, Detail: err.Error()}
	}
	return CheckItem{Label: "Config file", Status: StatusPass, Detail: c.configPath}
}
