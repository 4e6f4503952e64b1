package doctor

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/hay-kot/mentor/internal/core/chat"
	"github.com/hay-kot/mentor/internal/core/config"
	"github.com/hay-kot/mentor/internal/store"
)

// readUser is read, never written, when checking that the store answers.
const readUser = "doctor-check"

// StoreCheck verifies the storage backend can be opened and read.
type StoreCheck struct {
	config *config.Config
	fix    bool
}

// NewStoreCheck creates a storage check. When fix is set a missing data
// directory is created.
func NewStoreCheck(cfg *config.Config, fix bool) *StoreCheck {
	return &StoreCheck{config: cfg, fix: fix}
}

func (c *StoreCheck) Name() string {
	return "Storage"
}

func (c *StoreCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	if c.config == nil {
		result.Items = append(result.Items, CheckItem{
			Label:  "Config loaded",
			Status: StatusFail,
			Detail: "configuration not loaded",
		})
		return result
	}

	backend := c.config.Storage.Backend
	result.Items = append(result.Items, CheckItem{
		Label:  "Backend",
		Status: StatusPass,
		Detail: backend,
	})

	switch backend {
	case config.BackendJSONFile, config.BackendSQLite:
		item, ok := c.checkDataDir()
		result.Items = append(result.Items, item)
		if !ok {
			return result
		}
	case config.BackendMemory:
		result.Items = append(result.Items, CheckItem{
			Label:  "Persistence",
			Status: StatusWarn,
			Detail: "history is lost when the process exits",
		})
		return result
	}

	result.Items = append(result.Items, c.checkRead(ctx))
	return result
}

func (c *StoreCheck) checkDataDir() (CheckItem, bool) {
	dir := c.config.DataDir
	item := CheckItem{Label: "Data directory", Detail: dir}

	info, err := os.Stat(dir)
	switch {
	case err == nil && info.IsDir():
		item.Status = StatusPass
		return item, true
	case err == nil:
		item.Status = StatusFail
		item.Detail = dir + " is not a directory"
		return item, false
	case !os.IsNotExist(err):
		item.Status = StatusFail
		item.Detail = err.Error()
		return item, false
	}

	if !c.fix {
		item.Status = StatusWarn
		item.Detail = dir + " does not exist"
		item.Fixable = true
		return item, false
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		item.Status = StatusFail
		item.Detail = fmt.Sprintf("create %s: %v", dir, err)
		return item, false
	}

	item.Status = StatusPass
	item.Detail = "created " + dir
	return item, true
}

func (c *StoreCheck) checkRead(ctx context.Context) CheckItem {
	item := CheckItem{Label: "Read history"}

	timeout := c.config.Storage.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opened, err := store.Open(ctx, c.config, zerolog.Nop())
	if err != nil {
		item.Status = StatusFail
		item.Detail = err.Error()
		return item
	}
	defer func() { _ = opened.Close() }()

	if _, err := chat.Latest(ctx, opened, readUser, 1); err != nil {
		item.Status = StatusFail
		item.Detail = err.Error()
		return item
	}

	item.Status = StatusPass
	return item
}
