package backend

import (
	"fmt"

	"spendboard/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	c := Config{
		Data:     DataBackend(appConfig.DataBackend),
		Identity: IdentityBackend(appConfig.IdentityBackend),

		DataDirectory:    appConfig.DataDir,
		ExpensesSheet:    appConfig.ExpensesSheetName,
		InvestmentsSheet: appConfig.InvestmentsSheetName,

		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,

		SQLiteDBPath: appConfig.SQLiteDBPath,
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Data.IsValid() {
		return fmt.Errorf("invalid data backend: %q", c.Data)
	}
	if !c.Identity.IsValid() {
		return fmt.Errorf("invalid identity backend: %q", c.Identity)
	}

	if c.Data == SheetsData {
		if c.GoogleSpreadsheetID == "" {
			return fmt.Errorf("spreadsheet id is required for the sheets backend")
		}
		if c.GoogleServiceAccountFile == "" && c.GoogleServiceAccountJSON == "" {
			return fmt.Errorf("service account credentials are required for the sheets backend")
		}
	}
	if c.Identity == SQLiteIdentity && c.SQLiteDBPath == "" {
		return fmt.Errorf("SQLite database path is required for the sqlite identity store")
	}
	return nil
}
