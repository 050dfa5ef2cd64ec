package main

import (
	"github.com/MarcoPoloResearchLab/docrev/internal/config"
	"github.com/MarcoPoloResearchLab/docrev/internal/logging"
)

// withRuntime opens storage for a one-shot admin command. Admin commands run
// without realtime subscribers or metrics.
func (a *application) withRuntime(run func(*runtime) error) error {
	appConfig, err := config.Load(a.viper)
	if err != nil {
		return err
	}
	logger, err := logging.NewCLILogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	rt, err := openRuntime(appConfig, logger, nil, nil)
	if err != nil {
		return err
	}
	defer rt.Close()
	return run(rt)
}
