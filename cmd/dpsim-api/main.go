package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sogno-platform/dpsim-api/internal/common"
	"github.com/sogno-platform/dpsim-api/internal/common/health"
	"github.com/sogno-platform/dpsim-api/internal/dpsimapi"
	"github.com/sogno-platform/dpsim-api/internal/dpsimapi/configuration"
)

const CustomConfigLocation string = "config"

func init() {
	pflag.StringSlice(
		CustomConfigLocation,
		[]string{},
		"Fully qualified path to application configuration file (for multiple config files repeat this arg or separate paths with commas)",
	)
	pflag.Parse()
}

func main() {
	common.ConfigureLogging()
	common.BindCommandlineArguments()

	var config configuration.ApiConfig
	userSpecifiedConfigs := viper.GetStringSlice(CustomConfigLocation)
	common.LoadConfig(&config, "./config/dpsim-api", userSpecifiedConfigs)

	log.Info("Starting...")
	log.Infof("Config %+v", config)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopSignal := make(chan os.Signal, 1)
	signal.Notify(stopSignal, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-stopSignal
		log.Infof("Received %s, shutting down", sig)
		cancel()
	}()

	healthChecks := health.NewMultiChecker()
	shutdownMetricServer := common.ServeMetrics(config.MetricsPort, healthChecks)
	defer shutdownMetricServer()

	if err := dpsimapi.Serve(ctx, &config, healthChecks); err != nil {
		log.WithError(err).Error("DPsim api failed")
		shutdownMetricServer()
		os.Exit(1)
	}
}
