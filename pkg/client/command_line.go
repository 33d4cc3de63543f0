package client

import (
	"fmt"
	"os"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func AddApiConnectionCommandlineArgs(rootCmd *cobra.Command) {
	rootCmd.PersistentFlags().String("url", "http://localhost:8000", "specify dpsim api url")
	rootCmd.PersistentFlags().Duration("timeout", 0, "per request timeout, e.g. 30s (0 means no timeout)")
	rootCmd.PersistentFlags().Int("retryMax", 2, "number of retries for failed read requests")
	_ = viper.BindPFlag("url", rootCmd.PersistentFlags().Lookup("url"))
	_ = viper.BindPFlag("timeout", rootCmd.PersistentFlags().Lookup("timeout"))
	_ = viper.BindPFlag("retryMax", rootCmd.PersistentFlags().Lookup("retryMax"))
}

// LoadCommandlineArgsFromConfigFile reads defaults from cfgFile, or from ~/.dpsimctl.yaml
// if cfgFile is empty. A missing default file is not an error.
func LoadCommandlineArgsFromConfigFile(cfgFile string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			return fmt.Errorf("error getting user home directory: %s", err)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".dpsimctl")
	}

	viper.SetEnvPrefix("DPSIMCTL")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		switch err.(type) {
		case viper.ConfigFileNotFoundError:
		case *os.PathError:
			if cfgFile != "" {
				return fmt.Errorf("error reading config file %s: %s", cfgFile, err)
			}
		default:
			return fmt.Errorf("error reading config file %s: %s", viper.ConfigFileUsed(), err)
		}
	}
	return nil
}

func ExtractCommandlineApiConnectionDetails() (*ApiConnectionDetails, error) {
	apiConnectionDetails := &ApiConnectionDetails{}
	if err := viper.Unmarshal(apiConnectionDetails); err != nil {
		return nil, err
	}
	return apiConnectionDetails, nil
}
