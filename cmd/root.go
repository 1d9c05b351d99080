package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/6000yuval/shopify-seo/internal/utils"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "shopseo",
	Short: "A bulk SEO editor for Shopify product catalogs.",
	Long: `shopseo loads your whole product catalog into an editable workspace,
rewrites titles, descriptions, slugs and SEO metadata with AI, and syncs the
edited products back to your store one by one.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.shopseo.yaml)")

	// Global flags
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".shopseo")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create it with defaults.
			home, _ := homedir.Dir()
			configPath := home + "/.shopseo.yaml"
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				fmt.Printf("Error creating config file: %s", err)
			}
		}
	}

	// Set default empty values for all keys
	viper.SetDefault("shopify.domain", "")
	viper.SetDefault("shopify.token", "")
	viper.SetDefault("ai.provider", "openai")
	viper.SetDefault("ai.api_key", "")
	viper.SetDefault("ai.model", "")
	viper.SetDefault("ai.endpoint", "")

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	utils.SetLogLevel(levelString)
}
