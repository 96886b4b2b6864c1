package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var version = "dev"

type options struct {
	v *viper.Viper
}

func (o *options) server() string { return o.v.GetString("server") }
func (o *options) home() string { return o.v.GetString("home") }
func (o *options) verbose() bool { return o.v.GetBool("verbose") }
func (o *options) redisAddr() string { return o.v.GetString("cache_redis") }

// NewRootCmd builds the command tree. Flags may also come from GENIE_*
// environment variables.
func NewRootCmd() *cobra.Command {
	opts := &options{v: viper.New()}

	root := &cobra.Command{
		Use:   "genie",
		Short: "Chat with Project Genie from the terminal",
		Long: `genie lists, searches, creates and deletes your chat threads and talks to
the assistant. The thread list is cached locally and shown from the cache
when the server cannot be reached.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultHome := ".genie"
	if h, err := os.UserHomeDir(); err == nil {
		defaultHome = filepath.Join(h, ".genie")
	}

	pf := root.PersistentFlags()
	pf.String("server", "http://localhost:8080", "API base URL")
	pf.String("home", defaultHome, "directory for credentials and the thread cache")
	pf.String("cache-redis", "", "keep the thread cache in Redis at this address instead of on disk")
	pf.BoolP("verbose", "v", false, "verbose logging")

	_ = opts.v.BindPFlag("server", pf.Lookup("server"))
	_ = opts.v.BindPFlag("home", pf.Lookup("home"))
	_ = opts.v.BindPFlag("cache_redis", pf.Lookup("cache-redis"))
	_ = opts.v.BindPFlag("verbose", pf.Lookup("verbose"))
	opts.v.SetEnvPrefix("GENIE")
	opts.v.AutomaticEnv()

	root.AddCommand(
		newRegisterCmd(opts),
		newLoginCmd(opts),
		newLogoutCmd(opts),
		newListCmd(opts),
		newNewCmd(opts),
		newRmCmd(opts),
		newSearchCmd(opts),
		newShowCmd(opts),
		newSendCmd(opts),
	)
	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
