package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"firestige.xyz/vrouter/internal/config"
	"firestige.xyz/vrouter/internal/route"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file and its route table",
	Long: `Validate the configuration file and the route table it points to
without opening any interface.

Examples:
  vrouter validate -c /etc/vrouter/config.yml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(os.Stdout, configFile)
	},
}

func runValidate(w io.Writer, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(w, "INVALID: %v\n", err)
		return err
	}

	entries, err := route.Load(cfg.Routes)
	if err == nil {
		_, err = route.Build(entries)
	}
	if err != nil {
		fmt.Fprintf(w, "INVALID: %v\n", err)
		return err
	}

	for _, r := range entries {
		if r.Interface >= len(cfg.Interfaces) {
			err := fmt.Errorf("route %s uses interface %d, only %d configured", r, r.Interface, len(cfg.Interfaces))
			fmt.Fprintf(w, "INVALID: %v\n", err)
			return err
		}
	}

	fmt.Fprintf(w, "VALID: %d interface(s), %d route(s), link %s\n",
		len(cfg.Interfaces), len(entries), cfg.Link.Type)
	return nil
}
