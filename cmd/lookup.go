package cmd

import (
	"fmt"
	"io"
	"net/netip"
	"os"

	"github.com/spf13/cobra"

	"firestige.xyz/vrouter/internal/core"
	"firestige.xyz/vrouter/internal/route"
)

var routesFile string

var lookupCmd = &cobra.Command{
	Use:   "lookup <ipv4>",
	Short: "Print the route a destination would take",
	Long: `Run a longest-prefix-match lookup against a route table file.

Examples:
  vrouter lookup -r rtable.txt 10.0.1.7
  vrouter lookup -r routes.yaml 8.8.8.8`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLookup(os.Stdout, routesFile, args[0])
	},
}

func init() {
	lookupCmd.Flags().StringVarP(&routesFile, "routes", "r", "rtable.txt",
		"route table file (text, or YAML by .yaml/.yml extension)")
}

func runLookup(w io.Writer, path, dst string) error {
	addr, err := netip.ParseAddr(dst)
	if err != nil {
		return fmt.Errorf("invalid destination %q: %w", dst, err)
	}
	ip, ok := core.AddrToUint32(addr)
	if !ok {
		return fmt.Errorf("destination %s is not IPv4", dst)
	}

	entries, err := route.Load(path)
	if err != nil {
		return err
	}
	table, err := route.Build(entries)
	if err != nil {
		return err
	}

	r, ok := table.Lookup(ip)
	if !ok {
		fmt.Fprintf(w, "%s: no route (destination unreachable)\n", dst)
		return nil
	}
	fmt.Fprintf(w, "%s: %s\n", dst, r)
	return nil
}
