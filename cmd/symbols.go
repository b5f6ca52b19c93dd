package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/spbuild/internal/metadata"
	"github.com/Norgate-AV/spbuild/internal/moddb"
	"github.com/Norgate-AV/spbuild/internal/pipeline"
)

var symbolsCmd = &cobra.Command{
	Use:          "symbols <file.meta | file.spdb>",
	Short:        "List the bindable symbols of a module",
	RunE:         runSymbols,
	SilenceUsage: true,
	Args:         cobra.ExactArgs(1),
}

func init() {
	symbolsCmd.Flags().String("kind", "", "Only list symbols of this kind (function, property)")
	symbolsCmd.Flags().Bool("mangled", false, "Show mangled names")
}

func runSymbols(cmd *cobra.Command, args []string) error {
	table, err := readTable(args[0])
	if err != nil {
		return err
	}

	entries := table.Entries
	if kind, _ := cmd.Flags().GetString("kind"); kind != "" {
		k, err := parseKind(kind)
		if err != nil {
			return err
		}

		entries = table.Filter(k)
	}

	mangled, _ := cmd.Flags().GetBool("mangled")

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("%s (%s)", table.Module, table.Backend)))

	for _, e := range entries {
		fmt.Fprintf(out, "%-8s %s  %s\n", e.Kind, e.Signature, mutedStyle.Render(e.Unit))
		if mangled {
			fmt.Fprintf(out, "         %s\n", mutedStyle.Render(e.Mangled))
		}
	}

	return nil
}

// readTable reads a metadata sidecar or the metadata inside a module database file
func readTable(path string) (*metadata.Table, error) {
	if filepath.Ext(path) != pipeline.EnvelopeExt {
		return metadata.ReadFile(path)
	}

	env, err := moddb.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return metadata.Decode(env.Metadata)
}

func parseKind(kind string) (metadata.Kind, error) {
	switch strings.ToLower(kind) {
	case "function":
		return metadata.KindFunction, nil
	case "property":
		return metadata.KindProperty, nil
	}

	return 0, fmt.Errorf("invalid kind: %s", kind)
}
