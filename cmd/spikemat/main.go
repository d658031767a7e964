package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/spikemat/spikemat/pkg/core"
	"github.com/spikemat/spikemat/pkg/engine"
	"github.com/spikemat/spikemat/pkg/persistence"
)

// cliOverrides holds flag values applied on top of the loaded config.
// Only flags the user explicitly set are applied.
type cliOverrides struct {
	ConfigPath  *string
	Backend     *string
	Workers     *int
	SnapshotDir *string
	Compress    *bool
}

func main() {
	var overrides cliOverrides

	rootCmd := &cobra.Command{
		Use:          "spikemat",
		Short:        "spikemat - matrix-backed spiking neural network simulator",
		Long:         "Builds leaky integrate-and-fire networks from YAML descriptions and simulates them tick by tick, with optional STDP learning, multi-tick synaptic delays and interchangeable execution backends.",
		SilenceUsage: true,
	}

	// CLI flags - highest priority in the config hierarchy.
	pf := rootCmd.PersistentFlags()
	overrides.ConfigPath = pf.StringP("config", "f", "", "Path to YAML config file (overrides SPIKEMAT_CONFIG env)")
	overrides.Backend = pf.String("backend", "", "Backend: auto | cpu | fused | parallel")
	overrides.Workers = pf.Int("workers", 0, "Worker count for the parallel backend")
	overrides.SnapshotDir = pf.String("snapshot-dir", "", "Directory for .smat snapshot files")
	overrides.Compress = pf.Bool("compress", false, "Enable gzip compression of snapshots")

	rootCmd.AddCommand(
		newRunCmd(&overrides),
		newCapsCmd(&overrides),
		newSnapshotCmd(&overrides),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig resolves the config hierarchy and applies explicitly-set
// CLI flags on top.
func loadConfig(flags *pflag.FlagSet, overrides *cliOverrides) (*core.Config, error) {
	configPath := *overrides.ConfigPath
	if configPath == "" {
		configPath = os.Getenv("SPIKEMAT_CONFIG")
	}

	cfg, err := core.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if flags.Changed("backend") {
		cfg.Engine.Backend = *overrides.Backend
	}
	if flags.Changed("workers") {
		cfg.Engine.Workers = *overrides.Workers
	}
	if flags.Changed("snapshot-dir") {
		cfg.Snapshot.Dir = *overrides.SnapshotDir
	}
	if flags.Changed("compress") {
		cfg.Snapshot.Compress = *overrides.Compress
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newRunCmd(overrides *cliOverrides) *cobra.Command {
	var (
		ticks     int
		saveID    string
		loadID    string
		showTrain bool
	)

	cmd := &cobra.Command{
		Use:   "run [network.yaml]",
		Short: "Simulate a network description",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Flags(), overrides)
			if err != nil {
				return err
			}

			var m *core.Model
			switch {
			case loadID != "":
				store, err := persistence.NewStore(cfg.Snapshot.Dir, cfg.Snapshot.Compress)
				if err != nil {
					return err
				}
				if m, err = store.Load(loadID); err != nil {
					return err
				}
				log.Printf("Loaded snapshot %s: %d neurons, %d synapses", loadID, m.NumNeurons(), m.NumSynapses())
			case len(args) == 1:
				if m, err = LoadNetworkFile(args[0]); err != nil {
					return err
				}
			default:
				return fmt.Errorf("either a network file or --load is required")
			}

			d := engine.NewDispatcher(engine.Detect())
			d.Configure(cfg.Engine)

			backend := cfg.Engine.Backend
			if err := d.Simulate(m, ticks, backend, nil); err != nil {
				return err
			}
			log.Printf("Simulated %d ticks on the %s backend", ticks, m.LastUsedBackend)

			out := cmd.OutOrStdout()
			PrintModelInfo(out, m)
			if showTrain {
				PrintSpikeTrain(out, m)
			}
			PrintSpikeTotals(out, m)

			if saveID != "" || cmd.Flags().Changed("save") {
				store, err := persistence.NewStore(cfg.Snapshot.Dir, cfg.Snapshot.Compress)
				if err != nil {
					return err
				}
				id, err := store.Save(saveID, m)
				if err != nil {
					return err
				}
				log.Printf("Saved snapshot %s", id)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&ticks, "ticks", "t", 10, "Number of ticks to simulate")
	cmd.Flags().StringVar(&saveID, "save", "", "Save the final model as a snapshot (--save=\"\" generates an id)")
	cmd.Flags().StringVar(&loadID, "load", "", "Resume from a stored snapshot instead of a network file")
	cmd.Flags().BoolVar(&showTrain, "train", true, "Print the spike train")
	return cmd
}

func newCapsCmd(overrides *cliOverrides) *cobra.Command {
	return &cobra.Command{
		Use:   "caps",
		Short: "Show detected host capabilities and backend availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Flags(), overrides)
			if err != nil {
				return err
			}
			d := engine.NewDispatcher(engine.Detect())
			d.Configure(cfg.Engine)
			PrintCapabilities(cmd.OutOrStdout(), d)
			return nil
		},
	}
}

func newSnapshotCmd(overrides *cliOverrides) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage stored model snapshots",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored snapshots",
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := loadConfig(c.Flags(), overrides)
			if err != nil {
				return err
			}
			store, err := persistence.NewStore(cfg.Snapshot.Dir, cfg.Snapshot.Compress)
			if err != nil {
				return err
			}
			ids, err := store.List()
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(c.OutOrStdout(), id)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := loadConfig(c.Flags(), overrides)
			if err != nil {
				return err
			}
			store, err := persistence.NewStore(cfg.Snapshot.Dir, cfg.Snapshot.Compress)
			if err != nil {
				return err
			}
			return store.Delete(args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Describe a stored snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := loadConfig(c.Flags(), overrides)
			if err != nil {
				return err
			}
			store, err := persistence.NewStore(cfg.Snapshot.Dir, cfg.Snapshot.Compress)
			if err != nil {
				return err
			}
			snap, err := store.LoadSnapshot(args[0])
			if err != nil {
				return err
			}
			PrintSnapshotInfo(c.OutOrStdout(), snap)
			return nil
		},
	})

	return cmd
}
