package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/smoker/smoker/internal/workspace"
	"github.com/smoker/smoker/pkg/config"
)

func (c *CLI) newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a smoker configuration",
		Long: `Create smoker.config.json in the project root. Monorepos declaring
workspaces in package.json are configured to test every workspace.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runInit(force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite existing configuration")

	return cmd
}

func (c *CLI) runInit(force bool) error {
	m := config.NewManager()
	configPath := c.config.ConfigFile
	if configPath == "" {
		configPath = filepath.Join(c.config.Cwd, config.FileNames[0])
	}

	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration already exists at %s. Use --force to overwrite", configPath)
	}

	root, err := workspace.ReadWorkspace(c.config.Cwd)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("no %s in %s", workspace.ManifestName, c.config.Cwd)
		}
		return err
	}

	cfg := m.GetDefaultConfig()
	if _, ok := root.Scripts()["smoke"]; ok {
		cfg.Scripts = []string{"smoke"}
	}
	if patterns := workspace.Patterns(root.PkgJSON); len(patterns) > 0 {
		cfg.All = true
		c.printInfo(fmt.Sprintf("Detected %d workspace pattern(s), testing all workspaces", len(patterns)))
	}

	if err := m.SaveConfig(configPath, cfg); err != nil {
		return err
	}
	c.printSuccess(fmt.Sprintf("Created configuration at %s", configPath))
	return nil
}
