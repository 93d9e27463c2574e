package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/wingmanhq/wingman/internal/config"
	"github.com/wingmanhq/wingman/internal/manager"
	"github.com/wingmanhq/wingman/internal/profile"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "wingman",
	Short: "wingman - autonomous networking agent",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the agent (loop + channels + scheduler)",
	RunE:  runRun,
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize config and build your profile",
	RunE:  runOnboard,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show wingman status",
	RunE:  runStatus,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("wingman", version)
	},
}

var (
	modeFlag           string
	nonInteractiveFlag bool
)

func init() {
	runCmd.Flags().StringVar(&modeFlag, "mode", "", "run mode: dry_run, replay, canary or live")
	onboardCmd.Flags().BoolVar(&nonInteractiveFlag, "defaults", false, "write config and a skeleton profile without prompting")
	rootCmd.AddCommand(runCmd, onboardCmd, statusCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if modeFlag != "" {
		mode, err := config.ParseMode(modeFlag)
		if err != nil {
			return err
		}
		cfg.Agent.Mode = string(mode)
	}

	if cfg.Keys.Anthropic == "" {
		return fmt.Errorf("Anthropic API key not set. Run 'wingman onboard' or set WINGMAN_API_KEY / ANTHROPIC_API_KEY")
	}

	m, err := manager.New(cfg)
	if err != nil {
		return fmt.Errorf("create manager: %w", err)
	}

	return m.Run(context.Background())
}

func runOnboard(cmd *cobra.Command, args []string) error {
	cfgDir := config.ConfigDir()
	cfgPath := config.ConfigPath()

	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		cfg := config.DefaultConfig()
		data, _ := json.MarshalIndent(cfg, "", "  ")
		if err := os.WriteFile(cfgPath, data, 0644); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Printf("Created config: %s\n", cfgPath)
	} else {
		fmt.Printf("Config already exists: %s\n", cfgPath)
	}

	profilePath := config.ProfilePath()
	if _, err := os.Stat(profilePath); err == nil {
		fmt.Printf("Profile already exists: %s\n", profilePath)
	} else {
		p, err := buildProfile(os.Stdin, os.Stdout, nonInteractiveFlag)
		if err != nil {
			return err
		}
		if err := profile.Save(profilePath, p); err != nil {
			return fmt.Errorf("save profile: %w", err)
		}
		fmt.Printf("Created profile: %s\n", profilePath)
	}

	fmt.Println("\nNext steps:")
	fmt.Printf("  1. Edit %s to set your API keys\n", cfgPath)
	fmt.Println("  2. Run 'wingman run --mode dry_run' to watch a cycle without side effects")
	fmt.Println("  3. Graduate to canary, then live")

	return nil
}

// buildProfile collects the onboarding answers. With defaults set it
// writes a skeleton the user edits by hand.
func buildProfile(in io.Reader, out io.Writer, useDefaults bool) (*profile.Profile, error) {
	if useDefaults {
		return &profile.Profile{
			Name:      "Your Name",
			Interests: []string{"AI"},
		}, nil
	}

	scanner := bufio.NewScanner(in)
	ask := func(prompt string) string {
		fmt.Fprintf(out, "%s: ", prompt)
		if !scanner.Scan() {
			return ""
		}
		return strings.TrimSpace(scanner.Text())
	}
	askList := func(prompt string) []string {
		raw := ask(prompt + " (comma separated)")
		if raw == "" {
			return nil
		}
		parts := strings.Split(raw, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				out = append(out, s)
			}
		}
		return out
	}

	p := &profile.Profile{}
	p.Name = ask("Name")
	if p.Name == "" {
		return nil, fmt.Errorf("a name is required")
	}
	p.Email = ask("Email")
	p.Role = ask("Role")
	p.Company = ask("Company")
	p.Product = ask("What are you building")
	p.Interests = askList("Interests")
	p.NetworkingGoals = askList("Networking goals")
	p.TargetRoles = askList("Target roles")
	p.TargetCompanies = askList("Target companies")
	p.PreferredCategories = askList("Preferred event types")
	if raw := ask("Max events per week (default 4)"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			p.MaxEventsPerWeek = n
		}
	}
	p.MessageTone = ask("Message tone (default casual)")

	return p, nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Config: error (%v)\n", err)
		return nil
	}

	fmt.Printf("Config: %s\n", config.ConfigPath())
	fmt.Printf("Mode: %s\n", cfg.Mode())
	fmt.Printf("Model: %s\n", cfg.Agent.Model)
	fmt.Printf("Anthropic key: %s\n", maskKey(cfg.Keys.Anthropic))
	fmt.Printf("Tavily key: %s\n", maskKey(cfg.Keys.Tavily))
	fmt.Printf("Yutori key: %s\n", maskKey(cfg.Keys.Yutori))
	fmt.Printf("Reka key: %s\n", maskKey(cfg.Keys.Reka))
	fmt.Printf("Neo4j: %s\n", orUnset(cfg.Graph.URI))
	fmt.Printf("Calendar: %s\n", orUnset(cfg.Calendar.CredentialsFile))
	fmt.Printf("Telegram: enabled=%v\n", cfg.Channels.Telegram.Enabled)
	fmt.Printf("Limits: %d applies/day, %d messages/day\n",
		cfg.Limits.MaxAppliesPerDay, cfg.Limits.MaxMessagesPerDay)

	if p, err := profile.Load(config.ProfilePath()); err != nil {
		fmt.Println("Profile: not found (run 'wingman onboard')")
	} else {
		fmt.Printf("Profile: %s (%d interests)\n", p.Name, len(p.Interests))
	}

	return nil
}

func maskKey(key string) string {
	if key == "" {
		return "not set"
	}
	if len(key) > 8 {
		return key[:4] + "..." + key[len(key)-4:]
	}
	return "set"
}

func orUnset(v string) string {
	if v == "" {
		return "not set"
	}
	return v
}
