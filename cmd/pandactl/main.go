package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xflash-panda/panel-client-go/internal/beat"
	"github.com/xflash-panda/panel-client-go/pkg/panel"
)

// version is overridden by goreleaser via -ldflags "-X main.version=...".
var version = "dev"

var (
	cfgFile  string
	apiHost  string
	apiToken string
	timeout  time.Duration
	debug    bool
	typeName string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pandactl",
	Short: "xflash-panda panel client CLI",
	Long: `pandactl talks to an xflash-panda proxy management panel.

It registers nodes, fetches their configuration and user lists, reports
traffic, and sends heartbeats. Connection settings come from flags, the
config file (default ~/.pandactl/config.yaml), or PANDA_* environment
variables (PANDA_API_HOST, PANDA_TOKEN).`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(home + "/.pandactl")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.SetEnvPrefix("panda")
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if apiHost == "" {
			apiHost = viper.GetString("api_host")
		}
		if apiToken == "" {
			apiToken = viper.GetString("token")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.pandactl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&apiHost, "host", "", "panel base URL (or PANDA_API_HOST)")
	rootCmd.PersistentFlags().StringVar(&apiToken, "token", "", "panel API token (or PANDA_TOKEN)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", panel.DefaultTimeout, "request timeout")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log every request (method, path, status)")
	rootCmd.PersistentFlags().StringVar(&typeName, "type", "trojan", "node type (trojan, shadowsocks, hysteria, hysteria2, vmess, anytls, tuic)")

	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(unregisterCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(heartbeatCmd)
	rootCmd.AddCommand(versionCmd)
}

// buildClient constructs the SDK client from global flags.
func buildClient() (*panel.Client, error) {
	if apiHost == "" {
		return nil, fmt.Errorf("panel host is required (--host or PANDA_API_HOST)")
	}
	if apiToken == "" {
		return nil, fmt.Errorf("panel token is required (--token or PANDA_TOKEN)")
	}

	opts := []panel.Option{panel.WithTimeout(timeout)}
	if debug {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return nil, err
		}
		opts = append(opts, panel.WithDebug(), panel.WithLogger(logger))
	}
	return panel.New(apiHost, apiToken, opts...)
}

func nodeType() (panel.NodeType, error) {
	return panel.ParseNodeType(typeName)
}

// ── register ────────────────────────────────────────────────────────────

var (
	regNodeID   int64
	regHostname string
	regPort     uint16
	regNodeIP   string
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a node with the panel",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := buildClient()
		if err != nil {
			return err
		}
		nt, err := nodeType()
		if err != nil {
			return err
		}

		id, err := c.Register(context.Background(), nt, regNodeID, panel.RegisterRequest{
			Hostname: regHostname,
			Port:     regPort,
			NodeIP:   regNodeIP,
		})
		if err != nil {
			return fmt.Errorf("register node: %w", err)
		}

		fmt.Printf("✓ Node registered\n\n")
		fmt.Printf("  Type:        %s\n", nt)
		fmt.Printf("  Register ID: %s\n\n", id)
		fmt.Println("Persist the register id — every other call needs it.")
		return nil
	},
}

func init() {
	registerCmd.Flags().Int64Var(&regNodeID, "node-id", 0, "panel-side node id")
	registerCmd.Flags().StringVar(&regHostname, "hostname", "", "node hostname")
	registerCmd.Flags().Uint16Var(&regPort, "port", 0, "node listen port")
	registerCmd.Flags().StringVar(&regNodeIP, "node-ip", "", "node IP address (optional)")

	_ = registerCmd.MarkFlagRequired("node-id")
	_ = registerCmd.MarkFlagRequired("hostname")
	_ = registerCmd.MarkFlagRequired("port")
}

// ── verify / unregister ─────────────────────────────────────────────────

var verifyCmd = &cobra.Command{
	Use:   "verify <register-id>",
	Short: "Check whether a register id is still recognized by the panel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := buildClient()
		if err != nil {
			return err
		}
		nt, err := nodeType()
		if err != nil {
			return err
		}

		valid, err := c.Verify(context.Background(), nt, args[0])
		if err != nil {
			return fmt.Errorf("verify: %w", err)
		}
		if !valid {
			return fmt.Errorf("register id %s is not recognized; re-register the node", args[0])
		}
		fmt.Println("✓ Registration valid")
		return nil
	},
}

var unregisterCmd = &cobra.Command{
	Use:   "unregister <register-id>",
	Short: "Remove a node registration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := buildClient()
		if err != nil {
			return err
		}
		nt, err := nodeType()
		if err != nil {
			return err
		}

		err = c.Unregister(context.Background(), nt, args[0])
		if panel.IsServerError(err) {
			// Already gone server-side; for cleanup that is success.
			fmt.Printf("Panel reported: %v\n", err)
			fmt.Println("✓ Node already unregistered")
			return nil
		}
		if err != nil {
			return fmt.Errorf("unregister: %w", err)
		}
		fmt.Println("✓ Node unregistered")
		return nil
	},
}

// ── config ──────────────────────────────────────────────────────────────

var (
	cfgNodeID int64
	cfgRaw    bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Fetch a node's protocol configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := buildClient()
		if err != nil {
			return err
		}
		nt, err := nodeType()
		if err != nil {
			return err
		}

		if cfgRaw {
			body, err := c.RawConfig(context.Background(), nt, cfgNodeID)
			if err != nil {
				return fmt.Errorf("fetch raw config: %w", err)
			}
			os.Stdout.Write(body)
			fmt.Println()
			return nil
		}

		cfg, err := c.Config(context.Background(), nt, cfgNodeID)
		if err != nil {
			return fmt.Errorf("fetch config: %w", err)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		switch cfg.Type {
		case panel.Trojan:
			return enc.Encode(cfg.Trojan)
		case panel.Shadowsocks:
			return enc.Encode(cfg.Shadowsocks)
		case panel.Hysteria:
			return enc.Encode(cfg.Hysteria)
		case panel.Hysteria2:
			return enc.Encode(cfg.Hysteria2)
		case panel.VMess:
			return enc.Encode(cfg.VMess)
		case panel.AnyTLS:
			return enc.Encode(cfg.AnyTLS)
		case panel.Tuic:
			return enc.Encode(cfg.Tuic)
		}
		return fmt.Errorf("unexpected config type %s", cfg.Type)
	},
}

func init() {
	configCmd.Flags().Int64Var(&cfgNodeID, "node-id", 0, "panel-side node id")
	configCmd.Flags().BoolVar(&cfgRaw, "raw", false, "print the raw response body")
	_ = configCmd.MarkFlagRequired("node-id")
}

// ── users ───────────────────────────────────────────────────────────────

var usersFormat string

var usersCmd = &cobra.Command{
	Use:   "users <register-id>",
	Short: "Fetch a node's user list",
	Long: `users fetches the node's user list with conditional caching.

When the panel answers 304 Not Modified, pandactl reports that nothing
changed since the previous fetch in this process.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := buildClient()
		if err != nil {
			return err
		}
		nt, err := nodeType()
		if err != nil {
			return err
		}

		users, err := c.Users(context.Background(), nt, args[0])
		if panel.IsNotModified(err) {
			fmt.Println("Not modified — user list unchanged.")
			return nil
		}
		if err != nil {
			return fmt.Errorf("fetch users: %w", err)
		}

		if usersFormat == "json" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(users)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tUUID")
		for _, u := range users {
			fmt.Fprintf(w, "%d\t%s\n", u.ID, u.UUID)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Printf("\n%d user(s)\n", len(users))
		return nil
	},
}

func init() {
	usersCmd.Flags().StringVar(&usersFormat, "format", "text", "output format: text or json")
}

// ── submit ──────────────────────────────────────────────────────────────

var submitFile string

var submitCmd = &cobra.Command{
	Use:   "submit <register-id>",
	Short: "Submit a batch of per-user traffic deltas",
	Long: `submit reads a JSON array of traffic records and reports it:

  [{"user_id": 1, "u": 1024, "d": 4096, "n": 2}]`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := buildClient()
		if err != nil {
			return err
		}
		nt, err := nodeType()
		if err != nil {
			return err
		}

		raw, err := os.ReadFile(submitFile)
		if err != nil {
			return fmt.Errorf("read traffic file: %w", err)
		}
		var data []panel.UserTraffic
		if err := json.Unmarshal(raw, &data); err != nil {
			return fmt.Errorf("decode traffic file: %w", err)
		}

		if err := c.Submit(context.Background(), nt, args[0], data); err != nil {
			return fmt.Errorf("submit traffic: %w", err)
		}
		fmt.Printf("✓ Submitted %d record(s)\n", len(data))
		return nil
	},
}

func init() {
	submitCmd.Flags().StringVar(&submitFile, "file", "", "JSON file with traffic records")
	_ = submitCmd.MarkFlagRequired("file")
}

// ── heartbeat ───────────────────────────────────────────────────────────

var (
	beatWatch    bool
	beatInterval time.Duration
	beatNodeIP   string
)

var heartbeatCmd = &cobra.Command{
	Use:   "heartbeat <register-id>",
	Short: "Send a heartbeat, or keep a registration alive with --watch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := buildClient()
		if err != nil {
			return err
		}
		nt, err := nodeType()
		if err != nil {
			return err
		}
		registerID := args[0]

		if !beatWatch {
			ctx := context.Background()
			if beatNodeIP != "" {
				err = c.HeartbeatWithIP(ctx, nt, registerID, beatNodeIP)
			} else {
				err = c.Heartbeat(ctx, nt, registerID)
			}
			if err != nil {
				return fmt.Errorf("heartbeat: %w", err)
			}
			fmt.Println("✓ Heartbeat acknowledged")
			return nil
		}

		logger := zap.NewNop()
		if debug {
			if logger, err = zap.NewDevelopment(); err != nil {
				return err
			}
		}

		runner := beat.New(c, []beat.Target{{NodeType: nt, RegisterID: registerID}}, beat.Config{
			Interval:    beatInterval,
			BeatTimeout: timeout,
		}, logger)
		runner.SetResultFunc(func(target beat.Target, err error) {
			stamp := time.Now().Format(time.RFC3339)
			if err != nil {
				fmt.Printf("%s heartbeat failed: %v\n", stamp, err)
				return
			}
			fmt.Printf("%s heartbeat ok\n", stamp)
		})

		fmt.Printf("Heartbeating %s every %s (Ctrl-C to stop)\n", registerID, beatInterval)
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		runner.Start(quit)
		return nil
	},
}

func init() {
	heartbeatCmd.Flags().BoolVar(&beatWatch, "watch", false, "keep heartbeating until interrupted")
	heartbeatCmd.Flags().DurationVar(&beatInterval, "interval", 30*time.Second, "heartbeat interval with --watch")
	heartbeatCmd.Flags().StringVar(&beatNodeIP, "node-ip", "", "report this node IP with the heartbeat")
}

// ── version ─────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the pandactl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pandactl %s\n", version)
	},
}
