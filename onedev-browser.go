package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/kardianos/service"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/BingHanLin/vscode-oneDev-browser/pkg/banner"
	"github.com/BingHanLin/vscode-oneDev-browser/pkg/config"
	"github.com/BingHanLin/vscode-oneDev-browser/pkg/host"
	"github.com/BingHanLin/vscode-oneDev-browser/pkg/onedev"
	"github.com/BingHanLin/vscode-oneDev-browser/pkg/protocol"
	"github.com/BingHanLin/vscode-oneDev-browser/pkg/rpc"
	"github.com/BingHanLin/vscode-oneDev-browser/pkg/server"
	"github.com/BingHanLin/vscode-oneDev-browser/pkg/settings"
	"github.com/BingHanLin/vscode-oneDev-browser/pkg/tui"
	"github.com/BingHanLin/vscode-oneDev-browser/pkg/viewmodel"
)

var (
	local      bool
	watch      bool
	sortFlag   string
	filterFlag string
	searchFlag string
)

var rootCmd = &cobra.Command{
	Use:   "onedev-browser",
	Short: "Browse oneDev pull requests and issues",
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Usage()
	},
}

var uiCommand = &cobra.Command{
	Use:   "ui",
	Short: "Open the interactive browser",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.MustLoadFromDefault()
		client := newClient(cfg, quietLogger{})

		p := tea.NewProgram(tui.New(client, banner.DefaultTTL), tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			log.Fatal(err)
		}
	},
}

var listCommand = &cobra.Command{
	Use:       "list pulls|issues",
	Short:     "Print pull requests or issues as a table",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"pulls", "issues"},
	Run: func(cmd *cobra.Command, args []string) {
		var v viewmodel.View
		var err error
		if v.Sort, err = viewmodel.ParseSort(sortFlag); err != nil {
			log.Fatal(err)
		}
		if v.Filter, err = viewmodel.ParseFilter(filterFlag); err != nil {
			log.Fatal(err)
		}
		v.Search = searchFlag

		cfg := config.MustLoadFromDefault()
		client := newClient(cfg, service.ConsoleLogger)
		ctx := cmd.Context()

		creds := onedev.Credentials{}
		envs, err := client.Send(ctx, protocol.GetCredentials{})
		if err != nil {
			log.Fatal(err)
		}
		for _, env := range envs {
			if msg, ok := env.Message.(protocol.SetCredentials); ok {
				creds = msg.Credentials
			}
		}

		var in protocol.Intent = protocol.FetchPullRequests{Credentials: creds}
		if args[0] == "issues" {
			in = protocol.FetchIssues{Credentials: creds}
		}
		envs, err = client.Send(ctx, in)
		if err != nil {
			log.Fatal(err)
		}

		for _, env := range envs {
			switch msg := env.Message.(type) {
			case protocol.SetPullRequests:
				fmt.Println(tui.RenderPullRequests(viewmodel.Apply(msg.PullRequests, v)))
			case protocol.SetIssues:
				fmt.Println(tui.RenderIssues(viewmodel.Apply(msg.Issues, v)))
			case protocol.ShowErrorMessage:
				fmt.Fprintln(os.Stderr, msg.Message)
				os.Exit(1)
			}
		}
	},
}

var hostCommand = &cobra.Command{
	Use:   "host",
	Short: "Run or manage the onedev-browser host",
}

var hostRun = &cobra.Command{
	Use:   "run",
	Short: "Run the host in the foreground",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.MustLoadFromDefault()
		svc := server.Service(cfg)
		err := svc.Run()
		if err != nil {
			log.Fatal(err)
		}
	},
}

var hostStdio = &cobra.Command{
	Use:   "stdio",
	Short: "Serve the host protocol on stdin and stdout",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.MustLoadFromDefault()
		store := mustStore(cfg)
		ctrl := host.NewController(store, onedev.NewClient(cfg.Timeout()), service.ConsoleLogger)

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		stdio := rpc.NewStdio(os.Stdin, os.Stdout, ctrl, service.ConsoleLogger)
		if watch {
			go func() {
				err := store.Watch(ctx, func(onedev.Credentials) {
					stdio.Inject(ctx, protocol.GetCredentials{})
				})
				if err != nil {
					_ = service.ConsoleLogger.Warningf("not watching settings: %s", err)
				}
			}()
		}

		if err := stdio.Serve(ctx); err != nil {
			log.Fatal(err)
		}
	},
}

// hostControl runs a service control action against the installed host
func hostControl(use, short, action string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.MustLoadFromDefault()
			svc := server.Service(cfg)
			err := service.Control(svc, action)
			if err != nil {
				log.Fatal(err)
			}
		},
	}
}

var credentialsCommand = &cobra.Command{
	Use:   "credentials",
	Short: "Show or change the stored oneDev credentials",
}

var credentialsSet = &cobra.Command{
	Use:   "set",
	Short: "Prompt for oneDev credentials and store them",
	Run: func(cmd *cobra.Command, args []string) {
		store := mustStore(config.MustLoadFromDefault())
		in := bufio.NewReader(os.Stdin)

		url := prompt(in, "Enter your oneDev instance URL (https://your-onedev-instance.com): ")
		email := prompt(in, "Enter your oneDev account email (user@example.com): ")
		token := promptSecret(in, "Enter your oneDev API token: ")
		projectPath := prompt(in, "Enter your oneDev project path (blank to keep): ")

		if url == "" || email == "" || token == "" {
			fmt.Fprintln(os.Stderr, "Failed to save oneDev credentials. Please provide all required information.")
			os.Exit(1)
		}

		values := map[string]string{
			settings.KeyURL:   url,
			settings.KeyEmail: email,
			settings.KeyToken: token,
		}
		if projectPath != "" {
			values[settings.KeyProjectPath] = projectPath
		}
		for _, key := range settings.Keys {
			value, ok := values[key]
			if !ok {
				continue
			}
			if err := store.Set(key, value); err != nil {
				log.Fatal(err)
			}
		}
		fmt.Println(host.SavedMessage)
	},
}

var credentialsShow = &cobra.Command{
	Use:   "show",
	Short: "Print the stored oneDev credentials",
	Run: func(cmd *cobra.Command, args []string) {
		store := mustStore(config.MustLoadFromDefault())
		for _, key := range settings.Keys {
			value, ok, err := store.Get(key)
			if err != nil {
				log.Fatal(err)
			}
			switch {
			case !ok:
				value = "(not set)"
			case key == settings.KeyToken:
				value = "<redacted>"
			}
			fmt.Printf("%-12s %s\n", key+":", value)
		}
	},
}

func prompt(in *bufio.Reader, label string) string {
	fmt.Print(label)
	line, _ := in.ReadString('\n')
	return strings.TrimSpace(line)
}

func promptSecret(in *bufio.Reader, label string) string {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return prompt(in, label)
	}
	fmt.Print(label)
	secret, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		log.Fatal(err)
	}
	return strings.TrimSpace(string(secret))
}

func mustStore(cfg config.Config) *settings.FileStore {
	store, err := settings.NewFileStore(cfg.SettingsPath)
	if err != nil {
		log.Fatal(err)
	}
	return store
}

// newClient talks to the host daemon, or runs a host in this process when
// --local is given.
func newClient(cfg config.Config, lg service.Logger) tui.Client {
	if local {
		ctrl := host.NewController(mustStore(cfg), onedev.NewClient(cfg.Timeout()), lg)
		return rpc.NewLocalClient(ctrl)
	}
	socketPath, err := cfg.ExpandedSocketPath()
	if err != nil {
		log.Fatal(err)
	}
	return rpc.NewClient(socketPath, cfg.Timeout())
}

// quietLogger drops everything, for when the terminal belongs to the UI
type quietLogger struct{}

func (quietLogger) Error(v ...interface{}) error                   { return nil }
func (quietLogger) Warning(v ...interface{}) error                 { return nil }
func (quietLogger) Info(v ...interface{}) error                    { return nil }
func (quietLogger) Errorf(format string, a ...interface{}) error   { return nil }
func (quietLogger) Warningf(format string, a ...interface{}) error { return nil }
func (quietLogger) Infof(format string, a ...interface{}) error    { return nil }

func init() {
	rootCmd.AddCommand(uiCommand)
	rootCmd.AddCommand(listCommand)
	rootCmd.AddCommand(hostCommand)
	rootCmd.AddCommand(credentialsCommand)

	uiCommand.Flags().BoolVar(&local, "local", false, "run the host in this process instead of connecting to the daemon")
	listCommand.Flags().BoolVar(&local, "local", false, "run the host in this process instead of connecting to the daemon")
	listCommand.Flags().StringVar(&sortFlag, "sort", viewmodel.SortNewest.String(), "newest, oldest, most-comments or least-comments")
	listCommand.Flags().StringVar(&filterFlag, "filter", viewmodel.FilterAll.String(), "all, open or closed")
	listCommand.Flags().StringVar(&searchFlag, "search", "", "fuzzy match on titles")
	hostStdio.Flags().BoolVar(&watch, "watch", false, "push credentials again when the settings file changes")

	hostCommand.AddCommand(hostRun)
	hostCommand.AddCommand(hostStdio)
	hostCommand.AddCommand(hostControl("install", "Install the host as a user service", "install"))
	hostCommand.AddCommand(hostControl("remove", "Remove the host service", "uninstall"))
	hostCommand.AddCommand(hostControl("start", "Start the host service in the background", "start"))
	hostCommand.AddCommand(hostControl("stop", "Stop the host service", "stop"))
	hostCommand.AddCommand(hostControl("restart", "Restart the host service", "restart"))

	credentialsCommand.AddCommand(credentialsSet)
	credentialsCommand.AddCommand(credentialsShow)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
