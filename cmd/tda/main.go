package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"tda/internal/app"
	"tda/internal/auth"
	"tda/internal/client"
	"tda/internal/config"
	"tda/internal/logging"
	"tda/internal/store"
)

const usageText = `tda is the terminal console for the TDA admin backend.

Usage:
  tda <command> [flags]

Commands:
  ui        run the interactive console
  login     authenticate and store a session token
  register  create an account
  logout    clear the stored session
  whoami    show the authenticated user
  passwd    change the account password
  sessions  list chat sessions
  health    check backend reachability
  version   print version
  help      show help

Flags:
  -h, --help   show help

Examples:
  tda login --email admin@example.com
  tda sessions
  tda ui
`

const version = "dev"

func printUsage() {
	fmt.Fprint(os.Stderr, usageText)
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		return
	}

	switch args[0] {
	case "-h", "--help", "help":
		printUsage()
		return
	case "version":
		fmt.Println("tda " + version)
		return
	case "ui":
		exitOnErr("ui", runUI(args[1:]))
	case "login":
		exitOnErr("login", runLogin(args[1:]))
	case "register":
		exitOnErr("register", runRegister(args[1:]))
	case "logout":
		exitOnErr("logout", runLogout(args[1:]))
	case "whoami":
		exitOnErr("whoami", runWhoami(args[1:]))
	case "passwd":
		exitOnErr("passwd", runPasswd(args[1:]))
	case "sessions":
		exitOnErr("sessions", runSessions(args[1:]))
	case "health":
		exitOnErr("health", runHealth(args[1:]))
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(2)
	}
}

func exitOnErr(command string, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "%s: %v\n", command, err)
	os.Exit(1)
}

type env struct {
	cfg  config.Config
	auth *auth.Client
	api  *client.Client
	log  logging.Logger
}

// buildEnv assembles the client stack. When logPath is empty, logs go to
// stderr; the UI redirects them to a file so logfmt lines do not tear the
// alternate screen.
func buildEnv(logPath string) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	level := logging.ParseLevel(cfg.LogLevel())
	var log logging.Logger
	if logPath != "" {
		log = logging.ToFile(logPath, level)
	} else {
		log = logging.New(os.Stderr, level)
	}

	credsPath, err := config.CredentialsPath()
	if err != nil {
		return nil, err
	}
	credStore, err := store.NewCredentialStore(credsPath)
	if err != nil {
		return nil, fmt.Errorf("open credential store: %w", err)
	}

	authClient := auth.New(cfg.ServerBaseURL(), credStore, log)
	apiClient := client.New(cfg.ServerBaseURL(), authClient, log)
	return &env{cfg: cfg, auth: authClient, api: apiClient, log: log}, nil
}

func runUI(args []string) error {
	fs := flag.NewFlagSet("ui", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	logPath, err := config.UILogPath()
	if err != nil {
		return err
	}
	e, err := buildEnv(logPath)
	if err != nil {
		return err
	}
	if !e.auth.IsAuthenticated() {
		return fmt.Errorf("not logged in, run: tda login")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go auth.NewRefresher(e.auth, e.log).Run(ctx)

	statePath, err := config.StatePath()
	if err != nil {
		return err
	}
	initial, max, retries := e.cfg.ReconnectPolicy()
	return app.Run(e.api, store.NewFileStateStore(statePath), initial, max, retries, e.log)
}

func runLogin(args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	email := fs.String("email", "", "account email")
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := buildEnv("")
	if err != nil {
		return err
	}
	address := *email
	if address == "" {
		address, err = promptLine("Email: ")
		if err != nil {
			return err
		}
	}
	password, err := promptPassword("Password: ")
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	user, err := e.auth.Login(ctx, address, password)
	if err != nil {
		return err
	}
	fmt.Printf("logged in as %s\n", userLabel(user.Email, user.DisplayName))
	return nil
}

func runRegister(args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	email := fs.String("email", "", "account email")
	name := fs.String("name", "", "display name")
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := buildEnv("")
	if err != nil {
		return err
	}
	address := *email
	if address == "" {
		address, err = promptLine("Email: ")
		if err != nil {
			return err
		}
	}
	password, err := promptPassword("Password: ")
	if err != nil {
		return err
	}
	confirm, err := promptPassword("Confirm password: ")
	if err != nil {
		return err
	}
	if password != confirm {
		return fmt.Errorf("passwords do not match")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	user, err := e.auth.Register(ctx, address, password, *name)
	if err != nil {
		return err
	}
	fmt.Printf("registered %s\n", userLabel(user.Email, user.DisplayName))
	return nil
}

func runLogout(args []string) error {
	fs := flag.NewFlagSet("logout", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := buildEnv("")
	if err != nil {
		return err
	}
	if !e.auth.IsAuthenticated() {
		fmt.Println("not logged in")
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.auth.Logout(ctx); err != nil {
		// The local session is cleared regardless; the server just could not
		// be told about it.
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
	fmt.Println("logged out")
	return nil
}

func runWhoami(args []string) error {
	fs := flag.NewFlagSet("whoami", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	remote := fs.Bool("remote", false, "verify against the server instead of the local session")
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := buildEnv("")
	if err != nil {
		return err
	}
	if !e.auth.IsAuthenticated() {
		return fmt.Errorf("not logged in")
	}
	user := e.auth.User()
	if *remote {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		user, err = e.auth.Me(ctx)
		if err != nil {
			return err
		}
	}
	if user == nil {
		return fmt.Errorf("no user in session")
	}
	fmt.Printf("%s (%s)\n", userLabel(user.Email, user.DisplayName), user.Role)
	return nil
}

func runPasswd(args []string) error {
	fs := flag.NewFlagSet("passwd", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := buildEnv("")
	if err != nil {
		return err
	}
	if !e.auth.IsAuthenticated() {
		return fmt.Errorf("not logged in")
	}
	current, err := promptPassword("Current password: ")
	if err != nil {
		return err
	}
	next, err := promptPassword("New password: ")
	if err != nil {
		return err
	}
	confirm, err := promptPassword("Confirm new password: ")
	if err != nil {
		return err
	}
	if next != confirm {
		return fmt.Errorf("passwords do not match")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.auth.ChangePassword(ctx, current, next); err != nil {
		return err
	}
	fmt.Println("password changed")
	return nil
}

func runSessions(args []string) error {
	fs := flag.NewFlagSet("sessions", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := buildEnv("")
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	sessions, err := e.api.ListSessions(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tMODEL\tKIND")
	for _, s := range sessions {
		kind := "session"
		if s.IsSlave() {
			kind = "slave of " + s.ParentID()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.ID, s.Name, s.Model, kind)
	}
	return w.Flush()
}

func runHealth(args []string) error {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := buildEnv("")
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := e.api.Health(ctx); err != nil {
		return fmt.Errorf("backend unreachable at %s: %w", e.cfg.ServerBaseURL(), err)
	}
	fmt.Printf("ok (%s)\n", e.cfg.ServerBaseURL())
	return nil
}

func promptLine(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(password), nil
}

func userLabel(email, displayName string) string {
	if displayName != "" {
		return fmt.Sprintf("%s <%s>", displayName, email)
	}
	return email
}
