package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/tutord/internal/config"
	"github.com/kalambet/tutord/internal/engine"
	"github.com/kalambet/tutord/internal/tutor"
)

// localUser is the profile key turns run under with chat --local.
const localUser = "local"

// --- chat ---

type chatReply struct {
	Reply       string  `json:"reply"`
	Language    string  `json:"language"`
	Temperature float64 `json:"temperature"`
}

var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Ask the tutor a question",
	Long: `Ask the tutor a question.

Examples:
  tutord chat "explain pointers in c"
  tutord chat --dry-run "/py reverse a linked list"
  tutord chat --local "why does my loop segfault"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		message := strings.Join(args, " ")
		if strings.TrimSpace(message) == "" {
			return fmt.Errorf("message must not be empty")
		}
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		local, _ := cmd.Flags().GetBool("local")

		if local {
			return runLocalChat(cmd.Context(), cmd.OutOrStdout(), message, dryRun)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		if client.token == "" {
			return fmt.Errorf("not logged in; run 'tutord login <email>' or use --local")
		}
		return remoteChat(cmd.Context(), client, cmd.OutOrStdout(), message, dryRun)
	},
}

func remoteChat(ctx context.Context, client *apiClient, w io.Writer, message string, dryRun bool) error {
	body := map[string]string{"message": message}
	if dryRun {
		resp, err := client.post(ctx, "/chat/preview", body)
		if err != nil {
			return err
		}
		var req tutor.Request
		if err := decodeJSON(resp, &req); err != nil {
			return err
		}
		return printJSON(w, req)
	}

	resp, err := client.post(ctx, "/chat", body)
	if err != nil {
		return err
	}
	var reply chatReply
	if err := decodeJSON(resp, &reply); err != nil {
		return err
	}
	fmt.Fprintln(w, reply.Reply)
	printStatus("Language", "%s", reply.Language)
	printStatus("Temperature", "%.2f", reply.Temperature)
	return nil
}

// runLocalChat answers one turn in-process, without a running server.
func runLocalChat(ctx context.Context, w io.Writer, message string, dryRun bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	eng, err := detectEngine(cfg)
	if err != nil {
		return err
	}
	tut, _, err := newTutor(cfg, eng, nil)
	if err != nil {
		return err
	}

	if dryRun {
		return printJSON(w, tut.Prepare(localUser, message))
	}
	if err := engine.EnsureReady(ctx, eng, diag); err != nil {
		return err
	}
	reply, err := tut.HandleTurn(ctx, localUser, message)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, reply.Text)
	printStatus("Language", "%s", reply.Language)
	printStatus("Temperature", "%.2f", reply.Temperature)
	return nil
}

func init() {
	chatCmd.Flags().Bool("dry-run", false, "show the prompt that would be sent without asking the model")
	chatCmd.Flags().Bool("local", false, "answer in-process instead of through the server")
}

// --- accounts ---

func readPassword(cmd *cobra.Command) (string, error) {
	pw, _ := cmd.Flags().GetString("password")
	if pw != "" {
		return pw, nil
	}
	fmt.Fprint(diag, "Password: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

var signupCmd = &cobra.Command{
	Use:   "signup <email>",
	Short: "Create an account on the running server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pw, err := readPassword(cmd)
		if err != nil {
			return err
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/auth/signup", map[string]string{"email": args[0], "password": pw})
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("%s (user %s)", result["message"], result["user_id"])
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Log in and store the session token locally",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pw, err := readPassword(cmd)
		if err != nil {
			return err
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		token, err := login(cmd.Context(), client, args[0], pw)
		if err != nil {
			return err
		}
		if err := writeSessionToken(cfg.Storage.DataDir, token); err != nil {
			return fmt.Errorf("saving session: %w", err)
		}
		printSuccess("Logged in as %s", args[0])
		return nil
	},
}

func login(ctx context.Context, client *apiClient, email, password string) (string, error) {
	resp, err := client.post(ctx, "/auth/login", map[string]string{"email": email, "password": password})
	if err != nil {
		return "", err
	}
	var result struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		return "", err
	}
	if result.AccessToken == "" {
		return "", fmt.Errorf("server returned no access token")
	}
	return result.AccessToken, nil
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		if client.token == "" {
			printWarning("not logged in")
			return nil
		}
		if resp, err := client.post(cmd.Context(), "/auth/logout", nil); err != nil {
			printWarning("server logout failed: %v", err)
		} else if err := decodeJSON(resp, nil); err != nil {
			printWarning("server logout failed: %v", err)
		}
		if err := os.Remove(sessionFilePath(cfg.Storage.DataDir)); err != nil && !os.IsNotExist(err) {
			return err
		}
		printSuccess("Logged out")
		return nil
	},
}

func init() {
	signupCmd.Flags().String("password", "", "account password (prompted when omitted)")
	loginCmd.Flags().String("password", "", "account password (prompted when omitted)")
}

// --- profile ---

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Inspect the learner profile",
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current learner profile as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/profile")
		if err != nil {
			return err
		}
		var profile any
		if err := decodeJSON(resp, &profile); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), profile)
	},
}

func init() {
	profileCmd.AddCommand(profileShowCmd)
}

// --- interactions ---

var interactionsCmd = &cobra.Command{
	Use:   "interactions",
	Short: "Browse stored tutoring turns",
}

type interactionRow struct {
	ID          string  `json:"id"`
	CreatedAt   string  `json:"created_at"`
	Message     string  `json:"message"`
	Language    string  `json:"language"`
	Temperature float64 `json:"temperature"`
}

var interactionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent interactions",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		rows, err := listInteractions(cmd.Context(), client, limit)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No interactions found.")
			return nil
		}
		for _, ix := range rows {
			fmt.Fprintln(cmd.OutOrStdout(), formatInteraction(ix))
		}
		return nil
	},
}

func listInteractions(ctx context.Context, client *apiClient, limit int) ([]interactionRow, error) {
	resp, err := client.get(ctx, fmt.Sprintf("/interactions?limit=%d", limit))
	if err != nil {
		return nil, err
	}
	var rows []interactionRow
	if err := decodeJSON(resp, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func formatInteraction(ix interactionRow) string {
	id := ix.ID
	if len(id) > 8 {
		id = id[:8]
	}
	msg := ix.Message
	if len(msg) > 80 {
		msg = msg[:80] + "..."
	}
	return fmt.Sprintf("%s  %s  %-6s %.1f  %s",
		colorize(colorCyan, id),
		ix.CreatedAt,
		ix.Language,
		ix.Temperature,
		msg,
	)
}

func init() {
	interactionsListCmd.Flags().Int("limit", 20, "maximum number of interactions to list")
	interactionsCmd.AddCommand(interactionsListCmd)
}

// --- notes ---

var notesCmd = &cobra.Command{
	Use:   "notes",
	Short: "Manage the style notes",
}

var notesReloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Re-read the C and Python style notes on the running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		if client.adminKey == "" {
			return fmt.Errorf("no admin key configured; run 'tutord config set-secret server.admin_key <key>'")
		}
		status, err := reloadNotes(cmd.Context(), client)
		if err != nil {
			return err
		}
		printSuccess("%s", status.Status)
		for _, m := range status.Missing {
			printWarning("missing source: %s", m)
		}
		return nil
	},
}

func reloadNotes(ctx context.Context, client *apiClient) (tutor.ReloadStatus, error) {
	resp, err := client.post(ctx, "/admin/reload-notes", nil)
	if err != nil {
		return tutor.ReloadStatus{}, err
	}
	var status tutor.ReloadStatus
	if err := decodeJSON(resp, &status); err != nil {
		return tutor.ReloadStatus{}, err
	}
	return status, nil
}

func init() {
	notesCmd.AddCommand(notesReloadCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if err := config.SetKey(key, value); err != nil {
			return err
		}
		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configSetSecretCmd = &cobra.Command{
	Use:   "set-secret <key> <value>",
	Short: "Store a secret (provider.api_key, server.admin_key)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetSecret(args[0], args[1]); err != nil {
			return err
		}
		printSuccess("Stored %s", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configSetSecretCmd)
}
