package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/apronworks/apron-agent/internal/agent"
	"github.com/apronworks/apron-agent/internal/format"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session with the agent",
	Long: `Opens a terminal conversation with the agent. Type questions in plain
language; pending actions can be confirmed or rejected with the
/confirm and /reject commands. Type /quit to leave.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().String("user", "local", "user id for the session")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := buildLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	pipeline, _, cleanup, err := buildPipeline(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	userID, _ := cmd.Flags().GetString("user")
	sessionID := uuid.NewString()

	fmt.Println("Connected. Ask about stands, terminals, airlines or maintenance.")
	fmt.Println("Commands: /pending, /confirm <id>, /reject <id> [reason], /quit")
	fmt.Println()

	for {
		prompt := promptui.Prompt{Label: "you"}
		line, err := prompt.Run()
		if err != nil {
			// Ctrl-C or Ctrl-D ends the session.
			if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
				return nil
			}
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := runChatCommand(pipeline, sessionID, line); quit {
				return nil
			}
			continue
		}

		resp, err := pipeline.HandleQuery(context.Background(), userID, sessionID, line, agent.QueryOptions{
			Format: format.Options{Encoding: format.EncodingPlain},
		})
		if err != nil {
			fmt.Printf("error: %v\n\n", err)
			continue
		}

		fmt.Printf("\nagent: %s\n", resp.Text)
		for _, viz := range resp.Visualizations {
			fmt.Printf("\n%s\n", viz)
		}
		if resp.PendingActionID != "" {
			fmt.Printf("\n(pending action %s, run /confirm %s to proceed)\n", resp.PendingActionID, resp.PendingActionID)
		}
		fmt.Println()
	}
}

// runChatCommand handles slash commands. Returns true when the session
// should end.
func runChatCommand(pipeline *agent.Pipeline, sessionID, line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true

	case "/pending":
		actions := pipeline.ListPendingActions(sessionID)
		if len(actions) == 0 {
			fmt.Println("No pending actions.")
			break
		}
		for _, a := range actions {
			fmt.Printf("%s  %s  %s (expires %s)\n", a.ID, a.Kind, a.Message, a.ExpiresAt.Format("15:04:05"))
		}

	case "/confirm":
		if len(fields) < 2 {
			fmt.Println("Usage: /confirm <id>")
			break
		}
		action, err := pipeline.ConfirmAction(fields[1], sessionID)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			break
		}
		fmt.Printf("Confirmed %s (%s).\n", action.ID, action.Kind)

	case "/reject":
		if len(fields) < 2 {
			fmt.Println("Usage: /reject <id> [reason]")
			break
		}
		reason := strings.Join(fields[2:], " ")
		action, err := pipeline.RejectAction(fields[1], sessionID, reason)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			break
		}
		fmt.Printf("Rejected %s (%s).\n", action.ID, action.Kind)

	default:
		fmt.Printf("Unknown command %s\n", fields[0])
	}
	fmt.Println()
	return false
}
