package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/supportflow/conversation-router/pkg/conversation"
	"github.com/supportflow/conversation-router/pkg/sla"
)

var stateNames = map[string]conversation.State{
	"New":           conversation.StateNew,
	"NeedsResponse": conversation.StateNeedsResponse,
	"Overdue":       conversation.StateOverdue,
	"Waiting":       conversation.StateWaiting,
	"Snoozed":       conversation.StateSnoozed,
	"Closed":        conversation.StateClosed,
	"Archived":      conversation.StateArchived,
}

// NewEvaluateCmd creates the evaluate command: an offline SLA check of a
// conversation snapshot described by flags.
func NewEvaluateCmd() *cobra.Command {
	var (
		stateName  string
		created    string
		lastChange string
		warning    time.Duration
		deadline   time.Duration
		at         string
	)

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate a conversation snapshot against a response-time threshold",
		RunE: func(_ *cobra.Command, _ []string) error {
			state, ok := stateNames[stateName]
			if !ok {
				return fmt.Errorf("unknown state %q", stateName)
			}

			createdAt, err := time.Parse(time.RFC3339, created)
			if err != nil {
				return fmt.Errorf("invalid --created: %w", err)
			}
			changedAt := createdAt
			if lastChange != "" {
				changedAt, err = time.Parse(time.RFC3339, lastChange)
				if err != nil {
					return fmt.Errorf("invalid --last-state-change: %w", err)
				}
			}
			now := time.Now()
			if at != "" {
				now, err = time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at: %w", err)
				}
			}

			var threshold conversation.TimeToRespond
			if warning > 0 {
				threshold.Warning = &warning
			}
			if deadline > 0 {
				threshold.Deadline = &deadline
			}

			conv := conversation.Conversation{
				State:             state,
				Created:           createdAt,
				LastStateChangeOn: changedAt,
			}
			fmt.Println(sla.Evaluate(conv, threshold, now))
			return nil
		},
	}

	cmd.Flags().StringVar(&stateName, "state", "New", "Conversation state (New, NeedsResponse, ...)")
	cmd.Flags().StringVar(&created, "created", "", "Creation time, RFC 3339 (required)")
	cmd.Flags().StringVar(&lastChange, "last-state-change", "", "Last state change time, RFC 3339 (defaults to --created)")
	cmd.Flags().DurationVar(&warning, "warning", 0, "Warning budget (0 = unset)")
	cmd.Flags().DurationVar(&deadline, "deadline", 0, "Deadline budget (0 = unset)")
	cmd.Flags().StringVar(&at, "at", "", "Evaluation instant, RFC 3339 (defaults to now)")
	_ = cmd.MarkFlagRequired("created")
	return cmd
}
