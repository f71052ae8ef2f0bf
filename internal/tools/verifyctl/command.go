package verifyctl

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"go-verification-gateway/internal/token"
	"go-verification-gateway/internal/tools/common"
	"go-verification-gateway/internal/tools/ui"
)

type options struct {
	ci      bool
	timeout time.Duration
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "verifyctl",
		Short:         "Inspect and mint verification tokens",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&opts.ci, "ci", false, "machine-readable JSON output, no TUI")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "action timeout")

	root.AddCommand(newMintCommand(opts))
	root.AddCommand(newDecodeCommand(opts))
	root.AddCommand(newRemainingCommand(opts))
	return root
}

func newMintCommand(opts *options) *cobra.Command {
	var (
		uid     string
		name    string
		plan    string
		avatar  string
		service string
		baseURL string
	)
	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Mint a verification token locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(uid) == "" {
				return fmt.Errorf("--uid is required")
			}
			_, err := run(opts, "mint token", func(ctx context.Context) ([]string, error) {
				tok := token.Encode(token.Token{
					SubjectID:    strings.TrimSpace(uid),
					ServiceLabel: service,
					IssuedAtMS:   time.Now().UnixMilli(),
					DisplayName:  name,
					PlanLabel:    plan,
					AvatarURL:    avatar,
				})
				details := []string{"token: " + tok}
				if baseURL != "" {
					details = append(details, "url: "+strings.TrimRight(baseURL, "/")+"/v/"+tok)
				}
				return details, nil
			})
			return err
		},
	}
	cmd.Flags().StringVar(&uid, "uid", "", "subject identifier (required)")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&plan, "plan", token.DefaultPlanLabel, "plan label")
	cmd.Flags().StringVar(&avatar, "avatar", "", "avatar URL")
	cmd.Flags().StringVar(&service, "service", token.DefaultServiceLabel, "service label")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "gateway base URL for the verification link")
	return cmd
}

func newDecodeCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "decode TOKEN",
		Short: "Decode a verification token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := run(opts, "decode token", func(ctx context.Context) ([]string, error) {
				return describeToken(args[0], time.Now())
			})
			return err
		},
	}
}

func newRemainingCommand(opts *options) *cobra.Command {
	var window time.Duration
	cmd := &cobra.Command{
		Use:   "remaining TOKEN",
		Short: "Report the time left in a token's verification window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := run(opts, "window remaining", func(ctx context.Context) ([]string, error) {
				return describeRemaining(args[0], time.Now(), window)
			})
			return err
		},
	}
	cmd.Flags().DurationVar(&window, "window", 30*time.Minute, "verification window")
	return cmd
}

func describeToken(raw string, now time.Time) ([]string, error) {
	decoded, err := token.Decode(raw, now)
	if err != nil {
		return nil, err
	}
	details := []string{
		"uid: " + decoded.SubjectID,
		"service: " + decoded.ServiceLabel,
		"issued: " + time.UnixMilli(decoded.IssuedAtMS).UTC().Format(time.RFC3339),
		"plan: " + decoded.PlanLabel,
	}
	if decoded.DisplayName != "" {
		details = append(details, "name: "+decoded.DisplayName)
	}
	if decoded.AvatarURL != "" {
		details = append(details, "avatar: "+decoded.AvatarURL)
	}
	return details, nil
}

func describeRemaining(raw string, now time.Time, window time.Duration) ([]string, error) {
	decoded, err := token.Decode(raw, now)
	if err != nil {
		return nil, err
	}
	elapsed := now.Sub(time.UnixMilli(decoded.IssuedAtMS))
	remaining := window - elapsed
	if remaining <= 0 {
		return []string{"state: expired", "remaining: 0s"}, nil
	}
	return []string{
		"state: active",
		"remaining: " + remaining.Round(time.Second).String(),
	}, nil
}

func run(opts *options, title string, action ui.Action) ([]string, error) {
	if opts.ci {
		ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
		defer cancel()
		details, err := action(ctx)
		common.PrintCIResult(err == nil, title, details, err)
		return details, err
	}
	return ui.Run(title, action)
}
