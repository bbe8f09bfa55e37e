package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/bjhnbjh/vibecoding-camera/internal/client"
	"github.com/bjhnbjh/vibecoding-camera/internal/domain"
	"github.com/bjhnbjh/vibecoding-camera/internal/poller"
)

// errAnalysisFailed is returned when the analyzer reported a failure. The
// reason has already been printed.
var errAnalysisFailed = errors.New("analysis failed")

type pollFlags struct {
	interval time.Duration
	timeout  time.Duration
}

func (f *pollFlags) register(cmd *cobra.Command) {
	cmd.Flags().DurationVar(&f.interval, "interval", envDuration(EnvPollInterval, poller.DefaultInterval), "delay between status checks")
	cmd.Flags().DurationVar(&f.timeout, "timeout", envDuration(EnvPollTimeout, poller.DefaultTimeout), "give up waiting after this long")
}

func newAnalyzeCommand(a *app) *cobra.Command {
	var (
		noWait bool
		pf     pollFlags
	)

	cmd := &cobra.Command{
		Use:   "analyze <image>",
		Short: "Upload a meal photo and wait for the result",
		Example: `  camera analyze lunch.jpg
  camera analyze --no-wait dinner.png`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			resp, err := c.Submit(cmd.Context(), args[0], f)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Submitted analysis %s\n", resp.AnalysisID)

			if noWait {
				fmt.Fprintf(a.out, "Check it later with: camera status %s\n", resp.AnalysisID)
				return nil
			}
			return a.follow(cmd.Context(), c, resp.AnalysisID, pf)
		},
	}

	cmd.Flags().BoolVar(&noWait, "no-wait", false, "return right after the upload is accepted")
	pf.register(cmd)
	return cmd
}

func newWatchCommand(a *app) *cobra.Command {
	var pf pollFlags

	cmd := &cobra.Command{
		Use:   "watch <analysis-id>",
		Short: "Wait for a submitted analysis to finish",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid analysis id %q", args[0])
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			return a.follow(cmd.Context(), c, id, pf)
		},
	}

	pf.register(cmd)
	return cmd
}

// follow polls id until a terminal outcome and prints it.
func (a *app) follow(ctx context.Context, c *client.Client, id uuid.UUID, pf pollFlags) error {
	p := poller.New(c, poller.Config{
		Interval: pf.interval,
		Timeout:  pf.timeout,
		OnUpdate: func(attempt int, an *domain.Analysis, err error) {
			if err != nil {
				warnColor.Fprintf(a.out, "  check %d: %s\n", attempt, describeError(err))
				return
			}
			fmt.Fprintf(a.out, "  check %d: ", attempt)
			statusColor(an.Status).Fprintln(a.out, an.Status)
		},
	}, nil)

	res := p.Poll(ctx, id)

	switch res.Outcome {
	case poller.OutcomeComplete:
		fmt.Fprintln(a.out)
		printAnalysis(a.out, res.Analysis)
		return nil
	case poller.OutcomeFailed:
		if res.Err != nil {
			return res.Err
		}
		fmt.Fprintln(a.out)
		printAnalysis(a.out, res.Analysis)
		return errAnalysisFailed
	case poller.OutcomeTimeout:
		warnColor.Fprintf(a.out, "Still processing. Check again with: camera status %s\n", id)
		return res.Err
	default:
		return res.Err
	}
}

func newStatusCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status <analysis-id>",
		Short: "Show the current state of an analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid analysis id %q", args[0])
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			an, err := c.GetAnalysis(cmd.Context(), id)
			if err != nil {
				return err
			}
			printAnalysis(a.out, an)
			return nil
		},
	}
}
