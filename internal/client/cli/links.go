package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"
)

// Share issues a link: share <object-id> [duration] [access-code].
// Durations are the server's codes (30m, 1h, 24h, 48h, 2d, 7d).
func (a *App) Share(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 3 {
		return fmt.Errorf("%w: share <id> [duration] [code]", errUsage)
	}

	var duration, code string
	if len(args) > 1 {
		duration = args[1]
	}
	if len(args) > 2 {
		code = args[2]
	}

	link, err := a.api.IssueLink(ctx, args[0], duration, code)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "%s\nexpires %s\n", link.URL, link.ExpiresAt.Local().Format(time.DateTime))
	return nil
}

func (a *App) Revoke(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: revoke <token>", errUsage)
	}

	if err := a.api.RevokeLink(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Revoked")
	return nil
}

func (a *App) Links(ctx context.Context) error {
	list, err := a.api.ListLinks(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No links")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "URL\tKIND\tSTATE\tEXPIRES")
	for _, l := range list {
		state := "active"
		if !l.Active {
			state = "expired"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", l.URL, l.Kind, state, l.ExpiresAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}
