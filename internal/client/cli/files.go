package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"
)

func (a *App) Upload(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: upload <path>", errUsage)
	}

	obj, err := a.api.Upload(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Uploaded %s (%s) id=%s\n", obj.Name, obj.SizeHuman, obj.ID)
	return nil
}

// List prints the caller's files. Optional args: search term, sort key
// (name, size or date).
func (a *App) List(ctx context.Context, args []string) error {
	var search, sort string
	if len(args) > 0 {
		search = args[0]
	}
	if len(args) > 1 {
		sort = args[1]
	}

	list, err := a.api.ListObjects(ctx, search, sort)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No files")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSIZE\tUPLOADED")
	for _, o := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", o.ID, o.Name, o.SizeHuman, o.CreatedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

func (a *App) Delete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: delete <id>", errUsage)
	}

	if err := a.api.DeleteObject(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Deleted")
	return nil
}

// Ingest copies a share link or an external URL into the caller's storage.
func (a *App) Ingest(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: ingest <url>", errUsage)
	}

	obj, notice, err := a.api.Ingest(ctx, args[0])
	if err != nil {
		return err
	}
	if notice != "" {
		fmt.Fprintf(a.out, "%s: %s id=%s\n", notice, obj.Name, obj.ID)
		return nil
	}

	fmt.Fprintf(a.out, "Saved %s (%s) id=%s\n", obj.Name, obj.SizeHuman, obj.ID)
	return nil
}
