package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tgienger/taskboard/internal/association"
	"github.com/tgienger/taskboard/internal/coordinator"
	"github.com/tgienger/taskboard/internal/gateway"
	"github.com/tgienger/taskboard/internal/models"
)

// AddOptions holds flags for the add command
type AddOptions struct {
	*RootOptions
	Description string
	Status      string
	Priority    string
	Due         string
	Tags        []string
	Attach      []string
}

// NewAddCommand creates a task from the command line
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AddOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a task, optionally with attachments",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdd(cmd, opts, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVarP(&opts.Description, "description", "d", "", "task description")
	cmd.Flags().StringVar(&opts.Status, "status", string(models.StatusTodo), "initial status")
	cmd.Flags().StringVarP(&opts.Priority, "priority", "p", string(models.PriorityMedium), "priority (low|medium|high|urgent)")
	cmd.Flags().StringVar(&opts.Due, "due", "", "due date (YYYY-MM-DD or YYYY-MM-DD HH:MM)")
	cmd.Flags().StringSliceVarP(&opts.Tags, "tag", "t", nil, "tag, may be repeated")
	cmd.Flags().StringSliceVarP(&opts.Attach, "attach", "a", nil, "file to attach, may be repeated")

	return cmd
}

func runAdd(cmd *cobra.Command, opts *AddOptions, title string) error {
	fields, err := opts.fields(title)
	if err != nil {
		return err
	}
	uploads, err := readUploads(opts.Attach)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	s, err := openSession(opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	out := cmd.OutOrStdout()
	if len(uploads) == 0 {
		task, err := s.coord.CreateTask(ctx, fields)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Created %s: %s\n", task.ID, task.Title)
		return nil
	}

	result, err := s.assoc.CreateTaskWithAttachments(ctx, fields, uploads)
	if err != nil {
		return err
	}
	printResult(out, result)
	if failed := len(result.Failed()); failed > 0 {
		return fmt.Errorf("%d of %d attachments failed", failed, len(result.Outcomes))
	}
	return nil
}

func (o *AddOptions) fields(title string) (coordinator.TaskFields, error) {
	due, err := models.ParseDueDate(o.Due)
	if err != nil {
		return coordinator.TaskFields{}, err
	}
	return coordinator.TaskFields{
		Title:       title,
		Description: o.Description,
		Status:      models.Status(o.Status),
		Priority:    models.Priority(o.Priority),
		DueDate:     due,
		Tags:        o.Tags,
	}, nil
}

func readUploads(paths []string) ([]gateway.Upload, error) {
	uploads := make([]gateway.Upload, 0, len(paths))
	for _, path := range paths {
		u, err := gateway.UploadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("read attachment: %w", err)
		}
		uploads = append(uploads, u)
	}
	return uploads, nil
}

func printResult(w io.Writer, r association.Result) {
	fmt.Fprintf(w, "Created %s: %s\n", r.Task.ID, r.Task.Title)
	for _, o := range r.Outcomes {
		if o.OK() {
			fmt.Fprintf(w, "  attached %s\n", o.Name)
			continue
		}
		fmt.Fprintf(w, "  failed   %s: %v\n", o.Name, o.Err)
	}
}
