package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tgienger/taskboard/internal/models"
	"github.com/tgienger/taskboard/internal/projection"
)

// ExportFormats defines the allowed export formats.
var ExportFormats = []string{"json", "yaml"}

// ExportOptions holds flags for the export command
type ExportOptions struct {
	*RootOptions
	Format   string
	Status   string
	Priority string
	Search   string
}

// NewExportCommand prints the board as the current filter shows it
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print the board as JSON or YAML",
		Long: `Print every board column with its tasks in display order.

The filter saved by the board is used unless --status, --priority or --search
is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "json", "output format (json|yaml)")
	cmd.Flags().StringVar(&opts.Status, "status", projection.All, "only this status")
	cmd.Flags().StringVar(&opts.Priority, "priority", projection.All, "only this priority")
	cmd.Flags().StringVar(&opts.Search, "search", "", "only tasks whose title, description or tags contain this")

	return cmd
}

func runExport(cmd *cobra.Command, opts *ExportOptions) error {
	if !slices.Contains(ExportFormats, opts.Format) {
		return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ExportFormats)
	}

	ctx := cmd.Context()
	s, err := openSession(opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.coord.Load(ctx); err != nil {
		return fmt.Errorf("load tasks: %w", err)
	}

	criteria := s.savedCriteria(ctx)
	flags := cmd.Flags()
	if flags.Changed("status") {
		criteria.Status = opts.Status
	}
	if flags.Changed("priority") {
		criteria.Priority = opts.Priority
	}
	if flags.Changed("search") {
		criteria.Search = opts.Search
	}
	if err := criteria.Validate(); err != nil {
		return err
	}

	view := projection.Project(s.repo.Tasks.Snapshot(), criteria)
	return writeExport(cmd.OutOrStdout(), view, opts.Format)
}

type exportDoc struct {
	Criteria projection.Criteria `json:"criteria" yaml:"criteria"`
	Columns  []exportColumn      `json:"columns" yaml:"columns"`
}

type exportColumn struct {
	Status string       `json:"status" yaml:"status"`
	Label  string       `json:"label" yaml:"label"`
	Tasks  []exportTask `json:"tasks" yaml:"tasks"`
}

type exportTask struct {
	ID          string   `json:"id" yaml:"id"`
	Title       string   `json:"title" yaml:"title"`
	Priority    string   `json:"priority" yaml:"priority"`
	Due         string   `json:"due,omitempty" yaml:"due,omitempty"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Attachments int      `json:"attachments,omitempty" yaml:"attachments,omitempty"`
	CreatedBy   string   `json:"created_by,omitempty" yaml:"created_by,omitempty"`
}

func newExportDoc(view projection.View) exportDoc {
	doc := exportDoc{Criteria: view.Criteria, Columns: make([]exportColumn, 0, len(view.Board.Columns))}
	for _, col := range view.Board.Columns {
		out := exportColumn{Status: string(col.Status), Label: col.Status.Label(), Tasks: make([]exportTask, 0, len(col.Tasks))}
		for _, t := range col.Tasks {
			out.Tasks = append(out.Tasks, newExportTask(t))
		}
		doc.Columns = append(doc.Columns, out)
	}
	return doc
}

func newExportTask(t models.Task) exportTask {
	out := exportTask{
		ID:          t.ID,
		Title:       t.Title,
		Priority:    string(t.Priority),
		Tags:        t.Tags,
		Attachments: len(t.Attachments),
		CreatedBy:   t.CreatedBy,
	}
	if t.DueDate != nil {
		out.Due = t.DueDate.Local().Format(models.DueDateLayout)
	}
	return out
}

// writeExport renders view in format
func writeExport(w io.Writer, view projection.View, format string) error {
	doc := newExportDoc(view)
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	}
	return fmt.Errorf("invalid format %q: must be one of %v", format, ExportFormats)
}
