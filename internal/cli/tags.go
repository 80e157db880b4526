package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewTagsCommand lists the tags in use
func NewTagsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tags",
		Short: "List every tag in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(rootOpts)
			if err != nil {
				return err
			}
			defer s.Close()

			tags, err := s.db.ListTags(cmd.Context())
			if err != nil {
				return fmt.Errorf("list tags: %w", err)
			}
			for _, tag := range tags {
				fmt.Fprintln(cmd.OutOrStdout(), tag)
			}
			return nil
		},
	}
}
