package cli

import (
	"github.com/spf13/cobra"

	"github.com/KyleAMoore/Redshift-ResNet/pkg/preprocess/archive"
)

// NewArchiveCommand returns the "archive" command tree for bundling
// dataset directories.
func NewArchiveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Bundle or unpack dataset directories",
	}
	cmd.AddCommand(newArchivePackCmd(), newArchiveUnpackCmd())
	return cmd
}

func newArchivePackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pack SRC DEST",
		Short: "Archive a directory as tar.gz",
		Long: `Bundle the directory SRC into a gzip-compressed tar archive at DEST.
Members are written in lexical path order, so archiving the same tree
twice produces identical bytes.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return archive.Dir(args[0], args[1])
		},
	}
}

func newArchiveUnpackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unpack SRC DEST",
		Short: "Extract a tar.gz archive into a directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return archive.Unpack(args[0], args[1])
		},
	}
}
