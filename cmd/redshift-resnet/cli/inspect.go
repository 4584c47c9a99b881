package cli

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/KyleAMoore/Redshift-ResNet/pkg/preprocess/checkpoint"
	"github.com/KyleAMoore/Redshift-ResNet/pkg/preprocess/sdss"
)

// NewInspectCommand returns the "inspect" command tree for examining
// checkpoint stores on disk.
func NewInspectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Examine a checkpoint store",
	}

	cmd.PersistentFlags().StringP("output", "o", "table", "output format: table or json")

	cmd.AddCommand(newInspectIndexCmd(), newInspectGetCmd(), newInspectBlobCmd())
	return cmd
}

func openStore(cmd *cobra.Command, identity string) (*checkpoint.Store[*sdss.Record], error) {
	settings, err := settingsFromCmd(cmd)
	if err != nil {
		return nil, err
	}
	return checkpoint.Open[*sdss.Record](settings.CheckpointDir, identity, sdss.RecordSchema{}, checkpoint.Options[*sdss.Record]{})
}

func newInspectIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index IDENTITY",
		Short: "List blobs and their member key counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd, args[0])
			if err != nil {
				return err
			}

			index, err := store.Index()
			if err != nil {
				return err
			}

			p := newPrinter(outputFormat(cmd))
			if p.format == "json" {
				return p.json(index)
			}

			names := make([]string, 0, len(index))
			for name := range index {
				names = append(names, name)
			}
			sort.Strings(names)

			rows := make([][]string, 0, len(names))
			for _, name := range names {
				rows = append(rows, []string{name, strconv.Itoa(len(index[name]))})
			}
			p.table([]string{"BLOB", "KEYS"}, rows)
			return nil
		},
	}
}

func newInspectGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get IDENTITY KEY",
		Short: "Print the record stored under a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd, args[0])
			if err != nil {
				return err
			}

			record, err := store.Get(args[1])
			if err != nil {
				return err
			}

			p := newPrinter(outputFormat(cmd))
			if p.format == "json" {
				return p.json(record)
			}
			p.kv([][2]string{
				{"SpecObjID", record.SpecObjID},
				{"Redshift", strconv.FormatFloat(record.Redshift, 'g', -1, 64)},
				{"Pixels", strconv.Itoa(len(record.Pixels))},
				{"Dimensions", fmt.Sprintf("%dx%dx%d", record.Width, record.Height, record.Bands)},
				{"ImagePath", record.ImagePath},
				{"RetrievedAt", record.RetrievedAt.Format(time.RFC3339)},
			})
			return nil
		},
	}
}

func newInspectBlobCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "blob IDENTITY NAME",
		Short: "Dump every record in one blob",
		Long: `Print every record stored in the blob NAME of the checkpoint store
IDENTITY. NAME is a blob file name as listed by "inspect index".`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd, args[0])
			if err != nil {
				return err
			}

			records, err := store.Blob(args[1])
			if err != nil {
				return err
			}

			p := newPrinter(outputFormat(cmd))
			if p.format == "json" {
				return p.json(records)
			}

			keys := make([]string, 0, len(records))
			for key := range records {
				keys = append(keys, key)
			}
			sort.Strings(keys)

			rows := make([][]string, 0, len(keys))
			for _, key := range keys {
				record := records[key]
				rows = append(rows, []string{
					key,
					strconv.FormatFloat(record.Redshift, 'g', -1, 64),
					strconv.Itoa(len(record.Pixels)),
				})
			}
			p.table([]string{"KEY", "REDSHIFT", "PIXELS"}, rows)
			return nil
		},
	}
}
