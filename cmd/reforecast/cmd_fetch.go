package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/DridrM/renewable-energy-forecast/internal/daterange"
	"github.com/DridrM/renewable-energy-forecast/internal/models"
	"github.com/DridrM/renewable-energy-forecast/internal/pipeline"
	"github.com/DridrM/renewable-energy-forecast/internal/resource"
)

// requestFlags holds the flags describing a dataset request.
type requestFlags struct {
	resource          string
	start             string
	end               string
	eicCode           string
	productionType    string
	productionSubtype string
}

func (f *requestFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.resource, "resource", "r", "1", "Resource number (1, 2, 3) or name")
	cmd.Flags().StringVar(&f.start, "start", "", "Start date (YYYY-MM-DD [hh:mm:ss]), omit for the default call")
	cmd.Flags().StringVar(&f.end, "end", "", "End date (YYYY-MM-DD [hh:mm:ss]), omit for the default call")
	cmd.Flags().StringVar(&f.eicCode, "eic-code", "", "Unit EIC code (resource 2)")
	cmd.Flags().StringVar(&f.productionType, "production-type", "", "Production type (resources 1 and 3)")
	cmd.Flags().StringVar(&f.productionSubtype, "production-subtype", "", "Production subtype (resource 3)")
}

func (f *requestFlags) request() (pipeline.Request, error) {
	kind, err := resource.Parse(f.resource)
	if err != nil {
		return pipeline.Request{}, err
	}
	start, err := daterange.ParseTime(f.start, nil)
	if err != nil {
		return pipeline.Request{}, fmt.Errorf("parsing --start: %w", err)
	}
	end, err := daterange.ParseTime(f.end, nil)
	if err != nil {
		return pipeline.Request{}, fmt.Errorf("parsing --end: %w", err)
	}
	return pipeline.Request{
		Kind:  kind,
		Start: start,
		End:   end,
		Filter: resource.Filter{
			EICCode:           f.eicCode,
			ProductionType:    f.productionType,
			ProductionSubtype: f.productionSubtype,
		},
	}, nil
}

func fetchCmd() *cobra.Command {
	var flags requestFlags
	var printRecords bool

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch a generation dataset",
		Long: `Fetches a generation dataset, downloading it only when it is not stored yet.
Long date ranges are split into windows the API accepts, with the rate limit
interval of the resource waited between windows.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger()

			req, err := flags.request()
			if err != nil {
				return err
			}

			p, err := newPipeline(logger)
			if err != nil {
				return err
			}

			ds, err := p.Get(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("fetching %s: %w", req.Kind.Name(), err)
			}

			logger.Info().
				Str("resource", ds.Kind.Name()).
				Str("file", ds.FileName).
				Int("records", len(ds.Records)).
				Bool("cached", ds.Cached).
				Msg("dataset ready")

			if printRecords {
				return writeRecords(os.Stdout, ds)
			}
			fmt.Println(ds.FileName)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&printRecords, "print", false, "Print the records as CSV instead of the file name")

	return cmd
}

func writeRecords(out io.Writer, ds *models.Dataset) error {
	unitCols := ds.Kind.UnitColumns()
	w := csv.NewWriter(out)
	header := append([]string{"start_date", "end_date", "updated_date", "value"}, unitCols...)
	if err := w.Write(header); err != nil {
		return err
	}
	for _, rec := range ds.Records {
		updated := ""
		if !rec.UpdatedDate.IsZero() {
			updated = rec.UpdatedDate.Format(time.RFC3339)
		}
		row := []string{
			rec.StartDate.Format(time.RFC3339),
			rec.EndDate.Format(time.RFC3339),
			updated,
			strconv.FormatFloat(rec.Value, 'f', -1, 64),
		}
		for _, col := range unitCols {
			row = append(row, rec.Unit[col])
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
