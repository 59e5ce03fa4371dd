package join

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/digitaltembo/Crime-And-Dining/geo"
	"github.com/digitaltembo/Crime-And-Dining/logging"
	"github.com/digitaltembo/Crime-And-Dining/record"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Source describes the two exports read by Load.
type Source struct {
	Food         io.Reader
	Crime        io.Reader
	FoodColumns  record.EstablishmentColumns
	CrimeColumns record.IncidentColumns
	Projection   *geo.Projection
	// AddressBook locates establishments whose export row has no location.
	AddressBook record.AddressBook
	Logger      *zap.Logger
}

// Loaded holds parsed inputs.
type Loaded struct {
	Establishments []*record.Establishment
	Incidents      []*record.Incident
	Registry       *record.TypeRegistry
	BadRows        int
	Resolved       int
}

// Load parses both exports concurrently. Skippable rows are logged and
// counted.
func Load(ctx context.Context, src Source) (*Loaded, error) {
	logger := logging.OrNop(src.Logger).Named("load")
	out := &Loaded{Registry: record.NewTypeRegistry()}
	var foodBad, crimeBad int

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rd, err := record.NewEstablishmentReader(src.Food, src.FoodColumns, src.Projection)
		if err != nil {
			return fmt.Errorf("join: establishments: %w", err)
		}
		out.Establishments, foodBad, err = drain[*record.Establishment](gctx, rd, logger.With(zap.String("input", "food")))
		return err
	})
	g.Go(func() error {
		rd, err := record.NewIncidentReader(src.Crime, src.CrimeColumns, src.Projection, out.Registry)
		if err != nil {
			return fmt.Errorf("join: incidents: %w", err)
		}
		out.Incidents, crimeBad, err = drain[*record.Incident](gctx, rd, logger.With(zap.String("input", "crime")))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out.BadRows = foodBad + crimeBad

	if src.AddressBook != nil {
		for _, e := range out.Establishments {
			if !e.Located && src.AddressBook.Resolve(e, src.Projection) {
				out.Resolved++
			}
		}
	}
	logger.Info("inputs loaded",
		zap.Int("establishments", len(out.Establishments)),
		zap.Int("incidents", len(out.Incidents)),
		zap.Int("incident_types", len(out.Registry.Names())),
		zap.Int("resolved", out.Resolved),
		zap.Int("bad_rows", out.BadRows))
	return out, nil
}

func drain[T any](ctx context.Context, rd interface{ Read() (T, error) }, logger *zap.Logger) ([]T, int, error) {
	var out []T
	bad := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, bad, err
		}
		item, err := rd.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return out, bad, nil
			}
			var rowErr *record.RowError
			if errors.As(err, &rowErr) {
				bad++
				logger.Warn("skipping row", zap.Int("line", rowErr.Line), zap.Error(rowErr.Err))
				continue
			}
			return nil, bad, err
		}
		out = append(out, item)
	}
}
