package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/openpowerquality/opq-sub000/internal/aggregation"
	"github.com/openpowerquality/opq-sub000/internal/config"
	"github.com/openpowerquality/opq-sub000/internal/logging"
	"github.com/openpowerquality/opq-sub000/internal/metadata"
	"github.com/openpowerquality/opq-sub000/internal/services"
	"github.com/openpowerquality/opq-sub000/internal/storage"
	"github.com/openpowerquality/opq-sub000/internal/utils"
)

// request is one parsed invocation
type request struct {
	mode   string
	box    string
	boxes  []string
	month  int
	year   int
	start  string
	end    string
	kind   string
	unit   string
	pretty bool
}

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	mode := flag.String("mode", "monthly", "Rollup: monthly, range, counts, latest, inventory")
	box := flag.String("box", "", "Box id (monthly, inventory)")
	boxes := flag.String("boxes", "", "Comma separated box ids (range, inventory)")
	month := flag.Int("month", -1, "0-based month (monthly)")
	year := flag.Int("year", 0, "Year (monthly)")
	start := flag.String("start", "", "Range start: epoch ms, RFC3339 or YYYY-MM-DD")
	end := flag.String("end", "", "Range end: epoch ms, RFC3339 or YYYY-MM-DD")
	kind := flag.String("kind", "events", "Occurrence kind (counts): events, box_events")
	unit := flag.String("unit", "day", "Time unit (counts): hourOfDay, dayOfMonth, day, week, month, year")
	pretty := flag.Bool("pretty", false, "Indent JSON output")
	verbose := flag.Bool("v", false, "Debug logging")
	flag.Parse()

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	logger := logging.NewCLI(level)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("Failed to load config", "error", err)
	}

	req := request{
		mode:   *mode,
		box:    *box,
		boxes:  utils.SplitList(*boxes),
		month:  *month,
		year:   *year,
		start:  *start,
		end:    *end,
		kind:   *kind,
		unit:   *unit,
		pretty: *pretty,
	}
	if req.box != "" && len(req.boxes) == 0 {
		req.boxes = []string{req.box}
	}

	ctx, cancel := context.WithTimeout(context.Background(), utils.RollupTimeout)
	defer cancel()

	store, err := storage.NewStore(ctx, cfg.Mongo, logger)
	if err != nil {
		logger.Fatal("Failed to open trend store", "error", err)
	}
	defer func() { _ = store.Close(context.Background()) }()

	registry, err := metadata.NewRegistry(cfg.Etcd)
	if err != nil {
		logger.Fatal("Failed to connect to box registry", "error", err)
	}
	defer func() { _ = registry.Close() }()

	opts, err := services.EngineOptions(cfg.Trends)
	if err != nil {
		logger.Fatal("Invalid trends config", "error", err)
	}
	svc := services.NewTrendService(logger, registry, aggregation.NewEngine(store, store, opts), nil)

	if err := run(ctx, svc, req, opts.Location, os.Stdout); err != nil {
		logger.Error("Rollup failed", "mode", req.mode, "error", err)
		cancel()
		os.Exit(1)
	}
}

// run executes one rollup and writes its JSON result to out
func run(ctx context.Context, svc *services.TrendService, req request, loc *time.Location, out io.Writer) error {
	var (
		result interface{}
		err    error
	)

	switch req.mode {
	case "monthly":
		if req.box == "" || req.month < 0 || req.year == 0 {
			return errors.New("monthly needs -box, -month and -year")
		}
		result, err = svc.MonthlyBoxTrends(ctx, req.box, req.month, req.year)

	case "range":
		startMs, endMs, perr := parseRange(req, loc, true)
		if perr != nil {
			return perr
		}
		result, err = svc.DailyTrendsInRange(ctx, req.boxes, startMs, endMs)

	case "counts":
		startMs, endMs, perr := parseRange(req, loc, false)
		if perr != nil {
			return perr
		}
		result, err = svc.EventsCountMap(ctx, req.kind, req.unit, startMs, endMs)

	case "latest":
		result, err = svc.MostRecentTrendMonth(ctx)

	case "inventory":
		inv, ierr := svc.Inventory(ctx, req.boxes)
		if ierr != nil {
			return ierr
		}
		total, terr := svc.TotalTrends(ctx)
		if terr != nil {
			return terr
		}
		result = map[string]interface{}{"boxes": inv, "total": total}

	default:
		return fmt.Errorf("unknown mode %q", req.mode)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	if req.pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(result)
}

// parseRange reads -start and -end. An absent end is allowed only when
// required is false and means open-ended.
func parseRange(req request, loc *time.Location, required bool) (int64, int64, error) {
	var startMs, endMs int64
	var err error

	if req.start != "" {
		if startMs, err = utils.ParseTimeMs(req.start, loc); err != nil {
			return 0, 0, err
		}
	} else if required {
		return 0, 0, errors.New("missing -start")
	}

	if req.end != "" {
		if endMs, err = utils.ParseTimeMs(req.end, loc); err != nil {
			return 0, 0, err
		}
	} else if required {
		return 0, 0, errors.New("missing -end")
	}
	return startMs, endMs, nil
}
