package fetchers

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"fungiwatch/internal/logger"
	"fungiwatch/internal/models"
	"fungiwatch/internal/observability"

	"github.com/go-resty/resty/v2"
	"github.com/jonboulle/clockwork"
)

// ObservationFetcher retrieves observation records from the remote
// observations API, one (place, quality grade) partition at a time.
type ObservationFetcher struct {
	client   *resty.Client
	clock    clockwork.Clock
	log      *logger.Logger
	metrics  *observability.Metrics
	baseURL  string
	placeIDs []int
	pageSize int
	delay    time.Duration
}

// Options configures an ObservationFetcher.
type Options struct {
	BaseURL   string
	PlaceIDs  []int
	PageSize  int
	PageDelay time.Duration
	Timeout   time.Duration
	Clock     clockwork.Clock
	Metrics   *observability.Metrics
	Logger    *logger.Logger
}

// NewObservationFetcher creates a fetcher with a timeout-bounded HTTP client.
func NewObservationFetcher(opts Options) *ObservationFetcher {
	client := resty.New()
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	} else {
		client.SetTimeout(15 * time.Second)
	}
	client.SetRetryCount(2)
	client.SetRetryWaitTime(2 * time.Second)
	client.SetHeader("User-Agent", "fungiwatch/1.0")
	client.SetHeader("Accept", "application/json")

	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetGlobalLogger().WithComponent("fetchers")
	}

	return &ObservationFetcher{
		client:   client,
		clock:    opts.Clock,
		log:      opts.Logger,
		metrics:  opts.Metrics,
		baseURL:  opts.BaseURL,
		placeIDs: opts.PlaceIDs,
		pageSize: opts.PageSize,
		delay:    opts.PageDelay,
	}
}

// FetchAll retrieves the complete validated observation set for a taxon
// across all configured place and quality-grade partitions. Partition
// failures are logged and abort only that partition; a context cancellation
// stops paging and returns whatever has accumulated so far.
func (f *ObservationFetcher) FetchAll(ctx context.Context, taxonID int64) []models.Observation {
	return f.fetchPartitions(ctx, taxonID, "")
}

// FetchSince works like FetchAll but requests results newest-first and
// restricted to records observed on or after the given YYYY-MM-DD date,
// which bounds the result size for warm updates.
func (f *ObservationFetcher) FetchSince(ctx context.Context, taxonID int64, since string) []models.Observation {
	return f.fetchPartitions(ctx, taxonID, since)
}

func (f *ObservationFetcher) fetchPartitions(ctx context.Context, taxonID int64, since string) []models.Observation {
	var all []models.Observation

	for _, placeID := range f.placeIDs {
		for _, grade := range models.QualityGrades {
			if ctx.Err() != nil {
				f.log.Warn("fetch cancelled, returning partial results", logger.Fields{
					"taxon_id": taxonID, "records": len(all),
				})
				return all
			}
			all = append(all, f.fetchPartition(ctx, taxonID, placeID, grade, since)...)
		}
	}

	return all
}

// fetchPartition pages through one (place, grade) cell until the source
// returns a short or empty page.
func (f *ObservationFetcher) fetchPartition(ctx context.Context, taxonID int64, placeID int, grade, since string) []models.Observation {
	var records []models.Observation

	for page := 1; ; page++ {
		pageRecords, full, err := f.fetchPage(ctx, taxonID, placeID, grade, since, page)
		records = append(records, pageRecords...)
		if err != nil {
			if ctx.Err() != nil {
				return records
			}
			f.log.Error("page request failed, aborting partition", err, logger.Fields{
				"taxon_id": taxonID, "place_id": placeID, "quality_grade": grade, "page": page,
			})
			if f.metrics != nil {
				f.metrics.FetchErrors.Inc()
			}
			return records
		}
		if !full {
			return records
		}

		// Inter-page delay keeps us under the source's rate limit.
		if f.delay > 0 {
			select {
			case <-ctx.Done():
				return records
			case <-f.clock.After(f.delay):
			}
		}
	}
}

// fetchPage issues one page request. full reports whether the page was
// filled to the page size, i.e. whether more pages may follow.
func (f *ObservationFetcher) fetchPage(ctx context.Context, taxonID int64, placeID int, grade, since string, page int) ([]models.Observation, bool, error) {
	params := map[string]string{
		"taxon_id":      strconv.FormatInt(taxonID, 10),
		"place_id":      strconv.Itoa(placeID),
		"quality_grade": grade,
		"per_page":      strconv.Itoa(f.pageSize),
		"page":          strconv.Itoa(page),
		"photos":        "true",
		"geo":           "true",
	}
	if since != "" {
		params["d1"] = since
		params["order_by"] = "observed_on"
		params["order"] = "desc"
	}

	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(f.baseURL + "/observations")
	if err != nil {
		return nil, false, fmt.Errorf("failed to fetch observations page: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, false, fmt.Errorf("observations API returned status %d", resp.StatusCode())
	}

	var pageData models.ObservationPage
	if err := json.Unmarshal(resp.Body(), &pageData); err != nil {
		return nil, false, fmt.Errorf("failed to parse observations page: %w", err)
	}

	records := make([]models.Observation, 0, len(pageData.Results))
	rejected := 0
	for _, raw := range pageData.Results {
		rec, ok := models.DecodeObservation(raw, grade)
		if !ok {
			rejected++
			continue
		}
		records = append(records, rec)
	}

	if f.metrics != nil {
		f.metrics.PagesFetched.WithLabelValues(grade).Inc()
		f.metrics.RecordsRejected.Add(float64(rejected))
	}
	if rejected > 0 {
		f.log.Debug("rejected invalid records", logger.Fields{
			"taxon_id": taxonID, "quality_grade": grade, "page": page, "rejected": rejected,
		})
	}

	return records, len(pageData.Results) >= f.pageSize, nil
}
