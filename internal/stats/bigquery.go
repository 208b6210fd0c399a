package stats

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/goccy/go-json"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"crosswarped.com/mastermind"
)

// Row is one summary as stored in BigQuery.
type Row struct {
	RunID         string    `bigquery:"run_id"`
	Strategy      string    `bigquery:"strategy"`
	Space         string    `bigquery:"space"`
	Runs          int64     `bigquery:"runs"`
	Unsolved      int64     `bigquery:"unsolved"`
	Histogram     string    `bigquery:"histogram"`
	Average       float64   `bigquery:"average"`
	Median        float64   `bigquery:"median"`
	Modes         []int64   `bigquery:"modes"`
	Min           int64     `bigquery:"min"`
	Max           int64     `bigquery:"max"`
	AverageMillis float64   `bigquery:"average_ms"`
	MedianMillis  float64   `bigquery:"median_ms"`
	TotalSeconds  float64   `bigquery:"total_seconds"`
	OracleCalls   int64     `bigquery:"oracle_calls"`
	OracleReused  int64     `bigquery:"oracle_reused"`
	OracleLoaded  int64     `bigquery:"oracle_imported"`
	CreatedAt     time.Time `bigquery:"created_at"`
}

// NewRow flattens a summary. The histogram is kept as a JSON object keyed by rounds.
func NewRow(s Summary) (Row, error) {
	hist, err := json.Marshal(s.Histogram)
	if err != nil {
		return Row{}, fmt.Errorf("histogram: %w", err)
	}

	modes := make([]int64, len(s.Modes))
	for i, m := range s.Modes {
		modes[i] = int64(m)
	}

	return Row{
		RunID:         s.RunID,
		Strategy:      s.Strategy,
		Space:         s.Space,
		Runs:          int64(s.Runs),
		Unsolved:      int64(s.Unsolved),
		Histogram:     string(hist),
		Average:       s.Average,
		Median:        s.Median,
		Modes:         modes,
		Min:           int64(s.Min),
		Max:           int64(s.Max),
		AverageMillis: s.AverageMillis,
		MedianMillis:  s.MedianMillis,
		TotalSeconds:  s.Total.Seconds(),
		OracleCalls:   int64(s.Oracle.Calls),
		OracleReused:  int64(s.Oracle.Live),
		OracleLoaded:  int64(s.Oracle.Imported),
		CreatedAt:     s.StartedAt,
	}, nil
}

// Repr prints the row on one line.
func (r Row) Repr() string {
	return fmt.Sprintf("%s  %s %s  %d games, average %.3f, median %.1f, max %d, %d unsolved, histogram %s",
		r.CreatedAt.Format(time.DateTime), r.Strategy, r.Space, r.Runs, r.Average, r.Median, r.Max, r.Unsolved, r.Histogram)
}

// Exporter appends summaries to a BigQuery table and reads them back.
type Exporter struct {
	client   *bigquery.Client
	dataset  string
	table    string
	location string
}

func NewExporter(ctx context.Context, cfg mastermind.BigQueryConfig, opts ...option.ClientOption) (*Exporter, error) {
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := bigquery.NewClient(ctx, cfg.Project, opts...)
	if err != nil {
		return nil, fmt.Errorf("bigquery.NewClient: %w", err)
	}
	return &Exporter{
		client:   client,
		dataset:  cfg.Dataset,
		table:    cfg.Table,
		location: cfg.Location,
	}, nil
}

// Export streams one row per summary.
func (e *Exporter) Export(ctx context.Context, summaries []Summary) error {
	rows := make([]*Row, 0, len(summaries))
	for _, s := range summaries {
		r, err := NewRow(s)
		if err != nil {
			return err
		}
		rows = append(rows, &r)
	}

	ins := e.client.Dataset(e.dataset).Table(e.table).Inserter()
	if err := ins.Put(ctx, rows); err != nil {
		return fmt.Errorf("inserter.Put: %w", err)
	}
	return nil
}

// History returns the latest rows for a strategy and space, newest first.
func (e *Exporter) History(ctx context.Context, strategy, space string, limit int) ([]Row, error) {
	query := fmt.Sprintf("SELECT * FROM `%s.%s.%s` WHERE strategy = @strategy AND space = @space ORDER BY created_at DESC LIMIT %d",
		e.client.Project(), e.dataset, e.table, limit)
	q := e.client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "strategy", Value: strategy},
		{Name: "space", Value: space},
	}
	if e.location != "" {
		q.Location = e.location
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("q.Read: %w", err)
	}

	var rows []Row
	for {
		var r Row
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("it.Next: %w", err)
		}
		rows = append(rows, r)
	}
	return rows, nil
}

func (e *Exporter) Close() error {
	return e.client.Close()
}
