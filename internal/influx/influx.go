package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Garsondee/Driftwar/internal/combat"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
)

// Measurement is the line protocol measurement for finished battles.
const Measurement = "battle"

// Config selects the InfluxDB target.
type Config struct {
	URL        string
	Token      string
	Org        string
	Bucket     string
	BackupPath string // gzip line protocol written when the server is unreachable
}

// Sink writes finished battles to InfluxDB, or to a gzip backup file when
// the server does not answer the initial ping.
type Sink struct {
	client     influxdb2.Client
	writer     influxdb2_api.WriteAPI
	backup     *gzip.Writer
	backupFile *os.File
	valid      bool
	logger     zerolog.Logger
}

// Open connects and pings. A failed ping is not an error when a backup path
// is configured.
func Open(ctx context.Context, cfg Config, log zerolog.Logger) (*Sink, error) {
	if cfg.URL == "" {
		return nil, errors.New("influx url is empty")
	}
	s := &Sink{logger: log}
	s.client = influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000),
	)

	running, err := s.client.Ping(ctx)
	if err != nil || !running {
		if cfg.BackupPath == "" {
			s.client.Close()
			return nil, fmt.Errorf("influxdb unreachable at %s: %v", cfg.URL, err)
		}
		s.logger.Info().Str("backupPath", cfg.BackupPath).
			Msg("Failed to reach InfluxDB, writing to backup file")
		f, err := os.OpenFile(cfg.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			s.client.Close()
			return nil, fmt.Errorf("error creating backup file: %w", err)
		}
		s.backupFile = f
		s.backup = gzip.NewWriter(f)
		return s, nil
	}

	s.valid = true
	s.writer = s.client.WriteAPI(cfg.Org, cfg.Bucket)
	go func(errorsCh <-chan error) {
		for writeErr := range errorsCh {
			s.logger.Error().Err(writeErr).Str("bucket", cfg.Bucket).
				Msg("Error sending data to InfluxDB")
		}
	}(s.writer.Errors())
	s.logger.Info().Str("url", cfg.URL).Str("bucket", cfg.Bucket).Msg("InfluxDB client initialized")
	return s, nil
}

// Online reports whether points go to the server rather than the backup.
func (s *Sink) Online() bool { return s.valid }

// ResultPoint converts one finished battle into a point.
func ResultPoint(run string, seed int64, r combat.BattleResult, ts time.Time) *influxdb2_write.Point {
	return influxdb2.NewPoint(Measurement,
		map[string]string{
			"run":     run,
			"seed":    strconv.FormatInt(seed, 10),
			"name":    r.Name,
			"outcome": r.Outcome.String(),
			"reason":  r.Reason.String(),
		},
		map[string]interface{}{
			"ticks":           r.Ticks,
			"left_cap":        r.LeftCap,
			"right_cap":       r.RightCap,
			"left_lost":       r.LeftLost,
			"right_lost":      r.RightLost,
			"probes_lost":     r.ProbesLost,
			"drifters_killed": r.DriftersKilled,
			"honor_delta":     r.HonorDelta,
		},
		ts,
	)
}

// WriteResults queues every result of one run. Points are spaced a
// nanosecond apart so battles with equal tags do not overwrite each other.
func (s *Sink) WriteResults(run string, seed int64, results []combat.BattleResult, at time.Time) error {
	for i, r := range results {
		if err := s.WritePoint(ResultPoint(run, seed, r, at.Add(time.Duration(i)))); err != nil {
			return err
		}
	}
	return nil
}

// WritePoint writes to the server or the backup file.
func (s *Sink) WritePoint(p *influxdb2_write.Point) error {
	if s.valid {
		s.writer.WritePoint(p)
		return nil
	}
	if s.backup == nil {
		return errors.New("influxdb client not initialized and backup writer not available")
	}
	line := strings.TrimRight(influxdb2_write.PointToLineProtocol(p, time.Nanosecond), "\n")
	if _, err := s.backup.Write([]byte(line + "\n")); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// Close flushes pending points and releases the client.
func (s *Sink) Close() error {
	var err error
	if s.valid {
		s.writer.Flush()
	}
	s.client.Close()
	if s.backup != nil {
		err = errors.Join(s.backup.Close(), s.backupFile.Close())
	}
	return err
}
